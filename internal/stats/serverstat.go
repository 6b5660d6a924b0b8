package stats

import (
	"math"
	"strconv"
	"strings"

	"github.com/firewood/mcrouter/internal/destination"
	"github.com/firewood/mcrouter/internal/proto"
)

// DestinationStatSnapshot folds every shard's view of one destination into
// a single record. Built fresh on each stats query, never persisted.
type DestinationStatSnapshot struct {
	Results [proto.NumResults]uint64
	States  [destination.NumStates]uint64

	HardTko bool
	SoftTko bool

	SumLatencyUs float64
	CntLatency   uint64

	SumRetransPerKB float64
	MaxRetransPerKB float64
	MinRetransPerKB float64
	CntRetransPerKB uint64

	Pending  uint64
	Inflight uint64
}

// NewDestinationStatSnapshot returns an empty snapshot; the retransmit
// minimum starts at +Inf so the first sample always wins.
func NewDestinationStatSnapshot() *DestinationStatSnapshot {
	return &DestinationStatSnapshot{MinRetransPerKB: math.Inf(1)}
}

// Fold merges one shard's view of the destination into the snapshot.
// Knockout flags OR-reduce: if any shard sees the destination knocked out,
// the aggregate reports it knocked out.
func (s *DestinationStatSnapshot) Fold(st destination.Stats, hardTko, softTko bool) {
	s.HardTko = s.HardTko || hardTko
	s.SoftTko = s.SoftTko || softTko
	for i := range st.Results {
		s.Results[i] += st.Results[i]
	}
	s.States[st.State]++
	if st.HasLatency {
		s.SumLatencyUs += st.AvgLatencyUs
		s.CntLatency++
	}
	if st.HasRetrans && st.RetransPerKB >= 0 {
		s.SumRetransPerKB += st.RetransPerKB
		s.MaxRetransPerKB = math.Max(s.MaxRetransPerKB, st.RetransPerKB)
		s.MinRetransPerKB = math.Min(s.MinRetransPerKB, st.RetransPerKB)
		s.CntRetransPerKB++
	}
	s.Pending += st.Pending
	s.Inflight += st.Inflight
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// String formats the snapshot as one stats line:
// latency, queue gauges, knockout flag, retransmits, states, then the
// result histogram.
func (s *DestinationStatSnapshot) String() string {
	var b strings.Builder

	avgLatency := 0.0
	if s.CntLatency > 0 {
		avgLatency = s.SumLatencyUs / float64(s.CntLatency)
	}
	b.WriteString("avg_latency_us:")
	b.WriteString(strconv.FormatFloat(avgLatency, 'f', 3, 64))
	b.WriteString(" pending_reqs:")
	b.WriteString(strconv.FormatUint(s.Pending, 10))
	b.WriteString(" inflight_reqs:")
	b.WriteString(strconv.FormatUint(s.Inflight, 10))

	if s.HardTko {
		b.WriteString(" hard_tko; ")
	} else if s.SoftTko {
		b.WriteString(" soft_tko; ")
	}

	if s.CntRetransPerKB > 0 {
		avg := s.SumRetransPerKB / float64(s.CntRetransPerKB)
		b.WriteString(" avg_retrans_ratio:")
		b.WriteString(fmtFloat(avg))
		b.WriteString(" max_retrans_ratio:")
		b.WriteString(fmtFloat(s.MaxRetransPerKB))
		b.WriteString(" min_retrans_ratio:")
		b.WriteString(fmtFloat(s.MinRetransPerKB))
	}

	for i, n := range s.States {
		if n > 0 {
			b.WriteString(" ")
			b.WriteString(destination.State(i).String())
			b.WriteString(":")
			b.WriteString(strconv.FormatUint(n, 10))
		}
	}

	first := true
	for i, n := range s.Results {
		if n == 0 {
			continue
		}
		if first {
			b.WriteString("; ")
			first = false
		} else {
			b.WriteString(" ")
		}
		b.WriteString(proto.ResultCode(i).String())
		b.WriteString(":")
		b.WriteString(strconv.FormatUint(n, 10))
	}

	return b.String()
}

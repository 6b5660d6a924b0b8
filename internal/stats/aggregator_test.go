package stats

import (
	"testing"
	"time"

	"github.com/firewood/mcrouter/internal/destination"
	"github.com/firewood/mcrouter/internal/proto"
)

type fakeSource struct {
	reg   *Registry
	win   *Window
	dests *destination.Map
}

func newFakeSource(numBins int, binDur time.Duration) *fakeSource {
	return &fakeSource{
		reg:   NewRegistry(),
		win:   NewWindow(numBins, binDur),
		dests: destination.NewMap(),
	}
}

func (f *fakeSource) StatsRegistry() *Registry       { return f.reg }
func (f *fakeSource) StatsWindow() *Window           { return f.win }
func (f *fakeSource) Destinations() *destination.Map { return f.dests }

func newTestAggregator(srcs ...*fakeSource) *Aggregator {
	sources := make([]Source, len(srcs))
	for i, s := range srcs {
		sources[i] = s
	}
	return NewAggregator(sources, destination.NewTkoTracker(3), nil, time.Now(), "mcrouter test")
}

func TestAggregateSumAcrossShards(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)

	s1.reg.Incr(StatRequestSuccessCount, 7)
	s2.reg.Incr(StatRequestSuccessCount, 5)

	prepared := newTestAggregator(s1, s2).Prepare()
	if got := prepared.Uint64(StatRequestSuccessCount); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}
}

func TestAggregateRateAcrossShards(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)

	// Two shards each record 100 replies in the same window.
	s1.win.Record(StatRequestSuccess, 100)
	s2.win.Record(StatRequestSuccess, 100)
	s1.win.Rotate()
	s2.win.Rotate()

	agg := newTestAggregator(s1, s2)
	if got := agg.AggregateRate(StatRequestSuccess); got != 200 {
		t.Errorf("expected aggregated rate 200/s, got %g", got)
	}
}

func TestAggregateRateZeroBeforeRotation(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s1.win.Record(StatRequestSuccess, 100)

	agg := newTestAggregator(s1)
	if got := agg.AggregateRate(StatRequestSuccess); got != 0 {
		t.Errorf("expected 0 before first rotation, got %g", got)
	}
}

func TestAggregateMax(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)

	// Shard 1 peaks in the first bin, shard 2 peaks higher in the second.
	s1.win.Record(StatDestRequestsPeak, 10)
	s1.win.Rotate()
	s2.win.Rotate()
	s2.win.Record(StatDestRequestsPeak, 25)
	s1.win.Rotate()
	s2.win.Rotate()

	agg := newTestAggregator(s1, s2)
	if got := agg.AggregateMax(StatDestRequestsPeak); got != 25 {
		t.Errorf("expected max 25, got %d", got)
	}
}

func TestAggregateMaxSumsShardsWithinBin(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)

	// Both shards contribute to the same bin; max policy sums the bin
	// across shards before taking the maximum.
	s1.win.Record(StatDestRequestsPeak, 10)
	s2.win.Record(StatDestRequestsPeak, 15)
	s1.win.Rotate()
	s2.win.Rotate()

	agg := newTestAggregator(s1, s2)
	if got := agg.AggregateMax(StatDestRequestsPeak); got != 25 {
		t.Errorf("expected bin sum 25, got %d", got)
	}

	// Max-of-max never sums: the largest single-shard bin wins.
	if got := agg.AggregateMaxMax(StatDestRequestsPeak); got != 15 {
		t.Errorf("expected max-of-max 15, got %d", got)
	}
}

func TestPrepareDerivedRatios(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)

	s1.win.Record(StatDestBatchesSum, 10)
	s1.win.Record(StatDestRequestsSum, 40)
	s2.win.Record(StatDestBatchesSum, 10)
	s2.win.Record(StatDestRequestsSum, 20)

	prepared := newTestAggregator(s1, s2).Prepare()
	if got := prepared.Float64(StatDestBatchSize); got != 3.0 {
		t.Errorf("expected avg batch size 3.0, got %g", got)
	}
}

func TestPrepareZeroDenominatorGuards(t *testing.T) {
	// A fresh shard has all-zero sums; every derived ratio must read 0,
	// never NaN.
	prepared := newTestAggregator(newFakeSource(4, time.Second)).Prepare()

	ratios := []StatID{
		StatDestBatchSize,
		StatRetransPerKByteAvg,
		StatOutstandingGetAvgQueueSize,
		StatOutstandingGetAvgWaitTimeSec,
		StatOutstandingUpdateAvgQueueSize,
		StatOutstandingUpdateAvgWaitTimeSec,
	}
	for _, id := range ratios {
		if got := prepared.Float64(id); got != 0 {
			t.Errorf("%s: expected 0 with zero denominator, got %g", DefOf(id).Name, got)
		}
	}
}

func TestPrepareZeroShards(t *testing.T) {
	agg := NewAggregator(nil, nil, nil, time.Now(), "mcrouter test")

	prepared := agg.Prepare()
	if got := prepared.Float64(StatDurationUs); got != 0 {
		t.Errorf("expected 0 duration with no shards, got %g", got)
	}
	if got := agg.AggregateRate(StatRequestSuccess); got != 0 {
		t.Errorf("expected 0 rate with no shards, got %g", got)
	}
}

func TestPrepareShardAveragedGauges(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)

	s1.reg.SetFloat64(StatDurationUs, 100)
	s2.reg.SetFloat64(StatDurationUs, 300)

	prepared := newTestAggregator(s1, s2).Prepare()
	if got := prepared.Float64(StatDurationUs); got != 200 {
		t.Errorf("expected shard-averaged 200, got %g", got)
	}
}

func TestServerStatsFoldAcrossShards(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)

	d1 := s1.dests.Emplace("memc1:11211")
	d2 := s2.dests.Emplace("memc1:11211")
	d1.RecordResult(proto.ResultFound)
	d1.RecordResult(proto.ResultFound)
	d2.RecordResult(proto.ResultFound)
	d2.RecordResult(proto.ResultTimeout)
	d1.SetState(destination.StateUp)
	d2.SetState(destination.StateDown)

	agg := newTestAggregator(s1, s2)
	servers := agg.ServerStats()

	snap := servers["memc1:11211"]
	if snap == nil {
		t.Fatal("expected snapshot for memc1:11211")
	}
	if got := snap.Results[proto.ResultFound]; got != 3 {
		t.Errorf("expected 3 found results, got %d", got)
	}
	if got := snap.Results[proto.ResultTimeout]; got != 1 {
		t.Errorf("expected 1 timeout, got %d", got)
	}
	if snap.States[destination.StateUp] != 1 || snap.States[destination.StateDown] != 1 {
		t.Error("expected one shard up and one down")
	}
}

func TestServerStatsTkoOrReduced(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	s2 := newFakeSource(4, time.Second)
	s1.dests.Emplace("memc1:11211")
	s2.dests.Emplace("memc1:11211")

	tko := destination.NewTkoTracker(3)
	tko.RecordHardFailure("memc1:11211")

	sources := []Source{s1, s2}
	agg := NewAggregator(sources, tko, nil, time.Now(), "mcrouter test")

	snap := agg.ServerStats()["memc1:11211"]
	if snap == nil || !snap.HardTko {
		t.Fatal("any shard seeing a knockout must knock out the aggregate")
	}
}

func TestPrepareSuspectCount(t *testing.T) {
	s1 := newFakeSource(4, time.Second)
	tko := destination.NewTkoTracker(3)
	tko.RecordSoftFailure("memc1:11211")
	tko.RecordSoftFailure("memc2:11211")

	agg := NewAggregator([]Source{s1}, tko, nil, time.Now(), "mcrouter test")
	prepared := agg.Prepare()
	if got := prepared.Uint64(StatNumSuspectServers); got != 2 {
		t.Errorf("expected 2 suspect servers, got %d", got)
	}
}

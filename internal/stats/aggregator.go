package stats

import (
	"os"
	"sort"
	"time"

	"github.com/firewood/mcrouter/internal/destination"
)

// Source is one shard's contribution to an aggregated snapshot: its counter
// table, its windowed bins, and its destination map. Implemented by
// proxy.Shard.
type Source interface {
	StatsRegistry() *Registry
	StatsWindow() *Window
	Destinations() *destination.Map
}

// ConfigInfo exposes routing-configuration metadata to the aggregator.
type ConfigInfo interface {
	LastSuccess() uint64
	LastAttempt() uint64
	Failures() uint64
}

// Aggregator combines every shard's registry and window, plus the knockout
// tracker's health view, into one point-in-time snapshot. It only reads
// shard state; individual per-shard values may be mutually stale, but each
// snapshot is internally consistent per read pass.
type Aggregator struct {
	sources []Source
	tko     *destination.TkoTracker
	config  ConfigInfo
	start   time.Time
	version string
}

// NewAggregator builds an aggregator over a fixed set of shards. config may
// be nil when no config tracker is wired (tests).
func NewAggregator(sources []Source, tko *destination.TkoTracker, config ConfigInfo, start time.Time, version string) *Aggregator {
	return &Aggregator{
		sources: sources,
		tko:     tko,
		config:  config,
		start:   start,
		version: version,
	}
}

// Version returns the build identity string reported by the version query.
func (a *Aggregator) Version() string {
	return a.version
}

// binsUsed reports how many complete bins the window holds. All shards
// rotate on the same tick, so the first shard's count stands for all.
func (a *Aggregator) binsUsed() int {
	if len(a.sources) == 0 {
		return 0
	}
	return a.sources[0].StatsWindow().BinsUsed()
}

// AggregateRate sums every shard's within-window count and divides by the
// elapsed complete window time. Zero before the first bin rotation.
func (a *Aggregator) AggregateRate(id StatID) float64 {
	used := a.binsUsed()
	if used == 0 {
		return 0
	}
	var num uint64
	for _, src := range a.sources {
		num += src.StatsWindow().WithinWindow(id)
	}
	binDur := a.sources[0].StatsWindow().BinDuration()
	return float64(num) / (float64(used) * binDur.Seconds())
}

// AggregateMax returns the largest cross-shard bin sum the window retains.
func (a *Aggregator) AggregateMax(id StatID) uint64 {
	var max uint64
	for j := 0; j < a.binsUsed(); j++ {
		var binSum uint64
		for _, src := range a.sources {
			binSum += src.StatsWindow().BinValue(id, j)
		}
		if binSum > max {
			max = binSum
		}
	}
	return max
}

// AggregateMaxMax returns the largest single-shard single-bin value the
// window retains, never summed across shards.
func (a *Aggregator) AggregateMaxMax(id StatID) uint64 {
	var max uint64
	for j := 0; j < a.binsUsed(); j++ {
		for _, src := range a.sources {
			if v := src.StatsWindow().BinValue(id, j); v > max {
				max = v
			}
		}
	}
	return max
}

// windowSum adds up every shard's within-window count for a slot.
func (a *Aggregator) windowSum(id StatID) uint64 {
	var sum uint64
	for _, src := range a.sources {
		sum += src.StatsWindow().WithinWindow(id)
	}
	return sum
}

// ratio divides with a uniform zero-denominator guard.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Prepare builds a fresh consolidated registry: plain counters summed
// across shards, derived ratios computed from window sums, and the
// process-wide facts filled in from the host and the config tracker.
func (a *Aggregator) Prepare() *Registry {
	reg := NewRegistry()

	// Cross-shard sums for every aggregatable non-rate slot. Values are
	// loaded atomically so the handful of cross-thread gauges read clean.
	for id := StatID(0); id < NumStats; id++ {
		def := statDefs[id]
		if !def.Aggregate || def.Categories&CatRate != 0 {
			continue
		}
		for _, src := range a.sources {
			shardReg := src.StatsRegistry()
			switch def.Kind {
			case KindUint64:
				reg.Incr(id, shardReg.LoadSafe(id))
			case KindInt64:
				reg.SetInt64(id, reg.Int64(id)+shardReg.Int64(id))
			case KindFloat64:
				reg.AddFloat64(id, shardReg.Float64(id))
			default:
				panic("stats: cannot aggregate non-numerical slot " + def.Name)
			}
		}
	}

	// Derived ratios over the trailing window, all with the same
	// zero-denominator guard.
	batches := a.windowSum(StatDestBatchesSum)
	requests := a.windowSum(StatDestRequestsSum)
	reg.SetFloat64(StatDestBatchSize, ratio(float64(requests), float64(batches)))

	retransSum := a.windowSum(StatRetransPerKByteSum)
	retransNum := a.windowSum(StatRetransNumTotal)
	reg.SetFloat64(StatRetransPerKByteAvg, ratio(float64(retransSum), float64(retransNum)))

	getQueued := a.windowSum(StatOutstandingGetReqsQueued)
	getHelper := a.windowSum(StatOutstandingGetReqsHelper)
	getWaitUs := a.windowSum(StatOutstandingGetWaitTimeSumUs)
	reg.SetFloat64(StatOutstandingGetAvgQueueSize, ratio(float64(getHelper), float64(getQueued)))
	reg.SetFloat64(StatOutstandingGetAvgWaitTimeSec, ratio(float64(getWaitUs), 1e6*float64(getQueued)))

	updQueued := a.windowSum(StatOutstandingUpdateReqsQueued)
	updHelper := a.windowSum(StatOutstandingUpdateReqsHelper)
	updWaitUs := a.windowSum(StatOutstandingUpdateWaitTimeSumUs)
	reg.SetFloat64(StatOutstandingUpdateAvgQueueSize, ratio(float64(updHelper), float64(updQueued)))
	reg.SetFloat64(StatOutstandingUpdateAvgWaitTimeSec, ratio(float64(updWaitUs), 1e6*float64(updQueued)))

	// Shard-averaged gauges, guarded by shard count like every other ratio.
	var durationUs, notifyPeriod float64
	for _, src := range a.sources {
		durationUs += src.StatsRegistry().Float64(StatDurationUs)
		notifyPeriod += src.StatsRegistry().Float64(StatClientQueueNotifyPeriod)
	}
	reg.SetFloat64(StatDurationUs, ratio(durationUs, float64(len(a.sources))))
	reg.SetFloat64(StatClientQueueNotifyPeriod, ratio(notifyPeriod, float64(len(a.sources))))

	if a.tko != nil {
		reg.SetUint64(StatNumSuspectServers, a.tko.SuspectCount())
	}

	reg.SetString(StatCommandArgs, StandaloneArgs())
	reg.SetString(StatVersion, a.version)

	now := uint64(time.Now().Unix())
	startUnix := uint64(a.start.Unix())
	reg.SetUint64(StatTime, now)
	reg.SetUint64(StatStartTime, startUnix)
	reg.SetUint64(StatUptime, now-startUnix)

	if a.config != nil {
		lastSuccess := a.config.LastSuccess()
		reg.SetUint64(StatConfigLastSuccess, lastSuccess)
		reg.SetUint64(StatConfigLastAttempt, a.config.LastAttempt())
		reg.SetUint64(StatConfigFailures, a.config.Failures())
		if lastSuccess > 0 && now > lastSuccess {
			reg.SetUint64(StatConfigAge, now-lastSuccess)
		}
	}

	reg.SetInt64(StatPid, int64(os.Getpid()))
	reg.SetInt64(StatParentPid, int64(os.Getppid()))

	ps := getProcStat()
	reg.SetFloat64(StatRusageUser, ps.rusageUser)
	reg.SetFloat64(StatRusageSystem, ps.rusageSys)
	reg.SetUint64(StatPsNumMinorFaults, ps.minorFaults)
	reg.SetUint64(StatPsNumMajorFaults, ps.majorFaults)
	reg.SetFloat64(StatPsUserTimeSec, ps.userTimeSec)
	reg.SetFloat64(StatPsSystemTimeSec, ps.sysTimeSec)
	reg.SetUint64(StatPsRss, ps.rss)
	reg.SetUint64(StatPsVsize, ps.vsize)

	return reg
}

// ServerStats folds every shard's destination map into one snapshot per
// destination, keyed by host. A destination contacted from several shards
// contributes each shard's view.
func (a *Aggregator) ServerStats() map[string]*DestinationStatSnapshot {
	out := make(map[string]*DestinationStatSnapshot)
	for _, src := range a.sources {
		src.Destinations().ForEach(func(d *destination.Destination) {
			snap := out[d.Key()]
			if snap == nil {
				snap = NewDestinationStatSnapshot()
				out[d.Key()] = snap
			}
			var hard, soft bool
			if a.tko != nil {
				hard = a.tko.IsHardTko(d.Key())
				soft = a.tko.IsSoftTko(d.Key())
			}
			snap.Fold(d.Snapshot(), hard, soft)
		})
	}
	return out
}

// sortedKeys gives stable output ordering for map-backed sections.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

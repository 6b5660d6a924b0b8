package proxy

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/firewood/mcrouter/internal/config"
	"github.com/firewood/mcrouter/internal/destination"
	"github.com/firewood/mcrouter/internal/logging"
	"github.com/firewood/mcrouter/internal/proto"
	"github.com/firewood/mcrouter/internal/stats"
)

// Dispatcher is the routing layer consumed by the request lifecycle. It
// takes ownership of a validated context and eventually calls SendReply on
// it, exactly once.
type Dispatcher interface {
	Dispatch(req *proto.Request, ctx *RequestContext)
}

// ConfigSource provides the current immutable routing-configuration
// snapshot; contexts capture it at creation and hold it until destroyed.
type ConfigSource interface {
	Current() *config.Snapshot
}

// Shard is one independent worker of the router: a cooperative task loop,
// a private stat table with its windowed bins, and a private destination
// map. Only the shard's own goroutine mutates the table; the few gauges
// touched from connection goroutines go through the atomic stat variants.
type Shard struct {
	id         int
	reg        *stats.Registry
	win        *stats.Window
	dests      *destination.Map
	dispatcher Dispatcher
	cfgSource  ConfigSource
	log        *zap.Logger

	loop        *loop
	tearingDown atomic.Bool
}

// ShardOptions configures a shard.
type ShardOptions struct {
	ID          int
	NumBins     int
	BinDuration time.Duration
	Dispatcher  Dispatcher
	Configs     ConfigSource
}

// NewShard creates a shard with a fresh stat table and destination map.
func NewShard(opts ShardOptions) *Shard {
	return &Shard{
		id:         opts.ID,
		reg:        stats.NewRegistry(),
		win:        stats.NewWindow(opts.NumBins, opts.BinDuration),
		dests:      destination.NewMap(),
		dispatcher: opts.Dispatcher,
		cfgSource:  opts.Configs,
		log:        logging.Shard(opts.ID),
		loop:       newLoop(),
	}
}

// ID returns the shard index.
func (s *Shard) ID() int { return s.id }

// StatsRegistry implements stats.Source.
func (s *Shard) StatsRegistry() *stats.Registry { return s.reg }

// StatsWindow implements stats.Source.
func (s *Shard) StatsWindow() *stats.Window { return s.win }

// Destinations implements stats.Source.
func (s *Shard) Destinations() *destination.Map { return s.dests }

// Logger returns the shard-tagged logger.
func (s *Shard) Logger() *zap.Logger { return s.log }

// Run drives the shard's cooperative loop until ctx is cancelled. The
// queue-wait observer maintains the notify-period gauge; everything else a
// task records, it records itself. Cancellation flags teardown before the
// loop's final drain, so requests still queued resolve with the fixed
// unknown result instead of being dropped.
func (s *Shard) Run(ctx context.Context) {
	s.loop.run(ctx, func(qt queuedTask, wait time.Duration) {
		// Nine-to-one moving average over task queue latency.
		prev := s.reg.Float64(stats.StatClientQueueNotifyPeriod)
		us := float64(wait.Microseconds())
		if prev == 0 {
			s.reg.SetFloat64(stats.StatClientQueueNotifyPeriod, us)
		} else {
			s.reg.SetFloat64(stats.StatClientQueueNotifyPeriod, prev*0.9+us*0.1)
		}
	}, s.BeginTeardown)
}

// Submit enqueues a task onto the shard loop. Safe from any goroutine.
func (s *Shard) Submit(fn Task) {
	s.loop.submit(fn)
}

// Defer schedules fn for a later, non-nested loop pass. Context destruction
// goes through here so teardown work never runs on a deep reply stack.
func (s *Shard) Defer(fn Task) {
	s.loop.submit(fn)
}

// SubmitRequest enqueues a request task and, once the task starts on the
// shard goroutine, accounts one queued request, the queue depth seen at
// enqueue and the queue wait in the outstanding-route stats. Gets feed the
// get trio; mutations feed the update trio.
func (s *Shard) SubmitRequest(kind proto.RequestKind, fn Task) {
	queued, helper, waitSum := stats.StatOutstandingGetReqsQueued,
		stats.StatOutstandingGetReqsHelper, stats.StatOutstandingGetWaitTimeSumUs
	if kind == proto.KindSet || kind == proto.KindDelete {
		queued, helper, waitSum = stats.StatOutstandingUpdateReqsQueued,
			stats.StatOutstandingUpdateReqsHelper, stats.StatOutstandingUpdateWaitTimeSumUs
	}
	depth := uint64(s.loop.pendingLen())
	enqueued := time.Now()
	s.loop.submit(func() {
		s.StatIncr(queued, 1)
		s.StatIncr(helper, depth)
		s.StatIncr(waitSum, uint64(time.Since(enqueued).Microseconds()))
		fn()
	})
}

// countInbound bumps the per-kind inbound command counters. Shard
// goroutine only.
func (s *Shard) countInbound(kind proto.RequestKind) {
	switch kind {
	case proto.KindGet:
		s.StatIncr(stats.StatCmdGet, 1)
		s.StatIncr(stats.StatCmdGetCount, 1)
	case proto.KindSet:
		s.StatIncr(stats.StatCmdSet, 1)
		s.StatIncr(stats.StatCmdSetCount, 1)
	case proto.KindDelete:
		s.StatIncr(stats.StatCmdDelete, 1)
		s.StatIncr(stats.StatCmdDeleteCount, 1)
	case proto.KindStats:
		s.StatIncr(stats.StatCmdStats, 1)
		s.StatIncr(stats.StatCmdStatsCount, 1)
	case proto.KindVersion:
		s.StatIncr(stats.StatCmdVersion, 1)
		s.StatIncr(stats.StatCmdVersionCount, 1)
	default:
		s.StatIncr(stats.StatCmdOther, 1)
		s.StatIncr(stats.StatCmdOtherCount, 1)
	}
}

// CountInbound records one inbound command from off the shard goroutine.
// The connection handler uses it for stats and version, which it answers
// inline without building a request context.
func (s *Shard) CountInbound(kind proto.RequestKind) {
	s.Submit(func() { s.countInbound(kind) })
}

// StatIncr bumps a counter and, for windowed slots, the current bin.
// Shard goroutine only.
func (s *Shard) StatIncr(id stats.StatID, delta uint64) {
	s.reg.Incr(id, delta)
	if stats.DefOf(id).Categories&(stats.CatRate|stats.CatMax|stats.CatMaxMax) != 0 {
		s.win.Record(id, delta)
	}
}

// RotateBins closes the current stat bin. Runs on the shard loop so bin
// state keeps its single-writer discipline.
func (s *Shard) RotateBins() {
	s.loop.submit(func() {
		s.win.Rotate()
	})
}

// RecordRequestDuration folds one request's total duration into the
// duration gauge, weighting history at 9:1.
func (s *Shard) RecordRequestDuration(d time.Duration) {
	us := float64(d.Microseconds())
	prev := s.reg.Float64(stats.StatDurationUs)
	if prev == 0 {
		s.reg.SetFloat64(stats.StatDurationUs, us)
		return
	}
	s.reg.SetFloat64(stats.StatDurationUs, prev*0.9+us*0.1)
}

// BeginTeardown flags the shard as shutting down. Requests that have not
// dispatched yet fail with an unknown-result reply instead of routing.
func (s *Shard) BeginTeardown() {
	s.tearingDown.Store(true)
}

// TearingDown reports whether teardown has begun.
func (s *Shard) TearingDown() bool {
	return s.tearingDown.Load()
}

// routeConfig returns the routing options in effect, falling back to
// defaults when no config source is wired (tests).
func (s *Shard) routeConfig() *config.Snapshot {
	if s.cfgSource == nil {
		return nil
	}
	return s.cfgSource.Current()
}

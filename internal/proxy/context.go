package proxy

import (
	"time"

	"github.com/firewood/mcrouter/internal/config"
	"github.com/firewood/mcrouter/internal/proto"
	"github.com/firewood/mcrouter/internal/stats"
)

// CtxState tracks a request context through its lifecycle.
type CtxState int

const (
	CtxCreated CtxState = iota
	CtxValidated
	CtxDispatched
	CtxReplied
	CtxDestroyed
)

func (s CtxState) String() string {
	switch s {
	case CtxCreated:
		return "created"
	case CtxValidated:
		return "validated"
	case CtxDispatched:
		return "dispatched"
	case CtxReplied:
		return "replied"
	case CtxDestroyed:
		return "destroyed"
	}
	return "invalid"
}

// ReplyCallback receives the original request and its terminal reply. It is
// invoked at most once per context, on the shard goroutine, after the
// reply-guard has flipped, so it may safely do unrelated work.
type ReplyCallback func(req *proto.Request, reply *proto.Reply)

// RequestContext owns one in-flight request from arrival to reply. It is
// exclusively owned by the dispatch pipeline until the terminal reply; all
// methods run on the owning shard's goroutine, which is why the replied
// flag needs no synchronization. If replies ever arrive cross-thread, that
// flag must become a compare-and-swap.
type RequestContext struct {
	s       *Shard
	req     *proto.Request
	onReply ReplyCallback
	cfg     *config.Snapshot

	state     CtxState
	replied   bool
	recording bool
	destroyed bool

	started time.Time
}

// NewContext creates a context for a request arriving on a shard, capturing
// the current routing-configuration snapshot.
func NewContext(s *Shard, req *proto.Request, onReply ReplyCallback) *RequestContext {
	return &RequestContext{
		s:       s,
		req:     req,
		onReply: onReply,
		cfg:     s.routeConfig(),
		state:   CtxCreated,
		started: time.Now(),
	}
}

// Shard returns the owning shard.
func (c *RequestContext) Shard() *Shard { return c.s }

// State returns the lifecycle state, for tests and logging.
func (c *RequestContext) State() CtxState { return c.state }

// Config returns the routing-configuration snapshot captured at creation.
func (c *RequestContext) Config() *config.Snapshot { return c.cfg }

// StartRecording puts the context into trace/replay mode: SendReply becomes
// a silent no-op and no counters move.
func (c *RequestContext) StartRecording() {
	c.recording = true
}

// Replied reports whether the terminal reply has been produced.
func (c *RequestContext) Replied() bool { return c.replied }

// StartProcessing validates the request and hands it to the routing layer.
// Validation failures and teardown resolve locally into an immediate error
// reply; there are no retries at this layer.
func (c *RequestContext) StartProcessing() {
	c.s.countInbound(c.req.Kind)

	if !precheck(c) {
		// Precheck already sent the error reply.
		return
	}
	c.state = CtxValidated

	if c.s.TearingDown() {
		// The config is gone and the clients are winding down; nothing
		// meaningful could come back from a dispatch now.
		c.s.Logger().Error("outstanding request on a shard being torn down")
		c.SendReply(&proto.Reply{Result: proto.ResultUnknown})
		return
	}

	c.state = CtxDispatched
	c.s.dispatcher.Dispatch(c.req, c)
}

// SendReply produces the terminal reply. It is the only path to the Replied
// state and is idempotent by construction: the second and later invocations
// are silent no-ops, as is any invocation in recording mode. On the first
// reply the completion callback runs, the result is classified into the
// shard's counters, the stored request is released, and destruction is
// deferred to a later loop pass.
func (c *RequestContext) SendReply(reply *proto.Reply) {
	if c.recording {
		return
	}
	if c.replied {
		return
	}
	c.replied = true
	c.state = CtxReplied
	result := reply.Result

	if c.onReply != nil {
		c.onReply(c.req, reply)
	}
	c.req = nil

	c.s.StatIncr(stats.StatRequestReplied, 1)
	c.s.StatIncr(stats.StatRequestRepliedCount, 1)
	if result.IsError() {
		c.s.StatIncr(stats.StatRequestError, 1)
		c.s.StatIncr(stats.StatRequestErrorCount, 1)
	} else {
		c.s.StatIncr(stats.StatRequestSuccess, 1)
		c.s.StatIncr(stats.StatRequestSuccessCount, 1)
	}
	c.s.RecordRequestDuration(time.Since(c.started))

	// Destruction can do non-trivial work (final bookkeeping, dropping a
	// long-lived config snapshot); run it on a fresh loop pass instead of
	// whatever reply stack we are on.
	c.s.Defer(c.destroy)
}

// destroy runs the deferred final teardown. Destroying twice is a
// programming error.
func (c *RequestContext) destroy() {
	if c.destroyed {
		panic("proxy: request context destroyed twice")
	}
	c.destroyed = true
	c.state = CtxDestroyed
	c.cfg = nil
}

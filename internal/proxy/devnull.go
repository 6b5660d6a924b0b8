package proxy

import (
	"github.com/firewood/mcrouter/internal/proto"
	"github.com/firewood/mcrouter/internal/stats"
)

// DevNullRoute is the built-in terminal route: it swallows every request
// and replies the kind's default result. The real routing layer replaces it
// through the Dispatcher interface; DevNullRoute keeps the proxy usable
// (and testable) without one.
type DevNullRoute struct{}

// defaultReplyResult mirrors what a cache that stores nothing would answer.
func defaultReplyResult(kind proto.RequestKind) proto.ResultCode {
	switch kind {
	case proto.KindGet:
		return proto.ResultNotFound
	case proto.KindSet:
		return proto.ResultStored
	case proto.KindDelete:
		return proto.ResultDeleted
	default:
		return proto.ResultOK
	}
}

// Dispatch implements Dispatcher. Runs on the shard goroutine, so plain
// stat increments are safe.
func (DevNullRoute) Dispatch(req *proto.Request, ctx *RequestContext) {
	s := ctx.Shard()
	s.StatIncr(stats.StatDevNullRequests, 1)
	switch req.Kind {
	case proto.KindGet:
		s.StatIncr(stats.StatCmdGetOut, 1)
		s.StatIncr(stats.StatCmdGetOutCount, 1)
	case proto.KindSet:
		s.StatIncr(stats.StatCmdSetOut, 1)
		s.StatIncr(stats.StatCmdSetOutCount, 1)
	case proto.KindDelete:
		s.StatIncr(stats.StatCmdDeleteOut, 1)
		s.StatIncr(stats.StatCmdDeleteOutCount, 1)
	}
	s.StatIncr(stats.StatRequestSent, 1)
	s.StatIncr(stats.StatRequestSentCount, 1)
	ctx.SendReply(&proto.Reply{Result: defaultReplyResult(req.Kind)})
}

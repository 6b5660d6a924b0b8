package proxy

import "github.com/firewood/mcrouter/internal/proto"

const commandNotSupportedMsg = "Command not supported"

// precheckFn validates one request kind. It returns true when the request
// may proceed; otherwise it has already sent the error reply.
type precheckFn func(*RequestContext) bool

// prechecks maps request kind to its validation function. The table is the
// single dispatch point for per-kind validation.
var prechecks = [proto.NumKinds]precheckFn{
	proto.KindGet:      precheckKey,
	proto.KindSet:      precheckKey,
	proto.KindDelete:   precheckKey,
	proto.KindStats:    precheckAlways,
	proto.KindVersion:  precheckAlways,
	proto.KindShutdown: precheckShutdown,
	proto.KindFlushAll: precheckFlushAll,
	proto.KindFlushRe:  precheckFlushRe,
}

func precheck(c *RequestContext) bool {
	fn := prechecks[c.req.Kind]
	if fn == nil {
		fn = precheckKey
	}
	return fn(c)
}

// precheckKey rejects malformed keys with a local error naming the defect.
func precheckKey(c *RequestContext) bool {
	if err := proto.ValidateKey(c.req.Key); err != proto.KeyErrValid {
		c.SendReply(&proto.Reply{
			Result:  proto.ResultLocalError,
			Message: err.String(),
		})
		return false
	}
	return true
}

func precheckAlways(*RequestContext) bool {
	return true
}

// precheckShutdown pretends to not even understand the command.
func precheckShutdown(c *RequestContext) bool {
	c.SendReply(&proto.Reply{Result: proto.ResultBadCommand})
	return false
}

// precheckFlushAll honors the flush enable switch in the routing config.
func precheckFlushAll(c *RequestContext) bool {
	enabled := false
	if c.cfg != nil {
		enabled = c.cfg.Config().Route.EnableFlushCmd
	}
	if !enabled {
		c.SendReply(&proto.Reply{
			Result:  proto.ResultLocalError,
			Message: "Command disabled",
		})
		return false
	}
	return true
}

// precheckFlushRe is deliberately unsupported in this process.
func precheckFlushRe(c *RequestContext) bool {
	c.SendReply(&proto.Reply{
		Result:  proto.ResultLocalError,
		Message: commandNotSupportedMsg,
	})
	return false
}

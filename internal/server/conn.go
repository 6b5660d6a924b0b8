package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/firewood/mcrouter/internal/logging"
	"github.com/firewood/mcrouter/internal/proto"
	"github.com/firewood/mcrouter/internal/proxy"
	"github.com/firewood/mcrouter/internal/stats"
)

const crlf = "\r\n"

// handleConn speaks the memcached ASCII protocol on one client connection.
// Commands are serial: one outstanding request per connection, matching the
// suspend-until-reply model of the request tasks.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	shard := s.shardFor(conn.RemoteAddr().String())
	reg := shard.StatsRegistry()
	reg.IncrSafe(stats.StatClientConnections)
	defer reg.DecrSafe(stats.StatClientConnections)

	log := logging.With(
		zap.String("conn", uuid.NewString()),
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("shard", shard.ID()),
	)
	log.Debug("client connected")

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		if ctx.Err() != nil {
			return
		}
		line, err := r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("client read error", zap.Error(err))
			}
			return
		}
		line = strings.TrimRight(line, crlf)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := fields[0]

		switch cmd {
		case "quit":
			return
		case "version":
			shard.CountInbound(proto.KindVersion)
			writeLine(w, "VERSION "+s.agg.Version())
		case "stats":
			shard.CountInbound(proto.KindStats)
			group := ""
			if len(fields) > 1 {
				group = fields[1]
			}
			s.writeStats(w, group)
		default:
			req, perr := parseCommand(cmd, fields, r)
			if perr != "" {
				writeLine(w, "CLIENT_ERROR "+perr)
				continue
			}
			reply := s.roundtrip(shard, req)
			writeReply(w, req, reply)
		}

		if err := w.Flush(); err != nil {
			log.Debug("client write error", zap.Error(err))
			return
		}
	}
}

// roundtrip runs one request through the context pipeline on its shard and
// blocks until the terminal reply arrives.
func (s *Server) roundtrip(shard *proxy.Shard, req *proto.Request) *proto.Reply {
	reg := shard.StatsRegistry()
	reg.IncrSafe(stats.StatProxyReqsWaiting)

	ch := make(chan *proto.Reply, 1)
	rctx := proxy.NewContext(shard, req, func(_ *proto.Request, reply *proto.Reply) {
		ch <- reply
	})
	shard.SubmitRequest(req.Kind, func() {
		reg.DecrSafe(stats.StatProxyReqsWaiting)
		reg.IncrSafe(stats.StatProxyReqsProcessing)
		rctx.StartProcessing()
		reg.DecrSafe(stats.StatProxyReqsProcessing)
	})
	return <-ch
}

// parseCommand turns one ASCII command line (plus, for set, its data block)
// into a request. Returns a client-error message on malformed input.
func parseCommand(cmd string, fields []string, r *bufio.Reader) (*proto.Request, string) {
	switch cmd {
	case "get":
		if len(fields) != 2 {
			return nil, "usage: get <key>"
		}
		return &proto.Request{Kind: proto.KindGet, Key: fields[1]}, ""

	case "set":
		if len(fields) != 5 {
			return nil, "usage: set <key> <flags> <exptime> <bytes>"
		}
		flags, err1 := strconv.ParseUint(fields[2], 10, 32)
		exptime, err2 := strconv.ParseInt(fields[3], 10, 32)
		size, err3 := strconv.ParseInt(fields[4], 10, 31)
		if err1 != nil || err2 != nil || err3 != nil || size < 0 {
			return nil, "bad data chunk"
		}
		data := make([]byte, size+2) // trailing CRLF
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, "bad data chunk"
		}
		return &proto.Request{
			Kind:    proto.KindSet,
			Key:     fields[1],
			Value:   data[:size],
			Flags:   uint32(flags),
			Exptime: int32(exptime),
		}, ""

	case "delete":
		if len(fields) != 2 {
			return nil, "usage: delete <key>"
		}
		return &proto.Request{Kind: proto.KindDelete, Key: fields[1]}, ""

	case "shutdown":
		return &proto.Request{Kind: proto.KindShutdown}, ""

	case "flush_all":
		return &proto.Request{Kind: proto.KindFlushAll}, ""

	case "flush_regex":
		return &proto.Request{Kind: proto.KindFlushRe}, ""
	}
	return nil, "unknown command " + cmd
}

// writeStats renders a stats query as STAT lines. An unrecognized group is
// a client error and takes no snapshot.
func (s *Server) writeStats(w *bufio.Writer, group string) {
	pairs, err := s.svc.Query(group)
	if err != nil {
		writeLine(w, "CLIENT_ERROR "+err.Error())
		return
	}
	for _, p := range pairs {
		writeLine(w, "STAT "+p.Name+" "+p.Value)
	}
	writeLine(w, "END")
}

// writeReply renders a terminal reply in the wire dialect of its command.
func writeReply(w *bufio.Writer, req *proto.Request, reply *proto.Reply) {
	switch reply.Result {
	case proto.ResultBadCommand:
		writeLine(w, "ERROR")
		return
	case proto.ResultClientError:
		writeLine(w, "CLIENT_ERROR "+reply.Message)
		return
	case proto.ResultLocalError, proto.ResultRemoteError, proto.ResultUnknown,
		proto.ResultTimeout, proto.ResultConnectError, proto.ResultBusy,
		proto.ResultTKO:
		msg := reply.Message
		if msg == "" {
			msg = reply.Result.String()
		}
		writeLine(w, "SERVER_ERROR "+msg)
		return
	}

	switch req.Kind {
	case proto.KindGet:
		if reply.Result == proto.ResultFound {
			writeLine(w, "VALUE "+req.Key+" "+strconv.FormatUint(uint64(req.Flags), 10)+
				" "+strconv.Itoa(len(reply.Value)))
			w.Write(reply.Value)
			w.WriteString(crlf)
		}
		writeLine(w, "END")
	case proto.KindSet:
		if reply.Result == proto.ResultStored {
			writeLine(w, "STORED")
		} else {
			writeLine(w, "NOT_STORED")
		}
	case proto.KindDelete:
		if reply.Result == proto.ResultDeleted {
			writeLine(w, "DELETED")
		} else {
			writeLine(w, "NOT_FOUND")
		}
	default:
		writeLine(w, "OK")
	}
}

func writeLine(w *bufio.Writer, line string) {
	w.WriteString(line)
	w.WriteString(crlf)
}

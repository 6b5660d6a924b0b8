package server

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/firewood/mcrouter/internal/config"
	"github.com/firewood/mcrouter/internal/proto"
	"github.com/firewood/mcrouter/internal/stats"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		data    string
		want    *proto.Request
		wantErr bool
	}{
		{"get", "get foo", "", &proto.Request{Kind: proto.KindGet, Key: "foo"}, false},
		{"get no key", "get", "", nil, true},
		{"get extra args", "get a b", "", nil, true},
		{"delete", "delete foo", "", &proto.Request{Kind: proto.KindDelete, Key: "foo"}, false},
		{"shutdown", "shutdown", "", &proto.Request{Kind: proto.KindShutdown}, false},
		{"flush_all", "flush_all", "", &proto.Request{Kind: proto.KindFlushAll}, false},
		{"flush_regex", "flush_regex", "", &proto.Request{Kind: proto.KindFlushRe}, false},
		{"unknown", "bogus foo", "", nil, true},
		{"set", "set foo 7 0 5", "hello\r\n",
			&proto.Request{Kind: proto.KindSet, Key: "foo", Value: []byte("hello"), Flags: 7}, false},
		{"set bad size", "set foo 0 0 nope", "", nil, true},
		{"set negative size", "set foo 0 0 -1", "", nil, true},
		{"set short data", "set foo 0 0 5", "hi\r\n", nil, true},
		{"set missing args", "set foo 0 0", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := strings.Fields(tt.line)
			r := bufio.NewReader(strings.NewReader(tt.data))
			req, perr := parseCommand(fields[0], fields, r)

			if tt.wantErr {
				if perr == "" {
					t.Fatalf("expected a client error, got %+v", req)
				}
				return
			}
			if perr != "" {
				t.Fatalf("unexpected client error %q", perr)
			}
			if req.Kind != tt.want.Kind || req.Key != tt.want.Key ||
				req.Flags != tt.want.Flags || !bytes.Equal(req.Value, tt.want.Value) {
				t.Errorf("got %+v, want %+v", req, tt.want)
			}
		})
	}
}

func renderReply(req *proto.Request, reply *proto.Reply) string {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeReply(w, req, reply)
	w.Flush()
	return buf.String()
}

func TestWriteReply(t *testing.T) {
	getReq := &proto.Request{Kind: proto.KindGet, Key: "foo", Flags: 7}
	tests := []struct {
		name  string
		req   *proto.Request
		reply *proto.Reply
		want  string
	}{
		{"bad command", getReq, &proto.Reply{Result: proto.ResultBadCommand},
			"ERROR\r\n"},
		{"client error", getReq,
			&proto.Reply{Result: proto.ResultClientError, Message: "bad key"},
			"CLIENT_ERROR bad key\r\n"},
		{"local error", getReq,
			&proto.Reply{Result: proto.ResultLocalError, Message: "Command disabled"},
			"SERVER_ERROR Command disabled\r\n"},
		{"error without message", getReq, &proto.Reply{Result: proto.ResultTimeout},
			"SERVER_ERROR timeout\r\n"},
		{"get hit", getReq,
			&proto.Reply{Result: proto.ResultFound, Value: []byte("hello")},
			"VALUE foo 7 5\r\nhello\r\nEND\r\n"},
		{"get miss", getReq, &proto.Reply{Result: proto.ResultNotFound},
			"END\r\n"},
		{"set stored", &proto.Request{Kind: proto.KindSet, Key: "foo"},
			&proto.Reply{Result: proto.ResultStored}, "STORED\r\n"},
		{"set refused", &proto.Request{Kind: proto.KindSet, Key: "foo"},
			&proto.Reply{Result: proto.ResultNotStored}, "NOT_STORED\r\n"},
		{"delete hit", &proto.Request{Kind: proto.KindDelete, Key: "foo"},
			&proto.Reply{Result: proto.ResultDeleted}, "DELETED\r\n"},
		{"delete miss", &proto.Request{Kind: proto.KindDelete, Key: "foo"},
			&proto.Reply{Result: proto.ResultNotFound}, "NOT_FOUND\r\n"},
		{"flush ok", &proto.Request{Kind: proto.KindFlushAll},
			&proto.Reply{Result: proto.ResultOK}, "OK\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderReply(tt.req, tt.reply); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// newTestServer builds a one-shard server from a temp config and starts its
// shard loops. The listener is not started; tests drive handleConn directly.
func newTestServer(t *testing.T, ctx context.Context) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcrouter.yaml")
	cfgYAML := "num_proxies: 1\nroute:\n  destinations: [\"memc1:11211\"]\n" +
		"stats:\n  num_bins: 4\n  bin_duration: 1s\n"
	if err := os.WriteFile(path, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	tracker, err := config.NewTracker(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tracker.Stop)

	srv := New(tracker, nil)
	for _, sh := range srv.Shards() {
		sh := sh
		go sh.Run(ctx)
	}
	return srv
}

func TestConnRoundtrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newTestServer(t, ctx)

	client, remote := net.Pipe()
	defer client.Close()
	go srv.handleConn(ctx, remote)

	client.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(client)

	readLine := func() string {
		t.Helper()
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		return strings.TrimRight(line, crlf)
	}
	send := func(s string) {
		t.Helper()
		if _, err := client.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}

	send("version\r\n")
	if got := readLine(); got != "VERSION "+PackageString {
		t.Errorf("version: got %q", got)
	}

	// Dev-null routing: gets miss, sets store, deletes delete.
	send("get foo\r\n")
	if got := readLine(); got != "END" {
		t.Errorf("get: got %q", got)
	}

	send("set foo 0 0 5\r\nhello\r\n")
	if got := readLine(); got != "STORED" {
		t.Errorf("set: got %q", got)
	}

	send("delete foo\r\n")
	if got := readLine(); got != "DELETED" {
		t.Errorf("delete: got %q", got)
	}

	send("get bad key\r\n")
	if got := readLine(); !strings.HasPrefix(got, "CLIENT_ERROR") {
		t.Errorf("malformed get: got %q", got)
	}

	send("shutdown\r\n")
	if got := readLine(); got != "ERROR" {
		t.Errorf("shutdown: got %q", got)
	}

	send("flush_regex\r\n")
	if got := readLine(); got != "SERVER_ERROR Command not supported" {
		t.Errorf("flush_regex: got %q", got)
	}

	send("flush_all\r\n")
	if got := readLine(); got != "SERVER_ERROR Command disabled" {
		t.Errorf("flush_all: got %q", got)
	}

	send("stats bogus\r\n")
	if got := readLine(); got != "CLIENT_ERROR bad stats command" {
		t.Errorf("bad stats: got %q", got)
	}

	send("stats\r\n")
	sawUptime := false
	for {
		line := readLine()
		if line == "END" {
			break
		}
		if !strings.HasPrefix(line, "STAT ") {
			t.Fatalf("unexpected stats line %q", line)
		}
		if strings.HasPrefix(line, "STAT uptime ") {
			sawUptime = true
		}
	}
	if !sawUptime {
		t.Error("basic stats must include uptime")
	}
}

func TestConnCountsInlineCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newTestServer(t, ctx)

	client, remote := net.Pipe()
	defer client.Close()
	go srv.handleConn(ctx, remote)

	client.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(client)

	readLine := func() string {
		t.Helper()
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		return strings.TrimRight(line, crlf)
	}

	if _, err := client.Write([]byte("version\r\n")); err != nil {
		t.Fatal(err)
	}
	readLine()

	if _, err := client.Write([]byte("stats\r\n")); err != nil {
		t.Fatal(err)
	}
	for readLine() != "END" {
	}

	// A roundtripped command serializes behind the counting tasks on the
	// shard loop, so once its reply is back, the counts have landed.
	if _, err := client.Write([]byte("get foo\r\n")); err != nil {
		t.Fatal(err)
	}
	if got := readLine(); got != "END" {
		t.Fatalf("get: got %q", got)
	}

	reg := srv.shardFor(remote.RemoteAddr().String()).StatsRegistry()
	if n := reg.LoadSafe(stats.StatCmdVersionCount); n != 1 {
		t.Errorf("cmd_version_count = %d, want 1", n)
	}
	if n := reg.LoadSafe(stats.StatCmdStatsCount); n != 1 {
		t.Errorf("cmd_stats_count = %d, want 1", n)
	}
	if n := reg.LoadSafe(stats.StatCmdGetCount); n != 1 {
		t.Errorf("cmd_get_count = %d, want 1", n)
	}
}

func TestConnQuitCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newTestServer(t, ctx)

	client, remote := net.Pipe()
	defer client.Close()
	go srv.handleConn(ctx, remote)

	client.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := client.Write([]byte("quit\r\n")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Error("expected the connection to close after quit")
	}
}

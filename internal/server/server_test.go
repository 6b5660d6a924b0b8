package server

import (
	"context"
	"testing"
)

func TestShardAssignmentIsSticky(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newTestServer(t, ctx)

	a := srv.shardFor("10.0.0.1:50001")
	for i := 0; i < 10; i++ {
		if srv.shardFor("10.0.0.1:50001") != a {
			t.Fatal("same address must map to the same shard")
		}
	}
}

func TestNewSeedsDestinations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newTestServer(t, ctx)

	for _, sh := range srv.Shards() {
		if sh.Destinations().Lookup("memc1:11211") == nil {
			t.Errorf("shard %d missing configured destination", sh.ID())
		}
	}
}

func TestBeginTeardownFlagsAllShards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newTestServer(t, ctx)

	srv.beginTeardown()
	for _, sh := range srv.Shards() {
		if !sh.TearingDown() {
			t.Errorf("shard %d not flagged", sh.ID())
		}
	}
}

func TestMetricName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"uptime", "uptime"},
		{"client_queue_notify_period_us", "client_queue_notify_period_us"},
		{"Some-Name.v2", "some_name_v2"},
	}
	for _, tt := range tests {
		if got := metricName(tt.in); got != tt.want {
			t.Errorf("metricName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

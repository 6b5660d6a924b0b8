package server

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/firewood/mcrouter/internal/config"
	"github.com/firewood/mcrouter/internal/destination"
	"github.com/firewood/mcrouter/internal/logging"
	"github.com/firewood/mcrouter/internal/proxy"
	"github.com/firewood/mcrouter/internal/stats"
)

// PackageString is the identity reported by the version command and the
// mcrouter-version stat.
const PackageString = "mcrouter 1.0.0 firewood"

// Server wires the serving core together: worker shards, the knockout
// tracker, the stats aggregation pipeline, the client-facing ASCII listener
// and the admin HTTP endpoint.
type Server struct {
	tracker *config.Tracker
	shards  []*proxy.Shard
	tko     *destination.TkoTracker
	agg     *stats.Aggregator
	svc     *stats.Service

	listener net.Listener
	start    time.Time
}

// New builds a server from a loaded configuration tracker. dispatcher may
// be nil, in which case the built-in dev-null route is used.
func New(tracker *config.Tracker, dispatcher proxy.Dispatcher) *Server {
	cfg := tracker.Current().Config()
	if dispatcher == nil {
		dispatcher = proxy.DevNullRoute{}
	}

	tko := destination.NewTkoTracker(cfg.Route.TkoFailureLimit)

	shards := make([]*proxy.Shard, cfg.NumProxies)
	sources := make([]stats.Source, cfg.NumProxies)
	for i := range shards {
		shards[i] = proxy.NewShard(proxy.ShardOptions{
			ID:          i,
			NumBins:     cfg.Stats.NumBins,
			BinDuration: cfg.Stats.BinDuration,
			Dispatcher:  dispatcher,
			Configs:     tracker,
		})
		// Seed the per-shard destination maps so server stats list every
		// configured backend even before traffic reaches it.
		for _, host := range cfg.Route.Destinations {
			shards[i].Destinations().Emplace(host)
		}
		sources[i] = shards[i]
	}

	start := time.Now()
	agg := stats.NewAggregator(sources, tko, tracker, start, PackageString)

	return &Server{
		tracker: tracker,
		shards:  shards,
		tko:     tko,
		agg:     agg,
		svc:     stats.NewService(agg),
		start:   start,
	}
}

// Shards exposes the worker shards to the routing layer.
func (s *Server) Shards() []*proxy.Shard { return s.shards }

// Tko exposes the knockout tracker to the routing layer.
func (s *Server) Tko() *destination.TkoTracker { return s.tko }

// shardFor assigns a client connection to a shard by remote address hash,
// so one client's requests stay ordered on one worker.
func (s *Server) shardFor(remoteAddr string) *proxy.Shard {
	h := xxhash.Sum64String(remoteAddr)
	return s.shards[h%uint64(len(s.shards))]
}

// Run serves until ctx is cancelled: shard loops, the bin-rotation ticker,
// the ASCII listener and the admin server all run under one group.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.tracker.Current().Config()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	s.listener = ln
	logging.Info("listening", zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)

	for _, sh := range s.shards {
		sh := sh
		g.Go(func() error {
			sh.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Stats.BinDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, sh := range s.shards {
					sh.RotateBins()
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		s.beginTeardown()
		ln.Close()
		return nil
	})

	g.Go(func() error {
		return s.acceptLoop(ctx, ln)
	})

	if cfg.Admin != "" {
		g.Go(func() error {
			return s.runAdmin(ctx, cfg.Admin)
		})
	}

	return g.Wait()
}

// beginTeardown flags every shard; requests not yet dispatched fail with
// the fixed unknown result from here on.
func (s *Server) beginTeardown() {
	for _, sh := range s.shards {
		sh.BeginTeardown()
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/firewood/mcrouter/internal/logging"
	"github.com/firewood/mcrouter/internal/stats"
)

// runAdmin serves the admin HTTP surface: Prometheus metrics built from the
// aggregated snapshot, and a liveness probe.
func (s *Server) runAdmin(ctx context.Context, addr string) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(&statsCollector{agg: s.agg})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("admin server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// statsCollector exports the aggregated stat table on every scrape. It is
// an unchecked collector: the slot set is static but the values are
// computed per scrape, so Describe stays silent.
type statsCollector struct {
	agg *stats.Aggregator
}

func (c *statsCollector) Describe(chan<- *prometheus.Desc) {}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	prepared := c.agg.Prepare()

	for id := stats.StatID(0); id < stats.NumStats; id++ {
		def := stats.DefOf(id)
		if def.Kind == stats.KindString {
			continue
		}

		var value float64
		switch {
		case def.Categories&stats.CatRate != 0:
			value = c.agg.AggregateRate(id)
		case def.Categories&stats.CatMax != 0:
			value = float64(c.agg.AggregateMax(id))
		case def.Categories&stats.CatMaxMax != 0:
			value = float64(c.agg.AggregateMaxMax(id))
		case def.Kind == stats.KindUint64:
			value = float64(prepared.Uint64(id))
		case def.Kind == stats.KindInt64:
			value = float64(prepared.Int64(id))
		default:
			value = prepared.Float64(id)
		}

		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc("mcrouter_"+metricName(def.Name), def.Name, nil, nil),
			prometheus.GaugeValue,
			value,
		)
	}
}

// metricName flattens a stat name into the Prometheus charset.
func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
}

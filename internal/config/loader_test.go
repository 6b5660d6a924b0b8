package config

import (
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := NewLoader().Parse([]byte(`
route:
  destinations: ["memc1:11211"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":11211" {
		t.Errorf("listen default wrong: %q", cfg.Listen)
	}
	if cfg.NumProxies != 4 {
		t.Errorf("num_proxies default wrong: %d", cfg.NumProxies)
	}
	if cfg.Stats.NumBins != 60 || cfg.Stats.BinDuration != 10*time.Second {
		t.Errorf("stats defaults wrong: %+v", cfg.Stats)
	}
	if cfg.Route.TkoFailureLimit != 3 {
		t.Errorf("tko limit default wrong: %d", cfg.Route.TkoFailureLimit)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := NewLoader().Parse([]byte(`
listen: ":5000"
num_proxies: 2
route:
  destinations: ["memc1:11211", "memc2:11211"]
  enable_flush_cmd: true
  tko_failure_limit: 5
stats:
  num_bins: 30
  bin_duration: 5s
logging:
  level: debug
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":5000" || cfg.NumProxies != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Route.Destinations) != 2 || !cfg.Route.EnableFlushCmd || cfg.Route.TkoFailureLimit != 5 {
		t.Errorf("route overrides not applied: %+v", cfg.Route)
	}
	if cfg.Stats.NumBins != 30 || cfg.Stats.BinDuration != 5*time.Second {
		t.Errorf("stats overrides not applied: %+v", cfg.Stats)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging override not applied: %q", cfg.Logging.Level)
	}
}

func TestParseExpandsEnvVars(t *testing.T) {
	t.Setenv("MCROUTER_TEST_LISTEN", ":7000")
	cfg, err := NewLoader().Parse([]byte(`
listen: "${MCROUTER_TEST_LISTEN}"
route:
  destinations: ["memc1:11211"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("env expansion failed: %q", cfg.Listen)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "listen: [unclosed"},
		{"no destinations", "listen: \":5000\""},
		{"bad shard count", "num_proxies: 0\nroute:\n  destinations: [\"m:1\"]"},
		{"bad bins", "stats:\n  num_bins: 0\nroute:\n  destinations: [\"m:1\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLoader().Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := NewLoader().Load("/nonexistent/mcrouter.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

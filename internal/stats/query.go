package stats

import (
	"errors"
	"strconv"
)

// ErrBadStatsCommand is returned for an unrecognized category token. The
// caller maps it to a client-error reply; no aggregation work happens.
var ErrBadStatsCommand = errors.New("bad stats command")

// Pair is one formatted name/value line of a stats reply.
type Pair struct {
	Name  string
	Value string
}

// categoryTokens maps query tokens to category masks. The empty token is
// the plain "stats" command and maps to the basic group.
var categoryTokens = map[string]Category{
	"":                CatBasic,
	"all":             CatAll,
	"detailed":        CatDetailed,
	"cmd":             CatCmdAll,
	"cmd-in":          CatCmdIn,
	"cmd-out":         CatCmdOut,
	"cmd-error":       CatCmdError,
	"ods":             CatODS,
	"servers":         CatServer,
	"suspect_servers": CatSuspectServer,
	"count":           CatCount,
	"outlier":         CatOutlier,
}

// ParseCategory resolves a filter token to a category bitmask.
func ParseCategory(token string) (Category, bool) {
	cat, ok := categoryTokens[token]
	return cat, ok
}

// Service answers stats queries: it parses the category token, runs the
// aggregator once, and formats every matching slot per its kind and
// aggregation policy.
type Service struct {
	agg *Aggregator
}

// NewService wraps an aggregator in the query surface.
func NewService(agg *Aggregator) *Service {
	return &Service{agg: agg}
}

// Query resolves a category token and returns the ordered name/value pairs
// for it. The "version" token bypasses aggregation entirely. An unknown
// token returns ErrBadStatsCommand with zero aggregation work done.
func (s *Service) Query(token string) ([]Pair, error) {
	if token == "version" {
		return []Pair{{Name: "mcrouter-version", Value: s.agg.Version()}}, nil
	}

	groups, ok := ParseCategory(token)
	if !ok {
		return nil, ErrBadStatsCommand
	}

	prepared := s.agg.Prepare()

	var out []Pair
	for id := StatID(0); id < NumStats; id++ {
		def := statDefs[id]
		if def.Categories&groups == 0 {
			continue
		}
		out = append(out, Pair{Name: def.Name, Value: s.format(prepared, id)})
	}

	if groups&CatServer != 0 {
		servers := s.agg.ServerStats()
		for _, host := range sortedKeys(servers) {
			out = append(out, Pair{Name: host, Value: servers[host].String()})
		}
	}

	if groups&CatSuspectServer != 0 && s.agg.tko != nil {
		suspects := s.agg.tko.SuspectServers()
		for _, host := range sortedKeys(suspects) {
			sus := suspects[host]
			status := "down"
			if sus.Hard {
				status = "tko"
			}
			out = append(out, Pair{
				Name: host,
				Value: "status:" + status +
					" num_failures:" + strconv.FormatUint(uint64(sus.Failures), 10),
			})
		}
	}

	return out, nil
}

// format renders one slot per its aggregation policy, falling back to the
// plain value for non-windowed slots.
func (s *Service) format(prepared *Registry, id StatID) string {
	def := statDefs[id]
	switch {
	case def.Categories&CatRate != 0:
		return fmtFloat(s.agg.AggregateRate(id))
	case def.Categories&CatMax != 0:
		return strconv.FormatUint(s.agg.AggregateMax(id), 10)
	case def.Categories&CatMaxMax != 0:
		return strconv.FormatUint(s.agg.AggregateMaxMax(id), 10)
	}
	switch def.Kind {
	case KindUint64:
		return strconv.FormatUint(prepared.Uint64(id), 10)
	case KindInt64:
		return strconv.FormatInt(prepared.Int64(id), 10)
	case KindFloat64:
		return fmtFloat(prepared.Float64(id))
	case KindString:
		return prepared.String(id)
	}
	panic("stats: unknown kind for slot " + def.Name)
}

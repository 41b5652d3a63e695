// Package ranking builds the technician ranking: discover candidate
// technicians, fan out for their names and ticket counts, classify each by
// support level, then sort and rank.
package ranking

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/config"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/metrics"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// FieldRegistry supplies discovered search-option ids.
type FieldRegistry interface {
	FieldIDs(ctx context.Context) glpi.FieldIDs
	TechFieldID(ctx context.Context) string
}

// Options narrow a ranking query. Zero values mean "no filter".
type Options struct {
	Start  string
	End    string
	Level  models.SupportLevel
	Limit  int
	Entity string
}

func (o Options) filtered() bool {
	return o.Start != "" || o.End != "" || o.Level != models.LevelUnknown || o.Entity != ""
}

func (o Options) cacheSub() string {
	if o.Limit > 0 {
		return strconv.Itoa(o.Limit)
	}
	return "all"
}

// Config tunes the ranking engine.
type Config struct {
	NameWorkers    int
	MetricWorkers  int
	WorkerTimeout  time.Duration
	CandidateCap   int
	BatchSize      int // candidates per batched count query, ≤25 (URL length)
	PageSize       int
	MaxRecords     int // pagination safety stop, same cap as the aggregate engine
	RecentDays     int // candidate discovery lookback
	CacheTTL       time.Duration
	TechMetricsTTL time.Duration
	Levels         config.LevelConfig
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.NameWorkers <= 0 {
		out.NameWorkers = 5
	}
	if out.MetricWorkers <= 0 {
		out.MetricWorkers = 3
	}
	if out.WorkerTimeout <= 0 {
		out.WorkerTimeout = 15 * time.Second
	}
	if out.CandidateCap <= 0 {
		out.CandidateCap = 100
	}
	if out.BatchSize <= 0 || out.BatchSize > 25 {
		out.BatchSize = 25
	}
	if out.PageSize <= 0 {
		out.PageSize = 1000
	}
	if out.MaxRecords <= 0 {
		out.MaxRecords = 100000
	}
	if out.RecentDays <= 0 {
		out.RecentDays = 90
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = 300 * time.Second
	}
	if out.TechMetricsTTL <= 0 {
		out.TechMetricsTTL = time.Hour
	}
	return out
}

// Engine is the technician ranking engine.
type Engine struct {
	client   glpi.Doer
	registry FieldRegistry
	cache    *cache.Store
	cfg      Config
	observer *metrics.Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a ranking engine.
func NewEngine(client glpi.Doer, registry FieldRegistry, store *cache.Store, cfg Config, observer *metrics.Observer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:   client,
		registry: registry,
		cache:    store,
		cfg:      cfg.withDefaults(),
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Rank produces the technician ranking for the given options.
//
// Only unfiltered rankings are cached: the cache key carries the limit
// alone, so admitting filtered results would serve one caller's window to
// another. Caches are never cleared mid-query; invalidation is TTL-only.
func (e *Engine) Rank(ctx context.Context, opts Options) ([]models.Technician, error) {
	if _, _, err := glpi.BuildDateCriteria(opts.Start, opts.End, "15", 0); err != nil {
		return nil, err
	}

	cacheable := !opts.filtered()
	if cacheable {
		if ranked, ok := cache.Typed[[]models.Technician](e.cache, cache.NSRanking, opts.cacheSub()); ok {
			e.observer.CacheHit(cache.NSRanking)
			return ranked, nil
		}
		e.observer.CacheMiss(cache.NSRanking)
	}

	techField := e.registry.TechFieldID(ctx)

	ids, err := e.discoverCandidates(ctx, techField)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Technician{}, nil
	}

	candidates := e.resolveCandidates(ctx, ids)
	counts := e.collectCounts(ctx, techField, candidateIDs(candidates), opts)

	ranked := make([]models.Technician, 0, len(candidates))
	for _, c := range candidates {
		m := counts[c.id]
		level := e.classifyLevel(ctx, c.id, c.name)
		if opts.Level != models.LevelUnknown && level != opts.Level {
			continue
		}
		ranked = append(ranked, models.Technician{
			ID:            c.id,
			Name:          c.name,
			Level:         level,
			TicketCount:   m.Total,
			ResolvedCount: m.Resolved,
			PendingCount:  m.Pending,
		})
	}

	sortAndRank(ranked)

	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}

	if cacheable {
		_ = e.cache.Set(cache.NSRanking, opts.cacheSub(), ranked, e.cfg.CacheTTL)
	}
	return ranked, nil
}

// sortAndRank orders by ticket count descending with ascending numeric id
// as the tie-break, then assigns contiguous ranks 1..n.
func sortAndRank(techs []models.Technician) {
	sort.SliceStable(techs, func(i, j int) bool {
		if techs[i].TicketCount != techs[j].TicketCount {
			return techs[i].TicketCount > techs[j].TicketCount
		}
		a, _ := strconv.Atoi(techs[i].ID)
		b, _ := strconv.Atoi(techs[j].ID)
		return a < b
	})
	for i := range techs {
		techs[i].Rank = i + 1
	}
}

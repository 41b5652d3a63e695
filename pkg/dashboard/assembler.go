// Package dashboard composes general totals, per-level breakdowns, and
// trend deltas into the dashboard payload.
//
// Two different date fields are in play, intentionally: general totals
// filter on the date of creation ("opened in window") while per-level
// metrics filter on the date of last modification ("active in window").
// Both field ids are configurable; the split itself is a business rule and
// is preserved, not guessed away.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/config"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/metrics"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// Aggregator is the per-level counting engine (aggregate.Engine).
type Aggregator interface {
	CountsByLevel(ctx context.Context, levels []models.SupportLevel, statuses []models.TicketStatus, start, end string) (map[models.SupportLevel]models.StatusCounts, error)
}

// FieldRegistry supplies discovered search-option ids.
type FieldRegistry interface {
	FieldIDs(ctx context.Context) glpi.FieldIDs
}

// Config tunes the assembler.
type Config struct {
	CacheTTL         time.Duration // 180s by convention
	DateFieldGeneral string        // criteria field for general totals (15 = date_creation)

	// Levels supplies the GLPI group id per support level, used to count
	// technicians per level.
	Levels config.LevelConfig
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.CacheTTL <= 0 {
		out.CacheTTL = 180 * time.Second
	}
	if out.DateFieldGeneral == "" {
		out.DateFieldGeneral = "15"
	}
	if out.Levels.Groups == nil {
		out.Levels.Groups = config.DefaultLevelGroups()
	}
	return out
}

// Assembler builds dashboard snapshots, caching them per window.
type Assembler struct {
	client   glpi.Doer
	registry FieldRegistry
	agg      Aggregator
	cache    *cache.Store
	cfg      Config
	observer *metrics.Observer
	logger   *slog.Logger
	now      func() time.Time

	// Concurrent misses for the same window collapse to one rebuild.
	group singleflight.Group
}

// NewAssembler creates a dashboard assembler.
func NewAssembler(client glpi.Doer, registry FieldRegistry, agg Aggregator, store *cache.Store, cfg Config, observer *metrics.Observer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		client:   client,
		registry: registry,
		agg:      agg,
		cache:    store,
		cfg:      cfg.withDefaults(),
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Dashboard returns the dashboard snapshot for an optional date window.
// Cached snapshots are returned as-is, so two calls inside the TTL yield
// the identical payload.
func (a *Assembler) Dashboard(ctx context.Context, start, end string) (*models.DashboardMetrics, error) {
	// Reject malformed dates before touching cache or network.
	if _, _, err := glpi.BuildDateCriteria(start, end, a.cfg.DateFieldGeneral, 0); err != nil {
		return nil, err
	}

	ns, sub := cacheKey(start, end)
	if snapshot, ok := cache.Typed[*models.DashboardMetrics](a.cache, ns, sub); ok {
		a.observer.CacheHit(ns)
		return snapshot, nil
	}
	a.observer.CacheMiss(ns)

	v, err, _ := a.group.Do(ns+"|"+sub, func() (any, error) {
		snapshot, err := a.build(ctx, start, end)
		if err != nil {
			return nil, err
		}
		_ = a.cache.Set(ns, sub, snapshot, a.cfg.CacheTTL)
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.DashboardMetrics), nil
}

func cacheKey(start, end string) (ns, sub string) {
	if start == "" && end == "" {
		return cache.NSDashboard, ""
	}
	return cache.NSDashboardFiltered, start + "|" + end
}

func (a *Assembler) build(ctx context.Context, start, end string) (*models.DashboardMetrics, error) {
	general := a.generalTotals(ctx, start, end)

	grid, err := a.agg.CountsByLevel(ctx, models.AllLevels(), models.AllStatuses(), start, end)
	if err != nil {
		return nil, err
	}

	techs := a.technicianCounts(ctx)

	niveis := make(map[models.SupportLevel]models.LevelMetrics, len(grid))
	for level, counts := range grid {
		niveis[level] = models.LevelMetrics{
			Level:           level,
			BucketTotals:    counts.Buckets(),
			TechnicianCount: techs[level],
		}
	}

	snapshot := &models.DashboardMetrics{
		BucketTotals: general.Buckets(),
		Niveis:       niveis,
		Trends:       a.trends(ctx, general.Buckets(), start, end),
		Timestamp:    a.now().UTC(),
	}
	if start != "" || end != "" {
		snapshot.FiltersApplied = &models.FiltersApplied{DataInicio: start, DataFim: end}
	}
	return snapshot, nil
}

// generalTotals runs six independent range=0-0 status counts, no level
// filter. Individual failures log and stay zero: partial data beats no data.
func (a *Assembler) generalTotals(ctx context.Context, start, end string) models.StatusCounts {
	ids := a.registry.FieldIDs(ctx)
	counts := models.NewStatusCounts()

	for _, status := range models.AllStatuses() {
		n, err := a.countStatus(ctx, ids, status, start, end)
		if err != nil {
			a.logger.Warn("General total count failed", "status", status, "error", err)
			continue
		}
		counts[status] = n
	}
	return counts
}

func (a *Assembler) countStatus(ctx context.Context, ids glpi.FieldIDs, status models.TicketStatus, start, end string) (int, error) {
	params := glpi.NewSearch().
		Set("is_deleted", "0").
		Range(0, 0).
		Criterion("", ids.Status, "equals", status.String())

	datePairs, n, err := glpi.BuildDateCriteria(start, end, a.cfg.DateFieldGeneral, params.NextIndex())
	if err != nil {
		return 0, err
	}
	params.Merge(datePairs, n)

	resp, err := a.client.Do(ctx, http.MethodGet, "/search/Ticket", params.Values(), nil)
	if err != nil {
		return 0, err
	}
	if !resp.OK() && resp.Status != http.StatusPartialContent {
		return 0, glpi.NewError(glpi.KindHTTP, "status count returned HTTP "+strconv.Itoa(resp.Status))
	}
	return resp.TotalCount()
}

// technicianCounts counts group members per support level, one range=0-0
// Group_User search per group. Field 3 is the group link. Failures log and
// stay zero, like the general totals.
func (a *Assembler) technicianCounts(ctx context.Context) map[models.SupportLevel]int {
	out := make(map[models.SupportLevel]int, len(a.cfg.Levels.Groups))

	for level, groupID := range a.cfg.Levels.Groups {
		params := glpi.NewSearch().
			Range(0, 0).
			Criterion("", "3", "equals", strconv.Itoa(groupID))

		resp, err := a.client.Do(ctx, http.MethodGet, "/search/Group_User", params.Values(), nil)
		if err != nil {
			a.logger.Warn("Technician count failed", "level", level, "error", err)
			continue
		}
		if !resp.OK() && resp.Status != http.StatusPartialContent {
			a.logger.Warn("Technician count returned an error status",
				"level", level, "http_status", resp.Status)
			continue
		}
		n, err := resp.TotalCount()
		if err != nil {
			a.logger.Warn("Technician count unreadable", "level", level, "error", err)
			continue
		}
		out[level] = n
	}
	return out
}

// trends compares the current general totals against the preceding
// equal-length window.
func (a *Assembler) trends(ctx context.Context, current models.BucketTotals, start, end string) models.Trends {
	prevStart, prevEnd := previousWindow(start, end, a.now())
	previous := a.generalTotals(ctx, prevStart, prevEnd)
	return trendsBetween(current, previous.Buckets())
}

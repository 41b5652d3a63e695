// Package aggregate counts tickets by (support level, status) against GLPI.
//
// The fast path pulls every matching ticket in one paginated search and
// classifies rows locally: one round-trip per 1000 tickets instead of one
// per (level, status) cell. GLPI occasionally returns inconsistent or empty
// data under hierarchy-field filters, so a per-cell fallback path recomputes
// the grid from Content-Range counts when the fast path errors or comes
// back all zeros.
package aggregate

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/metrics"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// FieldRegistry supplies the discovered search-option ids.
type FieldRegistry interface {
	FieldIDs(ctx context.Context) glpi.FieldIDs
}

// Config bounds the paginated fast path.
type Config struct {
	PageSize       int           // rows per page, 1000 by convention
	MaxRecords     int           // hard safety stop, 100000 by convention
	MaxPageRetries int           // retries per page fetch
	BackoffUnit    time.Duration // base backoff between page retries
	DateField      string        // criteria field for date filters (19 = date_mod)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PageSize <= 0 {
		out.PageSize = 1000
	}
	if out.MaxRecords <= 0 {
		out.MaxRecords = 100000
	}
	if out.MaxPageRetries <= 0 {
		out.MaxPageRetries = 3
	}
	if out.BackoffUnit <= 0 {
		out.BackoffUnit = time.Second
	}
	if out.DateField == "" {
		out.DateField = "19"
	}
	return out
}

// Engine is the aggregate query engine.
type Engine struct {
	client   glpi.Doer
	registry FieldRegistry
	cfg      Config
	observer *metrics.Observer
	logger   *slog.Logger
}

// NewEngine creates an aggregate engine.
func NewEngine(client glpi.Doer, registry FieldRegistry, cfg Config, observer *metrics.Observer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{client: client, registry: registry, cfg: cfg.withDefaults(), observer: observer, logger: logger}
}

// CountsByLevel returns the (level, status) count grid for the given window.
// start/end are optional dates filtered on the configured date field.
func (e *Engine) CountsByLevel(ctx context.Context, levels []models.SupportLevel, statuses []models.TicketStatus, start, end string) (map[models.SupportLevel]models.StatusCounts, error) {
	// Malformed dates are caller errors, not a reason to fall back.
	if _, _, err := glpi.BuildDateCriteria(start, end, e.cfg.DateField, 0); err != nil {
		return nil, err
	}

	result := make(map[models.SupportLevel]models.StatusCounts, len(levels))
	for _, l := range levels {
		result[l] = models.NewStatusCounts()
	}

	ids := e.registry.FieldIDs(ctx)

	err := e.fastPath(ctx, result, ids, levels, statuses, start, end)
	if err == nil && !allZeros(result) {
		return result, nil
	}

	if err != nil {
		e.logger.Warn("Aggregate fast path failed, falling back to per-cell counts", "error", err)
	} else {
		e.logger.Warn("Aggregate fast path returned all zeros, falling back to per-cell counts")
	}
	e.observer.FallbackUsed()

	for _, l := range levels {
		result[l] = models.NewStatusCounts()
	}
	e.slowPath(ctx, result, ids, levels, statuses, start, end)
	return result, nil
}

// fastPath runs one paginated search and classifies rows locally.
func (e *Engine) fastPath(ctx context.Context, result map[models.SupportLevel]models.StatusCounts, ids glpi.FieldIDs, levels []models.SupportLevel, statuses []models.TicketStatus, start, end string) error {
	baseParams, err := e.buildFastParams(ids, levels, statuses, start, end)
	if err != nil {
		return err
	}

	processed := 0
	for offset := 0; ; offset += e.cfg.PageSize {
		rows, err := e.fetchPage(ctx, baseParams, offset)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			e.classify(result, ids, row)
		}
		processed += len(rows)

		if processed >= e.cfg.MaxRecords {
			e.logger.Warn("Aggregate pagination hit safety stop",
				"processed", processed, "cap", e.cfg.MaxRecords)
			e.observer.PaginationSafetyStop()
			return nil
		}
		if len(rows) < e.cfg.PageSize {
			return nil
		}
	}
}

func (e *Engine) buildFastParams(ids glpi.FieldIDs, levels []models.SupportLevel, statuses []models.TicketStatus, start, end string) (*glpi.SearchParams, error) {
	params := glpi.NewSearch().
		Set("is_deleted", "0").
		ForceDisplay(ids.Group, ids.Status)

	for i, l := range levels {
		link := "OR"
		if i == 0 {
			link = ""
		}
		params.Criterion(link, ids.Group, "contains", l.Marker())
	}
	for i, s := range statuses {
		link := "OR"
		if i == 0 {
			link = "AND"
		}
		params.Criterion(link, ids.Status, "equals", s.String())
	}

	datePairs, n, err := glpi.BuildDateCriteria(start, end, e.cfg.DateField, params.NextIndex())
	if err != nil {
		return nil, err
	}
	params.Merge(datePairs, n)
	return params, nil
}

// fetchPage retrieves one page with per-page retry and backoff.
func (e *Engine) fetchPage(ctx context.Context, base *glpi.SearchParams, offset int) ([]map[string]any, error) {
	var rows []map[string]any

	operation := func() error {
		params := glpi.NewSearch().Merge(pairsOf(base), 0).
			Range(offset, offset+e.cfg.PageSize-1)

		resp, err := e.client.Do(ctx, http.MethodGet, "/search/Ticket", params.Values(), nil)
		if err != nil {
			return err
		}
		if !resp.OK() && resp.Status != http.StatusPartialContent {
			return glpi.NewError(glpi.KindHTTP, "search page returned HTTP "+strconv.Itoa(resp.Status))
		}

		var body struct {
			Data []map[string]any `json:"data"`
		}
		if err := resp.JSON(&body); err != nil {
			return backoff.Permanent(err)
		}
		rows = body.Data
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.BackoffUnit
	policy := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(e.cfg.MaxPageRetries))
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return rows, nil
}

// classify buckets one search row. Rows with no recognised level marker or
// an out-of-range status are skipped, never guessed.
func (e *Engine) classify(result map[models.SupportLevel]models.StatusCounts, ids glpi.FieldIDs, row map[string]any) {
	hierarchy, _ := row[ids.Group].(string)
	level := models.LevelFromHierarchy(hierarchy)
	if level == models.LevelUnknown {
		return
	}
	counts, tracked := result[level]
	if !tracked {
		return
	}

	status, ok := models.ParseStatus(row[ids.Status])
	if !ok {
		return
	}
	if _, known := counts[status]; !known {
		return
	}
	counts[status]++
}

// slowPath fills the grid one Content-Range count per cell. Individual cell
// failures log and stay zero; partial data beats no data.
func (e *Engine) slowPath(ctx context.Context, result map[models.SupportLevel]models.StatusCounts, ids glpi.FieldIDs, levels []models.SupportLevel, statuses []models.TicketStatus, start, end string) {
	for _, l := range levels {
		for _, s := range statuses {
			count, err := e.countCell(ctx, ids, l, s, start, end)
			if err != nil {
				e.logger.Warn("Per-cell count failed",
					"level", l, "status", s, "error", err)
				continue
			}
			result[l][s] = count
		}
	}
}

// countCell issues a range=0-0 search and reads the Content-Range total.
func (e *Engine) countCell(ctx context.Context, ids glpi.FieldIDs, level models.SupportLevel, status models.TicketStatus, start, end string) (int, error) {
	params := glpi.NewSearch().
		Set("is_deleted", "0").
		Range(0, 0).
		Criterion("", ids.Group, "contains", level.Marker()).
		Criterion("AND", ids.Status, "equals", status.String())

	datePairs, n, err := glpi.BuildDateCriteria(start, end, e.cfg.DateField, params.NextIndex())
	if err != nil {
		return 0, err
	}
	params.Merge(datePairs, n)

	resp, err := e.client.Do(ctx, http.MethodGet, "/search/Ticket", params.Values(), nil)
	if err != nil {
		return 0, err
	}
	if !resp.OK() && resp.Status != http.StatusPartialContent {
		return 0, glpi.NewError(glpi.KindHTTP, "count returned HTTP "+strconv.Itoa(resp.Status))
	}
	return resp.TotalCount()
}

func allZeros(result map[models.SupportLevel]models.StatusCounts) bool {
	for _, counts := range result {
		if counts.Total() > 0 {
			return false
		}
	}
	return true
}

// pairsOf flattens a SearchParams back to raw pairs so a page request can
// reuse the base criteria without sharing mutable state.
func pairsOf(p *glpi.SearchParams) map[string]string {
	pairs := make(map[string]string)
	for k, vs := range p.Values() {
		if len(vs) > 0 {
			pairs[k] = vs[0]
		}
	}
	return pairs
}

package ranking

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/fields"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// techCounts are one technician's ticket totals.
type techCounts struct {
	Total    int
	Resolved int
	Pending  int
}

// collectCounts gathers per-technician ticket counts.
//
// Unfiltered queries use the cached per-technician totals plus one batched
// search for whatever is missing; the batch is roughly a 25x round-trip
// saving. Filtered queries always use per-technician counting: a date or
// entity window demands field-by-field aggregation and is never cached.
func (e *Engine) collectCounts(ctx context.Context, techField string, ids []string, opts Options) map[string]techCounts {
	counts := make(map[string]techCounts, len(ids))

	if opts.Start != "" || opts.End != "" || opts.Entity != "" {
		e.perTechCounts(ctx, techField, ids, opts, counts)
		return counts
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, ok := cache.Typed[techCounts](e.cache, cache.NSTechnicianMetrics, id); ok {
			e.observer.CacheHit(cache.NSTechnicianMetrics)
			counts[id] = c
			continue
		}
		e.observer.CacheMiss(cache.NSTechnicianMetrics)
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return counts
	}

	failed := map[string]struct{}{}
	if err := e.batchCounts(ctx, techField, missing, counts); err != nil {
		e.logger.Warn("Batched count failed, falling back to per-technician counts", "error", err)
		e.observer.FallbackUsed()
		failed = e.perTechCounts(ctx, techField, missing, opts, counts)
	}

	// Zero rows left by a failed worker are a partial result, not a fact;
	// caching them would serve stale zeros until TechMetricsTTL expires.
	for _, id := range missing {
		if _, bad := failed[id]; bad {
			continue
		}
		_ = e.cache.Set(cache.NSTechnicianMetrics, id, counts[id], e.cfg.TechMetricsTTL)
	}
	return counts
}

// batchCounts aggregates all missing technicians from one paginated search
// per sub-batch. Sub-batches stay small to keep the OR-criteria chain well
// under URL-length limits.
func (e *Engine) batchCounts(ctx context.Context, techField string, ids []string, counts map[string]techCounts) error {
	fieldIDs := e.registry.FieldIDs(ctx)

	for from := 0; from < len(ids); from += e.cfg.BatchSize {
		to := from + e.cfg.BatchSize
		if to > len(ids) {
			to = len(ids)
		}
		if err := e.batchCountsOne(ctx, techField, fieldIDs.Status, ids[from:to], counts); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) batchCountsOne(ctx context.Context, techField, statusField string, batch []string, counts map[string]techCounts) error {
	inBatch := make(map[string]struct{}, len(batch))
	for _, id := range batch {
		inBatch[id] = struct{}{}
	}

	base := glpi.NewSearch().
		Set("is_deleted", "0").
		ForceDisplay(techField, statusField)
	for i, id := range batch {
		link := "OR"
		if i == 0 {
			link = ""
		}
		base.Criterion(link, techField, "equals", id)
	}

	processed := 0
	for offset := 0; ; offset += e.cfg.PageSize {
		params := glpi.NewSearch()
		for k, vs := range base.Values() {
			if len(vs) > 0 {
				params.Set(k, vs[0])
			}
		}
		params.Range(offset, offset+e.cfg.PageSize-1)

		resp, err := e.client.Do(ctx, http.MethodGet, "/search/Ticket", params.Values(), nil)
		if err != nil {
			return err
		}
		if !resp.OK() && resp.Status != http.StatusPartialContent {
			return glpi.NewError(glpi.KindHTTP, "batched count returned HTTP "+strconv.Itoa(resp.Status))
		}

		var body struct {
			Data []map[string]any `json:"data"`
		}
		if err := resp.JSON(&body); err != nil {
			return err
		}
		if len(body.Data) == 0 {
			return nil
		}

		for _, row := range body.Data {
			id, ok := fields.ParseTechnicianID(row[techField])
			if !ok {
				continue
			}
			if _, mine := inBatch[id]; !mine {
				continue
			}
			c := counts[id]
			c.Total++
			if status, ok := models.ParseStatus(row[statusField]); ok {
				switch status {
				case models.StatusSolved, models.StatusClosed:
					c.Resolved++
				case models.StatusPending:
					c.Pending++
				}
			}
			counts[id] = c
		}
		processed += len(body.Data)

		if processed >= e.cfg.MaxRecords {
			e.logger.Warn("Batched count hit safety stop",
				"processed", processed, "cap", e.cfg.MaxRecords)
			e.observer.PaginationSafetyStop()
			return nil
		}
		if len(body.Data) < e.cfg.PageSize {
			return nil
		}
	}
}

// perTechCounts fans out one worker per technician, bounded by
// MetricWorkers, each with its own timeout. A timed-out worker leaves a
// zero row; it never aborts the enclosing query. The returned set holds
// the ids whose counts failed, so callers can keep them out of the cache.
func (e *Engine) perTechCounts(ctx context.Context, techField string, ids []string, opts Options, counts map[string]techCounts) map[string]struct{} {
	var mu sync.Mutex
	failed := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MetricWorkers)

	for _, id := range ids {
		g.Go(func() error {
			workerCtx, cancel := context.WithTimeout(gctx, e.cfg.WorkerTimeout)
			defer cancel()

			c, err := e.countOneTech(workerCtx, techField, id, opts)
			if err != nil {
				e.logger.Warn("Per-technician count failed, reporting zero",
					"tech_id", id, "error", err)
				c = techCounts{}
			}

			mu.Lock()
			if err != nil {
				failed[id] = struct{}{}
			}
			counts[id] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

func (e *Engine) countOneTech(ctx context.Context, techField, id string, opts Options) (techCounts, error) {
	total, err := e.countTech(ctx, techField, id, opts, 0)
	if err != nil {
		return techCounts{}, err
	}
	pending, err := e.countTech(ctx, techField, id, opts, models.StatusPending)
	if err != nil {
		return techCounts{}, err
	}
	solved, err := e.countTech(ctx, techField, id, opts, models.StatusSolved)
	if err != nil {
		return techCounts{}, err
	}
	closed, err := e.countTech(ctx, techField, id, opts, models.StatusClosed)
	if err != nil {
		return techCounts{}, err
	}
	return techCounts{Total: total, Resolved: solved + closed, Pending: pending}, nil
}

// countTech issues one range=0-0 search and reads the Content-Range total.
// status zero means "any status".
func (e *Engine) countTech(ctx context.Context, techField, id string, opts Options, status models.TicketStatus) (int, error) {
	params := glpi.NewSearch().
		Set("is_deleted", "0").
		Range(0, 0).
		Criterion("", techField, "equals", id)

	if status != 0 {
		params.Criterion("AND", e.registry.FieldIDs(ctx).Status, "equals", status.String())
	}
	if opts.Entity != "" {
		params.Criterion("AND", "80", "equals", opts.Entity)
	}

	datePairs, n, err := glpi.BuildDateCriteria(opts.Start, opts.End, "15", params.NextIndex())
	if err != nil {
		return 0, err
	}
	params.Merge(datePairs, n)

	resp, err := e.client.Do(ctx, http.MethodGet, "/search/Ticket", params.Values(), nil)
	if err != nil {
		return 0, err
	}
	if !resp.OK() && resp.Status != http.StatusPartialContent {
		return 0, glpi.NewError(glpi.KindHTTP, "technician count returned HTTP "+strconv.Itoa(resp.Status))
	}
	return resp.TotalCount()
}

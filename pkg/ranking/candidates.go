package ranking

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/centralti/glpi-metrics/pkg/fields"
	"github.com/centralti/glpi-metrics/pkg/glpi"
)

type candidate struct {
	id   string
	name string
}

func candidateIDs(cands []candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

// discoverCandidates produces the candidate technician id set.
//
// Primary strategy: scan tickets created in the lookback window and collect
// every distinct assigned-technician value, which works on deployments
// with an empty Profile_User table. When that yields nothing, enumerate
// users holding the technician profile (profiles_id=6).
func (e *Engine) discoverCandidates(ctx context.Context, techField string) ([]string, error) {
	ids, err := e.candidatesFromTickets(ctx, techField)
	if err != nil {
		e.logger.Warn("Candidate discovery from tickets failed", "error", err)
	}
	if len(ids) == 0 {
		ids, err = e.candidatesFromProfiles(ctx)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})

	if len(ids) > e.cfg.CandidateCap {
		e.logger.Warn("Candidate set capped",
			"found", len(ids), "cap", e.cfg.CandidateCap)
		ids = ids[:e.cfg.CandidateCap]
	}
	return ids, nil
}

func (e *Engine) candidatesFromTickets(ctx context.Context, techField string) ([]string, error) {
	since := e.now().AddDate(0, 0, -e.cfg.RecentDays).Format("2006-01-02 15:04:05")

	seen := make(map[string]struct{})
	processed := 0
	for offset := 0; ; offset += e.cfg.PageSize {
		params := glpi.NewSearch().
			Set("is_deleted", "0").
			ForceDisplay(techField).
			Range(offset, offset+e.cfg.PageSize-1).
			Criterion("", "15", "morethan", since)

		resp, err := e.client.Do(ctx, http.MethodGet, "/search/Ticket", params.Values(), nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK() && resp.Status != http.StatusPartialContent {
			return nil, glpi.NewError(glpi.KindHTTP, "candidate scan returned HTTP "+strconv.Itoa(resp.Status))
		}

		var body struct {
			Data []map[string]any `json:"data"`
		}
		if err := resp.JSON(&body); err != nil {
			return nil, err
		}
		if len(body.Data) == 0 {
			break
		}

		for _, row := range body.Data {
			if id, ok := fields.ParseTechnicianID(row[techField]); ok {
				seen[id] = struct{}{}
			}
		}
		processed += len(body.Data)

		if processed >= e.cfg.MaxRecords {
			e.logger.Warn("Candidate scan hit safety stop",
				"processed", processed, "cap", e.cfg.MaxRecords)
			e.observer.PaginationSafetyStop()
			break
		}
		if len(body.Data) < e.cfg.PageSize {
			break
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}

// candidatesFromProfiles enumerates Profile_User rows with the technician
// profile. Field 5 is the profile link, field 4 the user link.
func (e *Engine) candidatesFromProfiles(ctx context.Context) ([]string, error) {
	params := glpi.NewSearch().
		Range(0, e.cfg.CandidateCap-1).
		ForceDisplay("4").
		Criterion("", "5", "equals", "6")

	resp, err := e.client.Do(ctx, http.MethodGet, "/search/Profile_User", params.Values(), nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() && resp.Status != http.StatusPartialContent {
		return nil, glpi.NewError(glpi.KindHTTP, "Profile_User scan returned HTTP "+strconv.Itoa(resp.Status))
	}

	var body struct {
		Data []map[string]any `json:"data"`
	}
	if err := resp.JSON(&body); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0, len(body.Data))
	for _, row := range body.Data {
		id, ok := fields.ParseTechnicianID(row["4"])
		if !ok {
			id, ok = fields.ParseTechnicianID(row["users_id"])
		}
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

type glpiUserDetail struct {
	Name         string `json:"name"`
	RealName     string `json:"realname"`
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	CompleteName string `json:"completename"`
	IsActive     any    `json:"is_active"`
	IsDeleted    any    `json:"is_deleted"`
}

func (u *glpiUserDetail) displayName(id string) string {
	switch {
	case u.CompleteName != "":
		return u.CompleteName
	case u.RealName != "":
		return u.RealName
	case u.Name != "":
		return u.Name
	}
	if full := u.FirstName + " " + u.LastName; len(full) > 1 {
		return full
	}
	return "Técnico " + id
}

// resolveCandidates fetches user records with a bounded fan-out, dropping
// inactive or deleted users. A lookup failure keeps the candidate under a
// placeholder name: a slow GLPI must not empty the ranking.
func (e *Engine) resolveCandidates(ctx context.Context, ids []string) []candidate {
	var mu sync.Mutex
	kept := make([]candidate, 0, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.NameWorkers)

	for _, id := range ids {
		g.Go(func() error {
			workerCtx, cancel := context.WithTimeout(gctx, e.cfg.WorkerTimeout)
			defer cancel()

			user, err := e.fetchUser(workerCtx, id)
			if err != nil {
				e.logger.Warn("Candidate lookup failed, keeping with placeholder",
					"user_id", id, "error", err)
				mu.Lock()
				kept = append(kept, candidate{id: id, name: "Técnico " + id})
				mu.Unlock()
				return nil
			}
			if !truthy(user.IsActive) || truthy(user.IsDeleted) {
				return nil
			}

			mu.Lock()
			kept = append(kept, candidate{id: id, name: user.displayName(id)})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(kept, func(i, j int) bool {
		a, _ := strconv.Atoi(kept[i].id)
		b, _ := strconv.Atoi(kept[j].id)
		return a < b
	})
	return kept
}

func (e *Engine) fetchUser(ctx context.Context, id string) (*glpiUserDetail, error) {
	resp, err := e.client.Do(ctx, http.MethodGet, "/User/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, glpi.NewError(glpi.KindHTTP, "User lookup returned HTTP "+strconv.Itoa(resp.Status))
	}
	var user glpiUserDetail
	if err := resp.JSON(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// truthy interprets GLPI's boolean-ish encodings (0/1 as number or string).
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t == "1" || t == "true"
	default:
		return false
	}
}

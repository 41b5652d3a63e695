package glpi

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/metrics"
)

// Doer is the request surface the higher engines depend on.
// *Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, params url.Values, headers map[string]string) (*Response, error)
}

// FieldIDs holds the numeric search-option ids GLPI assigned to the fields
// the engine queries. GLPI treats them as strings in search parameters.
type FieldIDs struct {
	Group        string
	Status       string
	Technician   string
	DateCreation string
	DateMod      string
}

// DefaultFieldIDs are the conventional GLPI ids, used whenever discovery
// cannot fill a slot.
func DefaultFieldIDs() FieldIDs {
	return FieldIDs{
		Group:        "8",
		Status:       "12",
		Technician:   "5",
		DateCreation: "15",
		DateMod:      "19",
	}
}

// processLifetime marks cache entries that live as long as the process.
const processLifetime = time.Duration(math.MaxInt64)

// defaultTechFieldID is search-option 5, the assigned technician.
// Option 95 is the "responsible" technician and must not be confused with it.
const defaultTechFieldID = "5"

var fieldCandidates = map[string][]string{
	"group":      {"grupo técnico", "technical group", "assigned group", "grupo atribuído", "group"},
	"status":     {"status", "estado", "state"},
	"technician": {"técnico", "atribuído - técnico", "technician", "assigned to technician", "assigned to"},
	"date_mod":   {"última atualização", "last update", "data de modificação", "date mod"},
}

// Registry discovers and caches GLPI's search-option ids. Discovery failures
// degrade to the defaults so the engine keeps working against any GLPI that
// follows the stock schema.
type Registry struct {
	client   Doer
	cache    *cache.Store
	ttl      time.Duration
	observer *metrics.Observer
	logger   *slog.Logger
}

// NewRegistry creates a field-id registry. ttl bounds how long a discovered
// map is trusted (30 min by convention).
func NewRegistry(client Doer, store *cache.Store, ttl time.Duration, observer *metrics.Observer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{client: client, cache: store, ttl: ttl, observer: observer, logger: logger}
}

// FieldIDs returns the field-id map, discovering it on first use. Never
// fails: on any error the fallback defaults are returned (and cached), with
// a warning.
func (r *Registry) FieldIDs(ctx context.Context) FieldIDs {
	if ids, ok := cache.Typed[FieldIDs](r.cache, cache.NSFieldIDs, ""); ok {
		r.observer.CacheHit(cache.NSFieldIDs)
		return ids
	}
	r.observer.CacheMiss(cache.NSFieldIDs)

	ids, err := r.discover(ctx)
	if err != nil {
		r.logger.Warn("Field-id discovery failed, using defaults", "error", err)
		ids = DefaultFieldIDs()
	}

	_ = r.cache.Set(cache.NSFieldIDs, "", ids, r.ttl)
	return ids
}

// TechFieldID returns the search-option id for the assigned technician.
// Cached for the process lifetime; defaults to "5".
func (r *Registry) TechFieldID(ctx context.Context) string {
	if id, ok := cache.Typed[string](r.cache, cache.NSTechFieldID, ""); ok {
		return id
	}

	id := defaultTechFieldID
	options, err := r.listSearchOptions(ctx)
	if err == nil {
		// Trust option 5 only when its name confirms it is the assigned
		// technician, not the responsible one (option 95).
		if name, ok := options[defaultTechFieldID]; ok && matchesAny(name, fieldCandidates["technician"]) {
			id = defaultTechFieldID
		} else {
			for _, optID := range sortedNumericKeys(options) {
				if optID == "95" {
					continue
				}
				if matchesAny(options[optID], fieldCandidates["technician"]) {
					id = optID
					break
				}
			}
		}
	} else {
		r.logger.Warn("tech field discovery failed, using default", "error", err)
	}

	_ = r.cache.Set(cache.NSTechFieldID, "", id, processLifetime)
	return id
}

func (r *Registry) discover(ctx context.Context) (FieldIDs, error) {
	options, err := r.listSearchOptions(ctx)
	if err != nil {
		return FieldIDs{}, err
	}

	ids := FieldIDs{}
	for _, optID := range sortedNumericKeys(options) {
		name := options[optID]
		switch {
		case ids.Group == "" && matchesAny(name, fieldCandidates["group"]):
			ids.Group = optID
		case ids.Status == "" && matchesAny(name, fieldCandidates["status"]):
			ids.Status = optID
		case ids.Technician == "" && matchesAny(name, fieldCandidates["technician"]):
			ids.Technician = optID
		case ids.DateMod == "" && matchesAny(name, fieldCandidates["date_mod"]):
			ids.DateMod = optID
		}
	}

	defaults := DefaultFieldIDs()
	if ids.Group == "" {
		ids.Group = defaults.Group
	}
	if ids.Status == "" {
		ids.Status = defaults.Status
	}
	if ids.Technician == "" {
		ids.Technician = defaults.Technician
	}
	if ids.DateMod == "" {
		ids.DateMod = defaults.DateMod
	}
	// GLPI convention: creation date is always 15, whatever discovery says.
	ids.DateCreation = defaults.DateCreation

	r.logger.Info("Field ids discovered",
		"group", ids.Group, "status", ids.Status,
		"technician", ids.Technician, "date_mod", ids.DateMod)
	return ids, nil
}

// listSearchOptions fetches listSearchOptions/Ticket and flattens it to
// option id → display name. Non-map entries (GLPI mixes group headers into
// the payload) are skipped.
func (r *Registry) listSearchOptions(ctx context.Context) (map[string]string, error) {
	resp, err := r.client.Do(ctx, http.MethodGet, "/listSearchOptions/Ticket", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, NewError(KindHTTP, "listSearchOptions returned HTTP "+strconv.Itoa(resp.Status))
	}

	var raw map[string]any
	if err := resp.JSON(&raw); err != nil {
		return nil, err
	}

	options := make(map[string]string)
	for id, v := range raw {
		if _, err := strconv.Atoi(id); err != nil {
			continue
		}
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := entry["name"].(string); ok && name != "" {
			options[id] = name
		}
	}
	return options, nil
}

func matchesAny(name string, candidates []string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, c := range candidates {
		if lower == c {
			return true
		}
	}
	return false
}

func sortedNumericKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	return keys
}

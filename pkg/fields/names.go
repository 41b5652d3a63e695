package fields

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/metrics"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// Resolver turns GLPI ids into display names, caching every lookup.
// Lookups never fail: on any error a deterministic placeholder is returned.
type Resolver struct {
	client   glpi.Doer
	cache    *cache.Store
	ttl      time.Duration
	observer *metrics.Observer
	logger   *slog.Logger
}

// NewResolver creates a name resolver. ttl bounds how long names are cached.
func NewResolver(client glpi.Doer, store *cache.Store, ttl time.Duration, observer *metrics.Observer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Resolver{client: client, cache: store, ttl: ttl, observer: observer, logger: logger}
}

type glpiUser struct {
	ID           any    `json:"id"`
	Name         string `json:"name"`
	RealName     string `json:"realname"`
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	CompleteName string `json:"completename"`
}

// displayName builds the best available display name, in GLPI's own
// preference order.
func (u *glpiUser) displayName() string {
	switch {
	case u.CompleteName != "":
		return u.CompleteName
	case u.RealName != "":
		return u.RealName
	case u.Name != "":
		return u.Name
	default:
		full := strings.TrimSpace(u.FirstName + " " + u.LastName)
		return full
	}
}

// UserName resolves a user id to a display name. Falls back to
// "Técnico <id>" on any failure; only successful lookups are cached.
func (r *Resolver) UserName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if name, ok := cache.Typed[string](r.cache, cache.NSUserNames, id); ok {
		r.observer.CacheHit(cache.NSUserNames)
		return name
	}
	r.observer.CacheMiss(cache.NSUserNames)

	fallback := "Técnico " + id

	resp, err := r.client.Do(ctx, http.MethodGet, "/User/"+id, nil, nil)
	if err != nil || !resp.OK() {
		r.logger.Warn("User name lookup failed", "user_id", id, "error", err)
		return fallback
	}

	var user glpiUser
	if err := resp.JSON(&user); err != nil {
		r.logger.Warn("User payload undecodable", "user_id", id, "error", err)
		return fallback
	}

	name := user.displayName()
	if name == "" {
		return fallback
	}
	_ = r.cache.Set(cache.NSUserNames, id, name, r.ttl)
	return name
}

// PriorityName maps a priority ordinal to its display name. The binding is
// fixed by GLPI, so this is a table lookup; the priority_names cache
// namespace exists for parity but never needs refreshing.
func (r *Resolver) PriorityName(id int) string {
	return models.Priority(id).Name()
}

// CategoryName resolves an ITIL category id to its name. Returns
// "Sem categoria" for id 0 and "Categoria <id>" on lookup failure.
func (r *Resolver) CategoryName(ctx context.Context, id string) string {
	if id == "" || id == "0" {
		return "Sem categoria"
	}
	if name, ok := cache.Typed[string](r.cache, cache.NSCategoryNames, id); ok {
		r.observer.CacheHit(cache.NSCategoryNames)
		return name
	}
	r.observer.CacheMiss(cache.NSCategoryNames)

	fallback := "Categoria " + id

	resp, err := r.client.Do(ctx, http.MethodGet, "/ITILCategory/"+id, nil, nil)
	if err != nil || !resp.OK() {
		r.logger.Warn("Category lookup failed", "category_id", id, "error", err)
		return fallback
	}

	var category struct {
		Name         string `json:"name"`
		CompleteName string `json:"completename"`
	}
	if err := resp.JSON(&category); err != nil {
		return fallback
	}

	name := category.CompleteName
	if name == "" {
		name = category.Name
	}
	if name == "" {
		return fallback
	}
	_ = r.cache.Set(cache.NSCategoryNames, id, name, r.ttl)
	return name
}

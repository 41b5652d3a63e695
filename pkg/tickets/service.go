// Package tickets serves the recent new-tickets listing and single-ticket
// detail lookups.
package tickets

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/centralti/glpi-metrics/pkg/fields"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// Search-row column ids for the new-tickets listing.
const (
	colTitle     = "1"
	colID        = "2"
	colPriority  = "3"
	colRequester = "4"
	colCategory  = "5"
	colStatus    = "12"
	colDate      = "15"
	colContent   = "21"
)

const defaultLimit = 10

// FieldRegistry supplies discovered search-option ids.
type FieldRegistry interface {
	FieldIDs(ctx context.Context) glpi.FieldIDs
	TechFieldID(ctx context.Context) string
}

// Filters narrow the new-tickets listing. Zero values mean "no filter".
type Filters struct {
	Limit      int
	Priority   string
	Category   string
	Technician string
	Start      string
	End        string
}

// Service answers ticket queries.
type Service struct {
	client   glpi.Doer
	registry FieldRegistry
	resolver *fields.Resolver
	logger   *slog.Logger
}

// NewService creates a ticket query service.
func NewService(client glpi.Doer, registry FieldRegistry, resolver *fields.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, registry: registry, resolver: resolver, logger: logger}
}

// NewTickets lists the most recently created tickets in status "New".
// Query trouble degrades to an empty list, never an error: the listing is a
// dashboard side panel and must not take the page down with it.
func (s *Service) NewTickets(ctx context.Context, f Filters) []models.NewTicket {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	statusField := s.registry.FieldIDs(ctx).Status

	params := glpi.NewSearch().
		Set("is_deleted", "0").
		Set("sort", colDate).
		Set("order", "DESC").
		Range(0, limit-1).
		ForceDisplay(colID, colTitle, colContent, colDate, colRequester, colPriority, colCategory, colStatus).
		Criterion("", statusField, "equals", models.StatusNew.String())

	if f.Priority != "" {
		params.Criterion("AND", colPriority, "equals", f.Priority)
	}
	if f.Category != "" {
		params.Criterion("AND", "7", "equals", f.Category)
	}
	if f.Technician != "" {
		params.Criterion("AND", s.registry.TechFieldID(ctx), "equals", f.Technician)
	}

	datePairs, n, err := glpi.BuildDateCriteria(f.Start, f.End, colDate, params.NextIndex())
	if err != nil {
		s.logger.Warn("New-tickets date filter rejected", "error", err)
		return []models.NewTicket{}
	}
	params.Merge(datePairs, n)

	resp, err := s.client.Do(ctx, http.MethodGet, "/search/Ticket", params.Values(), nil)
	if err != nil {
		s.logger.Warn("New-tickets query failed", "error", err)
		return []models.NewTicket{}
	}
	if !resp.OK() && resp.Status != http.StatusPartialContent {
		s.logger.Warn("New-tickets query returned non-2xx", "status", resp.Status)
		return []models.NewTicket{}
	}

	var body struct {
		Data []map[string]any `json:"data"`
	}
	if err := resp.JSON(&body); err != nil {
		s.logger.Warn("New-tickets payload undecodable", "error", err)
		return []models.NewTicket{}
	}

	out := make([]models.NewTicket, 0, len(body.Data))
	for _, row := range body.Data {
		out = append(out, s.mapRow(ctx, row))
	}
	return out
}

func (s *Service) mapRow(ctx context.Context, row map[string]any) models.NewTicket {
	t := models.NewTicket{
		ID:          intField(row[colID]),
		Title:       strField(row[colTitle]),
		Description: fields.FormatDescription(strField(row[colContent])),
		Date:        strField(row[colDate]),
		Status:      models.StatusNew.Label(),
	}

	if status, ok := models.ParseStatus(row[colStatus]); ok {
		t.Status = status.Label()
	}
	t.Priority = s.resolver.PriorityName(intField(row[colPriority]))

	if id, ok := fields.ParseTechnicianID(row[colRequester]); ok {
		t.Requester = s.resolver.UserName(ctx, id)
	} else if name := strField(row[colRequester]); name != "" {
		// Some GLPI builds expand the requester column to a name already.
		t.Requester = name
	}

	switch v := row[colCategory].(type) {
	case string:
		if _, err := strconv.Atoi(v); err == nil {
			t.Category = s.resolver.CategoryName(ctx, v)
		} else {
			t.Category = v
		}
	case float64:
		t.Category = s.resolver.CategoryName(ctx, strconv.Itoa(int(v)))
	default:
		t.Category = s.resolver.CategoryName(ctx, "")
	}
	return t
}

func strField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func intField(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

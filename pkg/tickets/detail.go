package tickets

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/centralti/glpi-metrics/pkg/fields"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// Ticket fetches one ticket with expanded dropdowns. Returns (nil, nil) when
// GLPI answers 404 or any other non-2xx: the ticket is treated as absent.
// The only error is an invalid id.
func (s *Service) Ticket(ctx context.Context, id int) (*models.Ticket, error) {
	if id <= 0 {
		return nil, glpi.NewError(glpi.KindInvalidArgument, "ticket id must be positive")
	}

	params := url.Values{}
	params.Set("expand_dropdowns", "true")
	params.Set("with_logs", "true")
	params.Set("with_tickets", "true")

	resp, err := s.client.Do(ctx, http.MethodGet, "/Ticket/"+strconv.Itoa(id), params, nil)
	if err != nil {
		s.logger.Warn("Ticket detail fetch failed", "ticket_id", id, "error", err)
		return nil, nil
	}
	if !resp.OK() {
		if resp.Status != http.StatusNotFound {
			s.logger.Warn("Ticket detail returned non-2xx", "ticket_id", id, "status", resp.Status)
		}
		return nil, nil
	}

	var raw map[string]any
	if err := resp.JSON(&raw); err != nil {
		s.logger.Warn("Ticket detail payload undecodable", "ticket_id", id, "error", err)
		return nil, nil
	}

	return s.mapTicket(raw), nil
}

// mapTicket converts the expanded GLPI payload. Phone extraction runs on the
// raw description before cleanup; the signal lives in the HTML the formatter
// strips.
func (s *Service) mapTicket(raw map[string]any) *models.Ticket {
	rawContent := strField(raw["content"])

	t := &models.Ticket{
		ID:          intField(raw["id"]),
		Title:       strField(raw["name"]),
		Description: fields.FormatDescription(rawContent),
		Phone:       fields.ExtractPhone(rawContent),
		Type:        ticketTypeName(raw["type"]),
		Category:    strField(raw["itilcategories_id"]),
		Location:    strField(raw["locations_id"]),
		Entity:      strField(raw["entities_id"]),
		Source:      strField(raw["requesttypes_id"]),
		CreatedAt:   strField(raw["date"]),
		UpdatedAt:   strField(raw["date_mod"]),
		DueDate:     strField(raw["time_to_resolve"]),
		CloseDate:   strField(raw["closedate"]),
		SolveDate:   strField(raw["solvedate"]),
		TimeTracking: models.TimeTracking{
			Total:      intField(raw["actiontime"]),
			Waiting:    intField(raw["waiting_duration"]),
			SolveDelay: intField(raw["solve_delay_stat"]),
			CloseDelay: intField(raw["close_delay_stat"]),
		},
	}

	if status, ok := models.ParseStatus(raw["status"]); ok {
		t.Status = status.Label()
	} else {
		// expand_dropdowns may deliver the label directly.
		t.Status = strField(raw["status"])
	}
	t.Priority = scaleName(raw["priority"], s.resolver.PriorityName)
	t.Urgency = scaleName(raw["urgency"], s.resolver.PriorityName)
	t.Impact = scaleName(raw["impact"], s.resolver.PriorityName)

	if t.Category == "" || t.Category == "0" {
		t.Category = "Sem categoria"
	}

	t.Requester = namedRef(raw, "_users_id_requester", "users_id_recipient")
	t.Technician = namedRef(raw, "_users_id_assign", "users_id_lastupdater")
	t.Group = namedRef(raw, "_groups_id_assign", "groups_id")
	return t
}

// namedRef extracts an (id, name) pair from the expanded payload. With
// expand_dropdowns GLPI replaces the id with the display name, so either
// form may appear under either key.
func namedRef(raw map[string]any, keys ...string) models.NamedRef {
	for _, key := range keys {
		v, present := raw[key]
		if !present {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t > 0 {
				return models.NamedRef{ID: strconv.Itoa(int(t))}
			}
		case string:
			if t == "" || t == "0" {
				continue
			}
			if _, err := strconv.Atoi(t); err == nil {
				return models.NamedRef{ID: t}
			}
			return models.NamedRef{Name: t}
		case []any:
			if len(t) > 0 {
				if s, ok := t[0].(string); ok && s != "" {
					return models.NamedRef{Name: s}
				}
				if n, ok := t[0].(float64); ok && n > 0 {
					return models.NamedRef{ID: strconv.Itoa(int(n))}
				}
			}
		}
	}
	return models.NamedRef{}
}

// scaleName maps an ordinal urgency/impact/priority value to its display
// name; expanded string labels pass through unchanged.
func scaleName(v any, name func(int) string) string {
	switch t := v.(type) {
	case float64:
		return name(int(t))
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return name(n)
		}
		return t
	default:
		return ""
	}
}

func ticketTypeName(v any) string {
	switch intField(v) {
	case 1:
		return "Incidente"
	case 2:
		return "Requisição"
	default:
		return strField(v)
	}
}

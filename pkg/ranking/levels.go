package ranking

import (
	"context"
	"net/http"
	"strconv"

	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/models"
)

// classifyLevel resolves one technician's support level: configured GLPI
// group membership first, the name table second, N1 as the last resort.
func (e *Engine) classifyLevel(ctx context.Context, id, name string) models.SupportLevel {
	for _, groupID := range e.userGroups(ctx, id) {
		if level, ok := e.cfg.Levels.LevelForGroup(groupID); ok {
			return level
		}
	}
	if level, ok := e.cfg.Levels.LevelForName(name); ok {
		return level
	}
	return models.LevelN1
}

// userGroups lists the GLPI group ids a user belongs to via Group_User.
// Field 4 is the user link, field 3 the group link. Failures return an
// empty slice; classification then falls through to the name table.
func (e *Engine) userGroups(ctx context.Context, userID string) []int {
	params := glpi.NewSearch().
		Range(0, 49).
		ForceDisplay("3").
		Criterion("", "4", "equals", userID)

	resp, err := e.client.Do(ctx, http.MethodGet, "/search/Group_User", params.Values(), nil)
	if err != nil {
		e.logger.Warn("Group membership lookup failed", "user_id", userID, "error", err)
		return nil
	}
	if !resp.OK() && resp.Status != http.StatusPartialContent {
		e.logger.Warn("Group membership lookup returned non-2xx",
			"user_id", userID, "status", resp.Status)
		return nil
	}

	var body struct {
		Data []map[string]any `json:"data"`
	}
	if err := resp.JSON(&body); err != nil {
		e.logger.Warn("Group membership decode failed", "user_id", userID, "error", err)
		return nil
	}

	groups := make([]int, 0, len(body.Data))
	for _, row := range body.Data {
		if g, ok := groupID(row["3"]); ok {
			groups = append(groups, g)
		} else if g, ok := groupID(row["groups_id"]); ok {
			groups = append(groups, g)
		}
	}
	return groups
}

// groupID coerces GLPI's varied row encodings into a group id.
func groupID(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int(t), true
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

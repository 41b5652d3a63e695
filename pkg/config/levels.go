package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/centralti/glpi-metrics/pkg/models"
)

// LevelConfig maps support levels to their GLPI group ids, plus an optional
// technician-name fallback table for users that belong to none of the groups.
type LevelConfig struct {
	// Groups maps each level to the primary key of its GLPI group.
	Groups map[models.SupportLevel]int

	// Names maps a technician display name to a level. Loaded once at
	// startup from LEVEL_NAMES_FILE; the GLPI group lookup stays primary.
	Names map[string]models.SupportLevel
}

// DefaultLevelGroups are the group ids used when SERVICE_LEVEL_GROUPS is unset.
func DefaultLevelGroups() map[models.SupportLevel]int {
	return map[models.SupportLevel]int{
		models.LevelN1: 89,
		models.LevelN2: 90,
		models.LevelN3: 91,
		models.LevelN4: 92,
	}
}

// LevelForGroup returns the level owning the given GLPI group id.
func (lc LevelConfig) LevelForGroup(groupID int) (models.SupportLevel, bool) {
	for level, id := range lc.Groups {
		if id == groupID {
			return level, true
		}
	}
	return models.LevelUnknown, false
}

// LevelForName consults the name fallback table.
func (lc LevelConfig) LevelForName(name string) (models.SupportLevel, bool) {
	l, ok := lc.Names[name]
	return l, ok
}

func loadLevelConfig() (LevelConfig, error) {
	lc := LevelConfig{
		Groups: DefaultLevelGroups(),
		Names:  map[string]models.SupportLevel{},
	}

	if raw := os.Getenv("SERVICE_LEVEL_GROUPS"); raw != "" {
		var overrides map[string]int
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return lc, fmt.Errorf("parse SERVICE_LEVEL_GROUPS: %w", err)
		}
		for name, id := range overrides {
			level := models.ParseLevel(name)
			if level == models.LevelUnknown {
				return lc, fmt.Errorf("SERVICE_LEVEL_GROUPS: unknown level %q", name)
			}
			lc.Groups[level] = id
		}
	}

	if path := os.Getenv("LEVEL_NAMES_FILE"); path != "" {
		names, err := loadLevelNames(path)
		if err != nil {
			return lc, err
		}
		lc.Names = names
	}
	return lc, nil
}

// loadLevelNames reads a YAML file of the form:
//
//	n1: ["Fulano da Silva", "Beltrano Souza"]
//	n2: ["Ciclano Pereira"]
func loadLevelNames(path string) (map[string]models.SupportLevel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var byLevel map[string][]string
	if err := yaml.Unmarshal(data, &byLevel); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	names := make(map[string]models.SupportLevel)
	for levelName, list := range byLevel {
		level := models.ParseLevel(levelName)
		if level == models.LevelUnknown {
			return nil, fmt.Errorf("%s: unknown level %q", path, levelName)
		}
		for _, n := range list {
			names[n] = level
		}
	}
	return names, nil
}

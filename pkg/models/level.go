package models

import "strings"

// SupportLevel identifies a support tier (N1..N4).
//
// Each concrete level carries two stable identifiers: the GLPI group primary
// key (configurable, see config.LevelGroups) and the hierarchy marker, the
// literal substring "N1".."N4" that GLPI embeds in the field-8 group
// hierarchy text of a ticket.
type SupportLevel string

// Known support levels.
const (
	LevelN1      SupportLevel = "N1"
	LevelN2      SupportLevel = "N2"
	LevelN3      SupportLevel = "N3"
	LevelN4      SupportLevel = "N4"
	LevelUnknown SupportLevel = ""
)

// AllLevels returns the four concrete levels in tier order.
func AllLevels() []SupportLevel {
	return []SupportLevel{LevelN1, LevelN2, LevelN3, LevelN4}
}

// Marker returns the hierarchy marker used to recognise this level inside
// GLPI's field-8 text. Empty for LevelUnknown.
func (l SupportLevel) Marker() string {
	return string(l)
}

// ParseLevel maps "N1".."N4" (case-insensitive) to a SupportLevel.
// Anything else yields LevelUnknown.
func ParseLevel(s string) SupportLevel {
	switch s {
	case "N1", "n1":
		return LevelN1
	case "N2", "n2":
		return LevelN2
	case "N3", "n3":
		return LevelN3
	case "N4", "n4":
		return LevelN4
	default:
		return LevelUnknown
	}
}

// LevelFromHierarchy scans GLPI field-8 hierarchy text for a level marker.
// The first marker found wins (markers never co-occur in practice).
func LevelFromHierarchy(hierarchy string) SupportLevel {
	for _, l := range AllLevels() {
		if strings.Contains(hierarchy, l.Marker()) {
			return l
		}
	}
	return LevelUnknown
}

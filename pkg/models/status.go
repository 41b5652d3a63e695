package models

import "strconv"

// TicketStatus is GLPI's ticket status ordinal.
// The ordinal↔label binding is fixed by GLPI and never rediscovered.
type TicketStatus int

// GLPI ticket statuses.
const (
	StatusNew      TicketStatus = 1
	StatusAssigned TicketStatus = 2
	StatusPlanned  TicketStatus = 3
	StatusPending  TicketStatus = 4
	StatusSolved   TicketStatus = 5
	StatusClosed   TicketStatus = 6
)

// AllStatuses returns the six statuses in ordinal order.
func AllStatuses() []TicketStatus {
	return []TicketStatus{
		StatusNew, StatusAssigned, StatusPlanned,
		StatusPending, StatusSolved, StatusClosed,
	}
}

var statusLabels = map[TicketStatus]string{
	StatusNew:      "Novo",
	StatusAssigned: "Em atendimento (atribuído)",
	StatusPlanned:  "Em atendimento (planejado)",
	StatusPending:  "Pendente",
	StatusSolved:   "Solucionado",
	StatusClosed:   "Fechado",
}

// Label returns the Portuguese display label; "desconhecido" for unknown ordinals.
func (s TicketStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "desconhecido"
}

// Valid reports whether s is one of the six known statuses.
func (s TicketStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// String returns the decimal form used in GLPI search criteria.
func (s TicketStatus) String() string {
	return strconv.Itoa(int(s))
}

// ParseStatus converts a polymorphic GLPI status value (number or numeric
// string) to a TicketStatus. ok is false for anything outside 1..6.
func ParseStatus(v any) (TicketStatus, bool) {
	switch t := v.(type) {
	case float64:
		s := TicketStatus(int(t))
		return s, s.Valid()
	case int:
		s := TicketStatus(t)
		return s, s.Valid()
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		s := TicketStatus(n)
		return s, s.Valid()
	default:
		return 0, false
	}
}

// Priority is GLPI's ticket priority ordinal.
type Priority int

// GLPI ticket priorities.
const (
	PriorityVeryLow  Priority = 1
	PriorityLow      Priority = 2
	PriorityMedium   Priority = 3
	PriorityHigh     Priority = 4
	PriorityVeryHigh Priority = 5
	PriorityCritical Priority = 6
)

var priorityNames = map[Priority]string{
	PriorityVeryLow:  "Muito Baixa",
	PriorityLow:      "Baixa",
	PriorityMedium:   "Normal",
	PriorityHigh:     "Alta",
	PriorityVeryHigh: "Muito Alta",
	PriorityCritical: "Crítica",
}

// Name returns the Portuguese display name; "normal" for unknown ordinals.
func (p Priority) Name() string {
	if n, ok := priorityNames[p]; ok {
		return n
	}
	return "normal"
}

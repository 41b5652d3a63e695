package models

import "time"

// StatusCounts maps each of the six ticket statuses to a non-negative count.
type StatusCounts map[TicketStatus]int

// NewStatusCounts returns a zeroed map holding exactly the six statuses.
func NewStatusCounts() StatusCounts {
	c := make(StatusCounts, 6)
	for _, s := range AllStatuses() {
		c[s] = 0
	}
	return c
}

// Total is the sum over all statuses.
func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Buckets collapses the six statuses into the four dashboard buckets:
// novos={1}, progresso={2,3}, pendentes={4}, resolvidos={5,6}.
func (c StatusCounts) Buckets() BucketTotals {
	return BucketTotals{
		Novos:      c[StatusNew],
		Progresso:  c[StatusAssigned] + c[StatusPlanned],
		Pendentes:  c[StatusPending],
		Resolvidos: c[StatusSolved] + c[StatusClosed],
		Total:      c.Total(),
	}
}

// BucketTotals holds the four derived dashboard buckets plus the grand total.
type BucketTotals struct {
	Novos      int `json:"novos"`
	Progresso  int `json:"progresso"`
	Pendentes  int `json:"pendentes"`
	Resolvidos int `json:"resolvidos"`
	Total      int `json:"total"`
}

// LevelMetrics is the per-support-level slice of the dashboard.
type LevelMetrics struct {
	Level SupportLevel `json:"nivel"`
	BucketTotals
	TechnicianCount    int      `json:"tecnicos"`
	AvgResolutionHours *float64 `json:"tempo_medio_resolucao,omitempty"`
}

// Trends holds percent change vs the immediately preceding equal-length
// window, one decimal place, per dashboard bucket.
type Trends struct {
	Novos      float64 `json:"novos"`
	Pendentes  float64 `json:"pendentes"`
	Progresso  float64 `json:"progresso"`
	Resolvidos float64 `json:"resolvidos"`
}

// FiltersApplied echoes the date window a filtered dashboard query used.
type FiltersApplied struct {
	DataInicio string `json:"data_inicio,omitempty"`
	DataFim    string `json:"data_fim,omitempty"`
}

// DashboardMetrics is the full dashboard payload.
//
// For unfiltered queries each top-level bucket equals the sum of the same
// bucket across the four levels plus tickets with no recognised level.
// Filtered queries intentionally break this: general totals filter on date
// of creation while per-level metrics filter on date of last modification.
type DashboardMetrics struct {
	BucketTotals
	Niveis         map[SupportLevel]LevelMetrics `json:"niveis"`
	Trends         Trends                        `json:"trends"`
	FiltersApplied *FiltersApplied               `json:"filters_applied,omitempty"`
	Timestamp      time.Time                     `json:"timestamp"`
}

// Technician is one row of the technician ranking.
type Technician struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Level         SupportLevel `json:"level"`
	TicketCount   int          `json:"ticket_count"`
	ResolvedCount int          `json:"resolved_count"`
	PendingCount  int          `json:"pending_count"`
	Rank          int          `json:"rank"`
}

package dashboard

import (
	"math"
	"time"

	"github.com/centralti/glpi-metrics/pkg/models"
)

const dateOnlyLayout = "2006-01-02"

// previousWindow derives the comparison window for trend calculation.
//
// With an explicit window, the previous one is the equal-length window that
// ends the day before it starts. Without one, last week is compared against
// the week before: [today-14, today-7].
func previousWindow(start, end string, now time.Time) (string, string) {
	s, errS := time.Parse(dateOnlyLayout, datePart(start))
	e, errE := time.Parse(dateOnlyLayout, datePart(end))

	if start != "" && end != "" && errS == nil && errE == nil {
		span := e.Sub(s)
		prevEnd := s.AddDate(0, 0, -1)
		prevStart := prevEnd.Add(-span)
		return prevStart.Format(dateOnlyLayout), prevEnd.Format(dateOnlyLayout)
	}

	today := now.Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -14).Format(dateOnlyLayout),
		today.AddDate(0, 0, -7).Format(dateOnlyLayout)
}

func datePart(s string) string {
	if len(s) > len(dateOnlyLayout) {
		return s[:len(dateOnlyLayout)]
	}
	return s
}

// pct is the percent change from prev to curr, rounded to one decimal.
// A previous of zero yields 100.0 when anything appeared, else 0.0, never
// NaN or Inf.
func pct(curr, prev int) float64 {
	switch {
	case prev > 0:
		return math.Round(float64(curr-prev)/float64(prev)*1000) / 10
	case curr > 0:
		return 100.0
	default:
		return 0.0
	}
}

// trendsBetween compares two bucket snapshots.
func trendsBetween(curr, prev models.BucketTotals) models.Trends {
	return models.Trends{
		Novos:      pct(curr.Novos, prev.Novos),
		Pendentes:  pct(curr.Pendentes, prev.Pendentes),
		Progresso:  pct(curr.Progresso, prev.Progresso),
		Resolvidos: pct(curr.Resolvidos, prev.Resolvidos),
	}
}

package glpi

import (
	"fmt"
	"time"
)

const (
	dateOnlyLayout = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// BuildDateCriteria translates an optional (start, end) window into GLPI
// criteria[...] pairs on the given field id, starting at index startIndex.
//
// start produces a morethan criterion, end a lessthan one. Bare dates are
// widened to the inclusive start/end of the day. Both empty yields an empty
// map. Malformed dates are an InvalidArgument error. The returned int is the
// number of criteria emitted.
func BuildDateCriteria(start, end, fieldID string, startIndex int) (map[string]string, int, error) {
	pairs := make(map[string]string)
	idx := startIndex
	n := 0

	if start != "" {
		value, err := normalizeDate(start, false)
		if err != nil {
			return nil, 0, err
		}
		writeCriterion(pairs, idx, fieldID, "morethan", value, idx > 0)
		idx++
		n++
	}

	if end != "" {
		value, err := normalizeDate(end, true)
		if err != nil {
			return nil, 0, err
		}
		writeCriterion(pairs, idx, fieldID, "lessthan", value, idx > 0)
		idx++
		n++
	}

	return pairs, n, nil
}

func writeCriterion(pairs map[string]string, idx int, field, searchtype, value string, withLink bool) {
	if withLink {
		pairs[fmt.Sprintf("criteria[%d][link]", idx)] = "AND"
	}
	pairs[fmt.Sprintf("criteria[%d][field]", idx)] = field
	pairs[fmt.Sprintf("criteria[%d][searchtype]", idx)] = searchtype
	pairs[fmt.Sprintf("criteria[%d][value]", idx)] = value
}

// normalizeDate accepts "2006-01-02" or "2006-01-02 15:04:05". Bare dates
// become day start (endOfDay=false) or day end (endOfDay=true).
func normalizeDate(s string, endOfDay bool) (string, error) {
	if t, err := time.Parse(dateTimeLayout, s); err == nil {
		return t.Format(dateTimeLayout), nil
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		if endOfDay {
			return t.Format(dateOnlyLayout) + " 23:59:59", nil
		}
		return t.Format(dateOnlyLayout) + " 00:00:00", nil
	}
	return "", NewError(KindInvalidArgument, fmt.Sprintf("invalid date %q, want YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", s))
}

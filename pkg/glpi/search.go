package glpi

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// SearchParams builds the query string for GLPI /search/* endpoints.
// Criteria indices are assigned in insertion order; the first criterion
// carries no link, later ones default to AND unless given.
type SearchParams struct {
	values url.Values
	next   int
}

// NewSearch returns an empty parameter set.
func NewSearch() *SearchParams {
	return &SearchParams{values: url.Values{}}
}

// Set assigns a plain key (is_deleted, sort, order, ...).
func (p *SearchParams) Set(key, value string) *SearchParams {
	p.values.Set(key, value)
	return p
}

// Range sets the pagination window, inclusive on both ends.
func (p *SearchParams) Range(from, to int) *SearchParams {
	p.values.Set("range", fmt.Sprintf("%d-%d", from, to))
	return p
}

// Sort sets the sort field and order ("ASC" or "DESC").
func (p *SearchParams) Sort(field, order string) *SearchParams {
	p.values.Set("sort", field)
	p.values.Set("order", order)
	return p
}

// ForceDisplay requests specific field columns in the result rows.
func (p *SearchParams) ForceDisplay(fields ...string) *SearchParams {
	for i, f := range fields {
		p.values.Set(fmt.Sprintf("forcedisplay[%d]", i), f)
	}
	return p
}

// Criterion appends one criteria[i] block. link is "AND" or "OR" and is
// omitted for the first criterion, as GLPI requires.
func (p *SearchParams) Criterion(link, field, searchtype, value string) *SearchParams {
	i := p.next
	p.next++
	if i > 0 && link != "" {
		p.values.Set(fmt.Sprintf("criteria[%d][link]", i), link)
	}
	p.values.Set(fmt.Sprintf("criteria[%d][field]", i), field)
	p.values.Set(fmt.Sprintf("criteria[%d][searchtype]", i), searchtype)
	p.values.Set(fmt.Sprintf("criteria[%d][value]", i), value)
	return p
}

// NextIndex is the index the next criterion will receive. Used when merging
// externally built criteria such as date filters.
func (p *SearchParams) NextIndex() int {
	return p.next
}

// Merge copies raw key/value pairs (already fully indexed) into the set and
// advances the criterion counter by n.
func (p *SearchParams) Merge(pairs map[string]string, n int) *SearchParams {
	for k, v := range pairs {
		p.values.Set(k, v)
	}
	p.next += n
	return p
}

// Values returns the accumulated url.Values.
func (p *SearchParams) Values() url.Values {
	return p.values
}

// contentRangeRe accepts both shapes GLPI emits: "items 0-49/1234" and
// "0-49/1234".
var contentRangeRe = regexp.MustCompile(`^(?:items\s+)?(\d+)-(\d+)/(\d+)$`)

// ParseContentRange extracts the total count from a Content-Range header.
// Any other shape is a DecodeError.
func ParseContentRange(header string) (int, error) {
	m := contentRangeRe.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return 0, NewError(KindDecode, fmt.Sprintf("unrecognised Content-Range %q", header))
	}
	total, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, WrapError(KindDecode, fmt.Sprintf("Content-Range total in %q", header), err)
	}
	return total, nil
}

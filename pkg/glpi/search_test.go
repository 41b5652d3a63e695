package glpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchParams(t *testing.T) {
	t.Run("first criterion carries no link", func(t *testing.T) {
		p := NewSearch().Criterion("", "12", "equals", "1")
		v := p.Values()

		assert.Equal(t, "12", v.Get("criteria[0][field]"))
		assert.Equal(t, "equals", v.Get("criteria[0][searchtype]"))
		assert.Equal(t, "1", v.Get("criteria[0][value]"))
		assert.Empty(t, v.Get("criteria[0][link]"))
	})

	t.Run("later criteria carry their link", func(t *testing.T) {
		p := NewSearch().
			Criterion("", "8", "contains", "N1").
			Criterion("OR", "8", "contains", "N2").
			Criterion("AND", "12", "equals", "1")
		v := p.Values()

		assert.Equal(t, "OR", v.Get("criteria[1][link]"))
		assert.Equal(t, "AND", v.Get("criteria[2][link]"))
	})

	t.Run("range is inclusive on both ends", func(t *testing.T) {
		v := NewSearch().Range(0, 999).Values()
		assert.Equal(t, "0-999", v.Get("range"))
	})

	t.Run("forcedisplay is indexed in order", func(t *testing.T) {
		v := NewSearch().ForceDisplay("8", "12").Values()
		assert.Equal(t, "8", v.Get("forcedisplay[0]"))
		assert.Equal(t, "12", v.Get("forcedisplay[1]"))
	})

	t.Run("merge advances the criterion index", func(t *testing.T) {
		p := NewSearch().Criterion("", "12", "equals", "1")
		pairs, n, err := BuildDateCriteria("2025-01-01", "2025-01-31", "19", p.NextIndex())
		require.NoError(t, err)
		p.Merge(pairs, n)

		assert.Equal(t, 3, p.NextIndex())
		v := p.Values()
		assert.Equal(t, "19", v.Get("criteria[1][field]"))
		assert.Equal(t, "AND", v.Get("criteria[1][link]"))
		assert.Equal(t, "19", v.Get("criteria[2][field]"))
	})
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		name   string
		header string
		total  int
		ok     bool
	}{
		{"with items prefix", "items 0-49/1234", 1234, true},
		{"without prefix", "0-49/1234", 1234, true},
		{"zero total", "items 0-0/0", 0, true},
		{"surrounding whitespace", "  0-0/7  ", 7, true},
		{"garbage", "bytes 0-49/1234", 0, false},
		{"empty", "", 0, false},
		{"missing total", "0-49/", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := ParseContentRange(tt.header)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindDecode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
		})
	}
}

func TestBuildDateCriteria(t *testing.T) {
	t.Run("empty window emits nothing", func(t *testing.T) {
		pairs, n, err := BuildDateCriteria("", "", "19", 0)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, pairs)
	})

	t.Run("bare dates widen to day boundaries", func(t *testing.T) {
		pairs, n, err := BuildDateCriteria("2025-03-01", "2025-03-31", "19", 0)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, "2025-03-01 00:00:00", pairs["criteria[0][value]"])
		assert.Equal(t, "morethan", pairs["criteria[0][searchtype]"])
		assert.Equal(t, "2025-03-31 23:59:59", pairs["criteria[1][value]"])
		assert.Equal(t, "lessthan", pairs["criteria[1][searchtype]"])
	})

	t.Run("datetime passes through unchanged", func(t *testing.T) {
		pairs, _, err := BuildDateCriteria("2025-03-01 08:30:00", "", "15", 0)
		require.NoError(t, err)
		assert.Equal(t, "2025-03-01 08:30:00", pairs["criteria[0][value]"])
	})

	t.Run("start at index zero has no link", func(t *testing.T) {
		pairs, _, err := BuildDateCriteria("2025-03-01", "", "19", 0)
		require.NoError(t, err)
		_, hasLink := pairs["criteria[0][link]"]
		assert.False(t, hasLink)
	})

	t.Run("non-zero start index links with AND", func(t *testing.T) {
		pairs, _, err := BuildDateCriteria("2025-03-01", "", "19", 2)
		require.NoError(t, err)
		assert.Equal(t, "AND", pairs["criteria[2][link]"])
	})

	t.Run("end-only window", func(t *testing.T) {
		pairs, n, err := BuildDateCriteria("", "2025-03-31", "19", 0)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "lessthan", pairs["criteria[0][searchtype]"])
	})

	t.Run("malformed date is invalid argument", func(t *testing.T) {
		_, _, err := BuildDateCriteria("31/03/2025", "", "19", 0)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInvalidArgument))
	})
}

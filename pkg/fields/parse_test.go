package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTechnicianID(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		expect string
		ok     bool
	}{
		{"float from JSON", float64(42), "42", true},
		{"int", 7, "7", true},
		{"numeric string", "123", "123", true},
		{"padded string", "  123  ", "123", true},
		{"list picks first non-zero", []any{float64(0), float64(8), float64(9)}, "8", true},
		{"list of numeric strings", []any{"0", "15"}, "15", true},
		{"JSON array string", "[0, 77]", "77", true},
		{"JSON quoted number", `"31"`, "31", true},
		{"zero", float64(0), "", false},
		{"negative", float64(-3), "", false},
		{"empty string", "", "", false},
		{"blank string", "   ", "", false},
		{"non-numeric string", "fulano", "", false},
		{"empty list", []any{}, "", false},
		{"list of zeros", []any{float64(0), "0"}, "", false},
		{"nil", nil, "", false},
		{"malformed JSON string", "[1,", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseTechnicianID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expect, id)
		})
	}
}

package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	full := Full()
	assert.True(t, strings.HasPrefix(full, "glpi-metrics/"))
	assert.NotEqual(t, "glpi-metrics/", full)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "a3f8c2d1", short("a3f8c2d1e9b40077"))
	assert.Equal(t, "abc", short("abc"))
}

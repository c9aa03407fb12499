package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	from, limit := Calculate(1, 10)
	require.Equal(t, 0, from)
	require.Equal(t, 10, limit)

	from, limit = Calculate(3, 15)
	require.Equal(t, 30, from)
	require.Equal(t, 15, limit)

	// out-of-range inputs fall back to defaults
	from, limit = Calculate(0, 0)
	require.Equal(t, 0, from)
	require.Equal(t, DefaultPageSize, limit)

	_, limit = Calculate(1, 1000)
	require.Equal(t, DefaultPageSize, limit)
}

func TestParseIntDefault(t *testing.T) {
	require.Equal(t, 5, ParseIntDefault("", 5))
	require.Equal(t, 7, ParseIntDefault("7", 5))
	require.Equal(t, 5, ParseIntDefault("seven", 5))
}

func TestEnvelope(t *testing.T) {
	env := Envelope([]int{1, 2, 3}, 2, 3, 7)
	meta := env["meta"].(map[string]any)
	require.Equal(t, 2, meta["page"])
	require.Equal(t, 3, meta["size"])
	require.Equal(t, int64(7), meta["total"])
	require.Equal(t, int64(3), meta["total_pages"])
	require.Equal(t, true, meta["has_prev"])
	require.Equal(t, true, meta["has_next"])

	last := Envelope([]int{1}, 3, 3, 7)
	meta = last["meta"].(map[string]any)
	require.Equal(t, false, meta["has_next"])
}

package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampRoundTrip(t *testing.T) {
	in := time.Date(2025, 1, 2, 3, 4, 5, 600, time.FixedZone("CET", 60*60))

	s := FormatTimestamp(in)
	assert.Equal(t, "2025-01-02T02:04:05", s)

	out, err := ParseTimestamp(s)
	require.NoError(t, err)
	assert.Equal(t, normalizeTimestamp(in), out)
	assert.Equal(t, time.UTC, out.Location())
}

func TestTimestampLexicalOrderIsChronological(t *testing.T) {
	times := []time.Time{
		NeverChecked,
		time.Date(2009, 11, 10, 23, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 2, 0, 0, 1, 0, time.UTC),
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
	}

	for i := 1; i < len(times); i++ {
		assert.Less(t, FormatTimestamp(times[i-1]), FormatTimestamp(times[i]))
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

package data

import (
	"fmt"
	"time"
)

// TimestampFormat is the persisted form of LastChecked. It has second precision and no zone so that lexical order of
// the stored strings is the same as chronological order.
const TimestampFormat = "2006-01-02T15:04:05"

// NeverChecked is the cursor of a feed that has not been polled yet.
var NeverChecked = time.Unix(0, 0).UTC()

type Feed struct {
	ID          int64
	URL         string
	LastChecked time.Time
	ETag        string
}

// FormatTimestamp converts t to UTC and renders it at second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp is the inverse of FormatTimestamp. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// normalizeTimestamp returns t as it would be after a round trip through storage.
func normalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectNewItemsBoundary(t *testing.T) {
	lastChecked := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	items := []ParsedItem{
		{Title: "equal", PublishedAt: lastChecked},
		{Title: "after", PublishedAt: lastChecked.Add(time.Microsecond)},
		{Title: "before", PublishedAt: lastChecked.Add(-time.Second)},
	}

	newItems := SelectNewItems(items, lastChecked)
	if assert.Len(t, newItems, 1) {
		assert.Equal(t, "after", newItems[0].Title)
	}
}

func TestSelectNewItemsPreservesSourceOrder(t *testing.T) {
	lastChecked := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	items := []ParsedItem{
		{Title: "c", PublishedAt: lastChecked.Add(3 * time.Hour)},
		{Title: "old", PublishedAt: lastChecked.Add(-3 * time.Hour)},
		{Title: "a", PublishedAt: lastChecked.Add(1 * time.Hour)},
		{Title: "b", PublishedAt: lastChecked.Add(2 * time.Hour)},
	}

	var titles []string
	for _, item := range SelectNewItems(items, lastChecked) {
		titles = append(titles, item.Title)
	}
	assert.Equal(t, []string{"c", "a", "b"}, titles)
}

func TestSelectNewItemsComparesInstants(t *testing.T) {
	lastChecked := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sameInstant := lastChecked.In(time.FixedZone("PST", -8*60*60))

	items := []ParsedItem{{Title: "same", PublishedAt: sameInstant}}
	assert.Empty(t, SelectNewItems(items, lastChecked))
	assert.Empty(t, SelectNewItems(nil, lastChecked))
}

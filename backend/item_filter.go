package backend

import (
	"time"
)

// SelectNewItems returns the items published strictly after lastChecked, in source order.
func SelectNewItems(items []ParsedItem, lastChecked time.Time) []ParsedItem {
	newItems := make([]ParsedItem, 0, len(items))
	for _, item := range items {
		if item.PublishedAt.After(lastChecked) {
			newItems = append(newItems, item)
		}
	}
	return newItems
}

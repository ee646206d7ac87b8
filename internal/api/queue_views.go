package api

import "sort"

// SortQueueItemsOldestFirst orders items by CreatedAt ascending, breaking ties by fingerprint.
func SortQueueItemsOldestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]QueueItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti := ParseQueueTime(sorted[i].CreatedAt)
		tj := ParseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].Fingerprint < sorted[j].Fingerprint
		}
		return ti.Before(tj)
	})
	return sorted
}

package entities

import "sort"

// DispatchLess is the single ordering used wherever entries wait for a server:
// higher priority first, then earlier join time, then lower queue number.
func DispatchLess(a, b *QueueEntry) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra > rb
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.QueueNumber < b.QueueNumber
}

// SortForDispatch sorts entries in place by DispatchLess
func SortForDispatch(entries []*QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return DispatchLess(entries[i], entries[j])
	})
}

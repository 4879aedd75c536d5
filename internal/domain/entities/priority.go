package entities

import "strings"

// Priority is the ordinal urgency of a queue entry
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities; higher is served first
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// ParsePriority normalizes a client supplied priority; empty means medium
func ParsePriority(value string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(value)))
	if p == "" {
		return PriorityMedium, true
	}
	if p.Rank() == 0 {
		return "", false
	}
	return p, true
}

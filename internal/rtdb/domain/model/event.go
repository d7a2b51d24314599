package model

import (
	"fmt"
)

// EventType names a subscription event.
type EventType string

const (
	EventValue        EventType = "value"
	EventChildAdded   EventType = "child_added"
	EventChildChanged EventType = "child_changed"
	EventChildRemoved EventType = "child_removed"
)

// ParseEventType validates s. An empty string means "value".
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case "", EventValue:
		return EventValue, nil
	case EventChildAdded, EventChildChanged, EventChildRemoved:
		return EventType(s), nil
	default:
		return "", fmt.Errorf("unsupported event type %q", s)
	}
}

// IsChildEvent reports whether t is computed from per-child differences.
func (t EventType) IsChildEvent() bool {
	return t == EventChildAdded || t == EventChildChanged || t == EventChildRemoved
}

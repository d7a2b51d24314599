package model

import (
	"time"
)

// ChangeType names a committed write.
type ChangeType string

const (
	ChangePut    ChangeType = "put"
	ChangePatch  ChangeType = "patch"
	ChangeDelete ChangeType = "delete"
)

// Change is the message sent on the change feed after a write commits. It
// carries no document data; listeners re-read what they need.
type Change struct {
	Type      ChangeType `json:"type"`
	Path      string     `json:"path"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewChange stamps a change for collection/id with the current time.
func NewChange(t ChangeType, collection, id string) Change {
	return Change{Type: t, Path: collection + "/" + id, Timestamp: time.Now().UTC()}
}

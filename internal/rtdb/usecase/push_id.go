package usecase

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// KeyGenerator produces child keys for Push.
type KeyGenerator func() string

// NewPushKey returns a unique, lexicographically time-ordered key. Keys created
// in the same millisecond by one process still sort in creation order.
func NewPushKey() string {
	return strings.ToLower(ulid.Make().String())
}

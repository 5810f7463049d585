package application

import (
	"time"

	"github.com/google/uuid"
)

// Clock is injected so timestamps can be pinned in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces job identifiers. Every call must return a value never seen before.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

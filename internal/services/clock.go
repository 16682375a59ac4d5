package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Services take one so tests can pin time.
type Clock func() time.Time

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

// newID builds "<prefix>-<ms>-<suffix>"; the suffix keeps ids unique within a millisecond
func newID(prefix string, ms int64) string {
	return fmt.Sprintf("%s-%d-%s", prefix, ms, uuid.NewString()[:8])
}

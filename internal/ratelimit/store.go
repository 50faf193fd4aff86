package ratelimit

import (
	"context"
	"time"
)

// Store counts requests in sliding windows.
type Store interface {
	// Record adds a request under key and returns how many requests fall in
	// the last window, this one included.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}

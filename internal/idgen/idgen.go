// Package idgen generates time-ordered 64-bit identifiers that are unique across
// generator instances without any coordination beyond a static instance id.
//
// Layout, most significant bit first:
//
//	| 1 bit reserved (0) | 41 bits ms since Epoch | 10 bits instance | 12 bits sequence |
package idgen

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

const (
	timestampBits = 41
	instanceBits  = 10
	sequenceBits  = 12

	MaxInstanceID = 1<<instanceBits - 1
	MaxSequence   = 1<<sequenceBits - 1
	maxTimestamp  = 1<<timestampBits - 1

	instanceShift  = sequenceBits
	timestampShift = sequenceBits + instanceBits
)

// Epoch is the custom epoch identifiers count milliseconds from.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrInvalidInstanceID = errors.New("instance id out of range")
	ErrClockRegression   = errors.New("clock moved backwards")
	ErrEpochExhausted    = errors.New("timestamp does not fit in 41 bits")
)

// ClockRegressionError reports the observed and last emitted timestamps.
// It matches ErrClockRegression with errors.Is.
type ClockRegressionError struct {
	Observed int64
	Last     int64
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("%s: observed %dms, last issued %dms", ErrClockRegression, e.Observed, e.Last)
}

func (e *ClockRegressionError) Is(target error) bool {
	return target == ErrClockRegression
}

// ID is a generated identifier.
type ID uint64

// Parts is an identifier split into its fields.
type Parts struct {
	Timestamp time.Time
	Millis    int64
	Instance  int64
	Sequence  int64
}

// Decompose splits id into timestamp, instance and sequence.
func Decompose(id ID) Parts {
	millis := int64(id >> timestampShift)

	return Parts{
		Timestamp: Epoch.Add(time.Duration(millis) * time.Millisecond),
		Millis:    millis,
		Instance:  int64(id>>instanceShift) & MaxInstanceID,
		Sequence:  int64(id) & MaxSequence,
	}
}

// Clock returns milliseconds elapsed since Epoch.
type Clock interface {
	NowMillis() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) NowMillis() int64 { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) NowMillis() int64 {
	return time.Since(Epoch).Milliseconds()
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(g *Generator) {
		g.clock = c
	}
}

// Generator issues identifiers for one instance id. It is safe for concurrent use.
type Generator struct {
	instance int64
	clock    Clock

	mu         sync.Mutex
	lastMillis int64
	sequence   int64
}

// New creates a generator for instanceID, which must be unique among running generators.
func New(instanceID int64, opts ...Option) (*Generator, error) {
	if instanceID < 0 || instanceID > MaxInstanceID {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidInstanceID, instanceID, MaxInstanceID)
	}

	g := &Generator{
		instance:   instanceID,
		clock:      SystemClock{},
		lastMillis: -1,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// InstanceID returns the instance id embedded in every identifier.
func (g *Generator) InstanceID() int64 {
	return g.instance
}

// Next returns the next identifier. When the sequence for the current millisecond
// is exhausted it waits for the clock to tick; ctx bounds that wait.
func (g *Generator) Next(ctx context.Context) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.NowMillis()

	if now < g.lastMillis {
		return 0, &ClockRegressionError{Observed: now, Last: g.lastMillis}
	}

	if now == g.lastMillis {
		g.sequence = (g.sequence + 1) & MaxSequence
		if g.sequence == 0 {
			var err error

			now, err = g.waitNextMillis(ctx)
			if err != nil {
				// Every sequence of lastMillis is issued; stay pinned so the
				// next call waits for a later millisecond again.
				g.sequence = MaxSequence

				return 0, err
			}
		}
	} else {
		g.sequence = 0
	}

	if now > maxTimestamp {
		return 0, ErrEpochExhausted
	}

	g.lastMillis = now

	return ID(now<<timestampShift | g.instance<<instanceShift | g.sequence), nil
}

func (g *Generator) waitNextMillis(ctx context.Context) (int64, error) {
	for {
		now := g.clock.NowMillis()
		if now > g.lastMillis {
			return now, nil
		}

		if now < g.lastMillis {
			return 0, &ClockRegressionError{Observed: now, Last: g.lastMillis}
		}

		if err := ctx.Err(); err != nil {
			return 0, err
		}

		runtime.Gosched()
	}
}

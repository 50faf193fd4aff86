// Package shortener holds the domain of the redirect engine: mappings from
// short codes to target URLs, how codes are allocated, and how they resolve.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Code is a short code, either generated or a caller-chosen alias.
type Code string

// Mapping binds a code to its target URL.
type Mapping struct {
	Code       Code
	TargetURL  string
	Owner      string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	Active     bool
	ClickCount int64
}

// Live reports whether m may be served at now. A mapping stops being live
// the instant it is deactivated or its expiry is reached.
func (m *Mapping) Live(now time.Time) bool {
	if !m.Active {
		return false
	}

	return m.ExpiresAt == nil || now.Before(*m.ExpiresAt)
}

// CreateRequest describes a new mapping. Alias and TTL are optional.
type CreateRequest struct {
	TargetURL string
	Alias     string
	TTL       time.Duration
	Owner     string
}

// RedirectTarget is the result of resolving a code.
type RedirectTarget struct {
	URL       string
	Permanent bool
}

// Repository is the system of record for mappings.
//
// InsertIfAbsent must be atomic: of concurrent inserts for one code exactly
// one succeeds and the rest get ErrAlreadyExists. Get returns inactive and
// expired mappings as they are; liveness is decided by the caller.
type Repository interface {
	InsertIfAbsent(ctx context.Context, m *Mapping) error
	Get(ctx context.Context, code Code) (*Mapping, error)
	Deactivate(ctx context.Context, code Code) error
	IncrementClickCount(ctx context.Context, code Code, delta int64) error
}

var (
	ErrNotFound         = errors.New("short code not found")
	ErrAlreadyExists    = errors.New("short code already exists")
	ErrInvalidURL       = errors.New("invalid target url")
	ErrInvalidAlias     = errors.New("invalid alias")
	ErrInvalidTTL       = errors.New("ttl must not be negative")
	ErrAliasTaken       = errors.New("alias already taken")
	ErrExhaustedRetries = errors.New("could not allocate a unique code")
	ErrUnknownOutcome   = errors.New("outcome of write is unknown")
)

// UnknownOutcomeError is returned when a store write timed out or was
// cancelled and may or may not have been applied. Callers can Get the code
// to find out. It matches ErrUnknownOutcome with errors.Is.
type UnknownOutcomeError struct {
	Code Code
	Err  error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("%s for code %s: %v", ErrUnknownOutcome, e.Code, e.Err)
}

func (e *UnknownOutcomeError) Is(target error) bool {
	return target == ErrUnknownOutcome
}

func (e *UnknownOutcomeError) Unwrap() error {
	return e.Err
}

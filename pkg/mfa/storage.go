package mfa

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EnrollmentStore persists one secret-and-enabled-flag record per admin.
type EnrollmentStore interface {
	// Upsert creates the enrollment or replaces an existing one. Restarting
	// setup overwrites the old secret so no dangling secret survives.
	Upsert(ctx context.Context, enrollment *Enrollment) error

	// Get retrieves the enrollment by admin ID.
	// Returns ErrEnrollmentNotFound when no record exists.
	Get(ctx context.Context, adminID uuid.UUID) (*Enrollment, error)

	// SetEnabled flips the enabled flag.
	// Returns ErrEnrollmentNotFound when no record exists.
	SetEnabled(ctx context.Context, adminID uuid.UUID, enabled bool) error

	// Delete removes the enrollment entirely.
	// Returns ErrEnrollmentNotFound when no record exists.
	Delete(ctx context.Context, adminID uuid.UUID) error
}

// ChallengeStore persists short-lived login challenges keyed by token.
type ChallengeStore interface {
	// Create stores a new challenge.
	Create(ctx context.Context, challenge *Challenge) error

	// Consume atomically deletes and returns the unexpired challenge with
	// the given token. Exactly one of two concurrent calls for the same
	// token may succeed; the other receives ErrChallengeExpiredOrInvalid,
	// as does any call for a missing or expired token.
	Consume(ctx context.Context, token string, now time.Time) (*Challenge, error)

	// Peek returns the unexpired challenge without consuming it. UI-only;
	// never a basis for authorization, since only Consume is replay-safe.
	Peek(ctx context.Context, token string, now time.Time) (*Challenge, error)

	// DeleteExpired removes challenges past their deadline. Housekeeping
	// only; correctness never depends on it running.
	DeleteExpired(ctx context.Context, now time.Time) error
}

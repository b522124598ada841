package mfa

import "errors"

var (
	// ErrInvalidCode indicates the submitted TOTP code does not match any
	// tolerated time step. Retryable with a fresh code; at the challenge
	// layer a fresh challenge must be issued first.
	ErrInvalidCode = errors.New("mfa: invalid code")

	// ErrChallengeExpiredOrInvalid unifies missing, expired, already-consumed
	// and IP-mismatched challenges into one outcome. The cases are
	// deliberately indistinguishable to callers so a failed verification
	// leaks nothing about why it failed.
	ErrChallengeExpiredOrInvalid = errors.New("mfa: challenge expired or invalid")

	// ErrEnrollmentNotFound indicates no MFA record exists for the admin.
	ErrEnrollmentNotFound = errors.New("mfa: enrollment not found")

	// ErrEnrollmentDisabled indicates the MFA record exists but has not been
	// confirmed, e.g. MFA was disabled while a challenge was in flight.
	ErrEnrollmentDisabled = errors.New("mfa: enrollment disabled")

	// ErrMFANotRequired indicates the admin has no enabled enrollment and the
	// caller should skip the second factor entirely.
	ErrMFANotRequired = errors.New("mfa: not required")

	// ErrTooManyAttempts indicates the failed-attempt limiter denied the
	// verification before any code was checked.
	ErrTooManyAttempts = errors.New("mfa: too many attempts")

	// ErrTokenGeneration indicates the challenge token could not be generated.
	ErrTokenGeneration = errors.New("mfa: failed to generate challenge token")
)

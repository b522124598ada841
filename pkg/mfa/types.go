package mfa

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment is the single MFA record kept per admin identity. Secret holds
// the TOTP secret encrypted with AES-256-GCM; the plaintext only exists for
// the duration of a verification call.
type Enrollment struct {
	AdminID   uuid.UUID
	Secret    string // encrypted, base64
	Enabled   bool   // false while pending verification
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Challenge is a short-lived, single-use gate for the second login factor.
// The token is the holder's bearer credential; successful verification
// consumes the row atomically.
type Challenge struct {
	Token     string
	AdminID   uuid.UUID
	ExpiresAt time.Time
	IPAddress *string // nil skips IP binding
}

// IsExpired reports whether the challenge is past its deadline at the given
// instant. Expiry is enforced at read time; background cleanup is purely
// housekeeping.
func (c *Challenge) IsExpired(now time.Time) bool {
	return c == nil || !c.ExpiresAt.After(now)
}

// Setup is returned by BeginSetup and carries everything the enrollment
// screen needs. It contains the plaintext secret and must only travel to the
// enrolling admin over an authenticated, encrypted channel.
type Setup struct {
	Secret string // Base32 secret for manual entry
	URI    string // otpauth provisioning URI
	QRCode string // base64 PNG data URI of the provisioning URI
}

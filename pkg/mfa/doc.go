// Package mfa implements administrator multi-factor authentication for the
// LMS admin service: TOTP enrollment with a confirm step, and a single-use,
// IP-bound challenge-response protocol that gates the second login factor.
//
// # Enrollment
//
// An admin moves through three states. BeginSetup generates a fresh secret,
// stores it disabled, and returns the provisioning URI plus a QR code.
// ConfirmSetup requires a valid code for the pending secret before the
// enrollment counts, which proves the admin actually scanned it into an
// authenticator. Disable deletes the record outright. Restarting setup while
// enabled replaces the secret immediately so no stale secret stays live.
// Secrets are encrypted with AES-256-GCM before they reach a store.
//
// # Login challenges
//
// After the primary credential check (owned by the calling auth layer),
// IssueChallenge hands out a random 256-bit bearer token valid for five
// minutes and optionally bound to the caller's IP. VerifyChallenge consumes
// the token atomically before looking at the code, so each token admits at
// most one code guess and two concurrent verifications can never both
// succeed. Missing, expired, consumed, and IP-mismatched tokens all fail
// with the same ErrChallengeExpiredOrInvalid to avoid oracle leakage.
//
// # Stores
//
// Persistence sits behind EnrollmentStore and ChallengeStore. PostgresStore
// implements both on pgx with single-statement operations; the memory stores
// mirror the same semantics for tests and single-node use. The service
// itself keeps no secret material between calls.
//
// The package does not verify passwords, issue sessions, or route HTTP;
// it receives a trusted admin ID and an IP string and reports one of:
// not required, challenge issued, verified, invalid code, or challenge
// invalid.
package mfa

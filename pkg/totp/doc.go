// Package totp implements Time-based One-Time Passwords (RFC 6238) for the
// administrator MFA flow: secret key creation, code generation and validation
// with a ±1 step tolerance window, otpauth URI construction for authenticator
// apps, and AES-256-GCM helpers for persisting secrets encrypted at rest.
//
// Codes are always 6 digits over a 30-second step with HMAC-SHA1, matching
// what Google Authenticator, 1Password and compatible apps produce by
// default. Validation compares codes in constant time and accepts the
// previous, current, and next step only; the window is deliberately not
// configurable because widening it weakens replay resistance.
//
// The encryption key is loaded once per process from the MFA_ENCRYPTION_KEY
// environment variable (base64, 32 bytes). Use cmd/keygen to mint one.
//
// Errors are package-level sentinels wrapped with errors.Join; inspect them
// with errors.Is against ErrInvalidSecret, ErrFailedToDecryptSecret, etc.
//
// See RFC 4226 (HOTP) and RFC 6238 (TOTP).
package totp

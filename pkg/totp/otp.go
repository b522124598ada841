package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/edustack/adminmfa/pkg/base32enc"
)

const (
	Digits    = 6      // Standard 6-digit TOTP codes
	Period    = 30     // 30-second validity window (RFC 6238 standard)
	Algorithm = "SHA1" // HMAC-SHA1 algorithm (RFC 6238 standard)

	// SecretSize is the raw secret length in bytes before encoding.
	// 160 bits matches the RFC 4226 recommendation for HMAC-SHA1.
	SecretSize = 20

	// skew is the number of 30-second steps accepted on either side of the
	// current one. One step tolerates clock drift and typing time; anything
	// wider grows the replay-acceptance surface and must not be used.
	skew = 1
)

// ValidateSecretKeyRegex ensures Base32 format: A-Z, digits 2-7, optional padding.
// Lowercase is accepted because secrets are often retyped by hand.
var ValidateSecretKeyRegex = regexp.MustCompile("^[A-Za-z2-7]+=*$")

var codeRegex = regexp.MustCompile(`^\d{6}$`)

// GenerateSecretKey generates a new Base32-encoded secret key for TOTP.
func GenerateSecretKey() (string, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Join(ErrFailedToGenerateSecretKey, err)
	}
	return base32enc.Encode(secret), nil
}

// GenerateCode generates the one-time password for the current 30-second window.
func GenerateCode(secret string) (string, error) {
	return GenerateCodeAt(secret, time.Now())
}

// GenerateCodeAt generates the one-time password for the 30-second window
// containing t. Useful for tests and for pre-computing adjacent windows.
func GenerateCodeAt(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotp(key, t.UnixMilli()/1000/Period), nil
}

// Validate reports whether code is the one-time password for the current
// window or one of its immediate neighbors.
func Validate(secret, code string) (bool, error) {
	return ValidateAt(secret, code, time.Now())
}

// ValidateAt reports whether code matches any window in [t-30s, t+30s].
// Malformed codes are rejected before any crypto work; comparisons are
// constant-time so a partially correct code is indistinguishable from a
// wholly wrong one.
func ValidateAt(secret, code string, t time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if !codeRegex.MatchString(code) {
		return false, nil
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}

	counter := t.UnixMilli() / 1000 / Period
	for i := int64(-skew); i <= skew; i++ {
		expected := hotp(key, counter+i)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// TOTPParams contains the parameters for otpauth URI generation.
type TOTPParams struct {
	Secret      string // Base32-encoded TOTP secret key (required)
	AccountName string // Admin identifier like email (required)
	Issuer      string // Service name displayed in authenticator apps (required)
}

// Validate ensures all required URI parameters are present and well formed.
func (p TOTPParams) Validate() error {
	if p.Secret == "" {
		return ErrMissingSecret
	}
	if !ValidateSecretKeyRegex.MatchString(p.Secret) {
		return ErrInvalidSecret
	}
	if p.AccountName == "" {
		return ErrMissingAccountName
	}
	if p.Issuer == "" {
		return ErrMissingIssuer
	}
	return nil
}

// GetTOTPURI creates a properly encoded otpauth URI for authenticator apps,
// following the Key Uri Format specification:
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
//
// The issuer appears both in the label and the query string, and the query
// parameters keep a fixed order; several common authenticator apps depend on
// both.
func GetTOTPURI(params TOTPParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=%s&digits=%d&period=%d",
		url.PathEscape(params.Issuer),
		url.PathEscape(params.AccountName),
		params.Secret,
		url.QueryEscape(params.Issuer),
		Algorithm,
		Digits,
		Period,
	), nil
}

// hotp implements the RFC 4226 HMAC-based One-Time Password algorithm,
// returning the zero-padded 6-digit code for the given counter.
func hotp(key []byte, counter int64) string {
	// Counter is hashed as a big-endian 8-byte value (RFC 4226 requirement).
	counterBytes := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		counterBytes[i] = byte(counter & 0xff)
		counter >>= 8
	}

	mac := hmac.New(sha1.New, key)
	mac.Write(counterBytes)
	digest := mac.Sum(nil)

	// Dynamic truncation: last 4 bits select the offset, MSB is cleared to
	// keep the extracted value positive.
	offset := digest[len(digest)-1] & 0x0f
	value := (int(digest[offset]&0x7f) << 24) |
		(int(digest[offset+1]&0xff) << 16) |
		(int(digest[offset+2]&0xff) << 8) |
		int(digest[offset+3]&0xff)

	return fmt.Sprintf("%06d", value%1_000_000)
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if !ValidateSecretKeyRegex.MatchString(secret) {
		return nil, ErrInvalidSecret
	}
	key, err := base32enc.Decode(secret)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	return key, nil
}

package mfa

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edustack/adminmfa/pkg/logger"
	"github.com/edustack/adminmfa/pkg/qrcode"
	"github.com/edustack/adminmfa/pkg/ratelimiter"
	"github.com/edustack/adminmfa/pkg/totp"
)

const (
	// DefaultChallengeTTL bounds how long a login challenge stays valid.
	// Five minutes covers opening the authenticator app and typing a code;
	// longer windows only widen the attack surface.
	DefaultChallengeTTL = 5 * time.Minute

	// challengeTokenSize is the raw token length in bytes (256 bits of entropy).
	challengeTokenSize = 32
)

// Service implements the enrollment lifecycle and the challenge-response
// login protocol on top of the two stores. Every operation is synchronous
// and request-scoped; there are no background tasks.
type Service struct {
	enrollments EnrollmentStore
	challenges  ChallengeStore

	encryptionKey []byte
	issuer        string
	challengeTTL  time.Duration
	qrSize        int
	limiter       ratelimiter.RateLimiter
	log           *slog.Logger
	now           func() time.Time
}

// Option configures a Service during construction.
type Option func(*Service)

// WithLogger configures the logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithIssuer sets the issuer shown in authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithChallengeTTL overrides the login challenge lifetime.
func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.challengeTTL = ttl
	}
}

// WithQRCodeSize sets the enrollment QR code size in pixels.
func WithQRCodeSize(size int) Option {
	return func(s *Service) {
		s.qrSize = size
	}
}

// WithAttemptLimiter wires a rate limiter that is consulted, keyed by admin
// ID, before every code verification. Denials surface as ErrTooManyAttempts
// before any crypto work is done.
func WithAttemptLimiter(rl ratelimiter.RateLimiter) Option {
	return func(s *Service) {
		s.limiter = rl
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs the MFA service. The encryption key must be a
// 32-byte AES-256 key (see totp.GetEncryptionKey). The logger discards by
// default.
func NewService(enrollments EnrollmentStore, challenges ChallengeStore, encryptionKey []byte, opts ...Option) (*Service, error) {
	if enrollments == nil || challenges == nil {
		return nil, errors.New("mfa: both stores are required")
	}
	if len(encryptionKey) != totp.AESKeySize {
		return nil, totp.ErrInvalidEncryptionKeyLength
	}

	s := &Service{
		enrollments:   enrollments,
		challenges:    challenges,
		encryptionKey: encryptionKey,
		issuer:        "Edustack",
		challengeTTL:  DefaultChallengeTTL,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BeginSetup starts (or restarts) MFA enrollment for an admin: it generates
// a fresh secret, stores it disabled pending verification, and returns the
// provisioning material. Restarting while already enabled invalidates the
// old secret immediately.
func (s *Service) BeginSetup(ctx context.Context, adminID uuid.UUID, accountName string) (*Setup, error) {
	secret, err := totp.GenerateSecretKey()
	if err != nil {
		return nil, err
	}

	uri, err := totp.GetTOTPURI(totp.TOTPParams{
		Secret:      secret,
		AccountName: accountName,
		Issuer:      s.issuer,
	})
	if err != nil {
		return nil, err
	}

	qr, err := qrcode.GenerateBase64Image(uri, s.qrSize)
	if err != nil {
		return nil, err
	}

	encSecret, err := totp.EncryptSecret(secret, s.encryptionKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.enrollments.Upsert(ctx, &Enrollment{
		AdminID:   adminID,
		Secret:    encSecret,
		Enabled:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to store enrollment: %w", err)
	}

	s.log.InfoContext(ctx, "MFA setup started",
		logger.AdminID(adminID),
		logger.Redacted("secret"),
	)

	return &Setup{Secret: secret, URI: uri, QRCode: qr}, nil
}

// ConfirmSetup completes enrollment: the admin proves possession of an
// authenticator by submitting a valid code for the pending secret. On
// success the enrollment is enabled; on failure it stays pending.
func (s *Service) ConfirmSetup(ctx context.Context, adminID uuid.UUID, code string) error {
	if err := s.allowAttempt(ctx, adminID); err != nil {
		return err
	}

	enrollment, err := s.enrollments.Get(ctx, adminID)
	if err != nil {
		return err
	}

	ok, err := s.validateCode(enrollment.Secret, code)
	if err != nil {
		return err
	}
	if !ok {
		s.log.WarnContext(ctx, "MFA setup confirmation failed", logger.AdminID(adminID))
		return ErrInvalidCode
	}

	if err := s.enrollments.SetEnabled(ctx, adminID, true); err != nil {
		return err
	}
	s.resetAttempts(ctx, adminID)

	s.log.InfoContext(ctx, "MFA enabled", logger.AdminID(adminID))
	return nil
}

// Disable removes the admin's enrollment entirely. No residual secret
// remains; a new setup has to start from scratch.
func (s *Service) Disable(ctx context.Context, adminID uuid.UUID) error {
	if err := s.enrollments.Delete(ctx, adminID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "MFA disabled", logger.AdminID(adminID))
	return nil
}

// IsEnabled reports whether the admin has a confirmed enrollment. Absent or
// pending enrollments both mean MFA is not required at login.
func (s *Service) IsEnabled(ctx context.Context, adminID uuid.UUID) (bool, error) {
	enrollment, err := s.enrollments.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return false, nil
		}
		return false, err
	}
	return enrollment.Enabled, nil
}

// IssueChallenge creates a login challenge after the primary credential
// check succeeded. Returns ErrMFANotRequired when the admin has no enabled
// enrollment, in which case the caller skips the second factor. The returned
// token is the client's bearer credential for VerifyChallenge and is never
// logged.
func (s *Service) IssueChallenge(ctx context.Context, adminID uuid.UUID, ipAddress *string) (string, error) {
	enabled, err := s.IsEnabled(ctx, adminID)
	if err != nil {
		return "", err
	}
	if !enabled {
		return "", ErrMFANotRequired
	}

	token, err := generateChallengeToken()
	if err != nil {
		return "", err
	}

	challenge := &Challenge{
		Token:     token,
		AdminID:   adminID,
		ExpiresAt: s.now().Add(s.challengeTTL),
		IPAddress: ipAddress,
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	s.log.InfoContext(ctx, "login challenge issued",
		logger.AdminID(adminID),
		logger.Redacted("token"),
	)
	return token, nil
}

// VerifyChallenge consumes the challenge identified by token and checks the
// submitted code. The challenge is deleted before the code is examined, so a
// wrong code burns the challenge and guessing requires a fresh token each
// time. All challenge-related failures collapse into
// ErrChallengeExpiredOrInvalid.
func (s *Service) VerifyChallenge(ctx context.Context, token, code, ipAddress string) (uuid.UUID, error) {
	now := s.now()

	challenge, err := s.challenges.Consume(ctx, token, now)
	if err != nil {
		return uuid.Nil, err
	}

	// The IP mismatch reason is logged but never revealed to the caller.
	if challenge.IPAddress != nil && *challenge.IPAddress != ipAddress {
		s.log.WarnContext(ctx, "login challenge presented from a different IP",
			logger.AdminID(challenge.AdminID),
		)
		return uuid.Nil, ErrChallengeExpiredOrInvalid
	}

	if err := s.allowAttempt(ctx, challenge.AdminID); err != nil {
		return uuid.Nil, err
	}

	enrollment, err := s.enrollments.Get(ctx, challenge.AdminID)
	if err != nil {
		// MFA was disabled mid-flight.
		return uuid.Nil, err
	}
	if !enrollment.Enabled {
		return uuid.Nil, ErrEnrollmentDisabled
	}

	ok, err := s.validateCodeAt(enrollment.Secret, code, now)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		s.log.WarnContext(ctx, "login challenge code rejected", logger.AdminID(challenge.AdminID))
		return uuid.Nil, ErrInvalidCode
	}
	s.resetAttempts(ctx, challenge.AdminID)

	s.log.InfoContext(ctx, "login challenge verified", logger.AdminID(challenge.AdminID))
	return challenge.AdminID, nil
}

// PeekChallenge returns the admin ID and expiry of an unexpired challenge
// without consuming it. For UI display only ("who is verifying"); it must
// never be used to authorize an action.
func (s *Service) PeekChallenge(ctx context.Context, token string) (uuid.UUID, time.Time, error) {
	challenge, err := s.challenges.Peek(ctx, token, s.now())
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	return challenge.AdminID, challenge.ExpiresAt, nil
}

// CleanupExpiredChallenges removes challenges past their deadline. Safe to
// run on any schedule; expiry is always enforced at read time regardless.
func (s *Service) CleanupExpiredChallenges(ctx context.Context) error {
	return s.challenges.DeleteExpired(ctx, s.now())
}

func (s *Service) validateCode(encSecret, code string) (bool, error) {
	return s.validateCodeAt(encSecret, code, s.now())
}

func (s *Service) validateCodeAt(encSecret, code string, now time.Time) (bool, error) {
	secret, err := totp.DecryptSecret(encSecret, s.encryptionKey)
	if err != nil {
		return false, err
	}
	return totp.ValidateAt(secret, code, now)
}

// allowAttempt consults the limiter before any crypto work. A nil limiter
// means rate limiting is left to an outer layer.
func (s *Service) allowAttempt(ctx context.Context, adminID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.Allow(ctx, adminID.String())
	if err != nil {
		return fmt.Errorf("attempt limiter failed: %w", err)
	}
	if !res.Allowed() {
		s.log.WarnContext(ctx, "MFA attempt rate limited", logger.AdminID(adminID))
		return ErrTooManyAttempts
	}
	return nil
}

func (s *Service) resetAttempts(ctx context.Context, adminID uuid.UUID) {
	type resetter interface {
		Reset(ctx context.Context, key string) error
	}
	if rl, ok := s.limiter.(resetter); ok {
		if err := rl.Reset(ctx, adminID.String()); err != nil {
			s.log.ErrorContext(ctx, "failed to reset attempt limiter",
				logger.AdminID(adminID),
				logger.Error(err),
			)
		}
	}
}

func generateChallengeToken() (string, error) {
	buf := make([]byte, challengeTokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

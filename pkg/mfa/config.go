package mfa

import (
	"time"

	"github.com/edustack/adminmfa/pkg/ratelimiter"
)

// Config carries the tunable knobs of the MFA service. Parse it with
// caarlos0/env the same way as pg.Config; each field maps to a Service
// option.
type Config struct {
	Issuer                string        `env:"MFA_ISSUER" envDefault:"Edustack"`            // Issuer is the service name shown in authenticator apps.
	ChallengeTTL          time.Duration `env:"MFA_CHALLENGE_TTL" envDefault:"5m"`           // ChallengeTTL is the login challenge lifetime.
	QRCodeSize            int           `env:"MFA_QR_SIZE" envDefault:"256"`                // QRCodeSize is the enrollment QR code size in pixels.
	AttemptLimit          int           `env:"MFA_ATTEMPT_LIMIT" envDefault:"5"`            // AttemptLimit is the failed-attempt bucket capacity per admin.
	AttemptRefillInterval time.Duration `env:"MFA_ATTEMPT_REFILL_INTERVAL" envDefault:"1m"` // AttemptRefillInterval is how often one attempt token is restored.
}

// NewServiceFromConfig builds a Service from an env-derived Config, wiring a
// memory-backed attempt limiter sized from the config. Additional options
// are applied after the config-derived ones and may override them.
func NewServiceFromConfig(enrollments EnrollmentStore, challenges ChallengeStore, encryptionKey []byte, cfg Config, opts ...Option) (*Service, error) {
	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Capacity:       cfg.AttemptLimit,
		RefillRate:     1,
		RefillInterval: cfg.AttemptRefillInterval,
	})
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithIssuer(cfg.Issuer),
		WithChallengeTTL(cfg.ChallengeTTL),
		WithQRCodeSize(cfg.QRCodeSize),
		WithAttemptLimiter(limiter),
	}
	return NewService(enrollments, challenges, encryptionKey, append(base, opts...)...)
}

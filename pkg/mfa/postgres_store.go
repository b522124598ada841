package mfa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edustack/adminmfa/pkg/pg"
)

// Compile-time interface checks.
var (
	_ EnrollmentStore = (*PostgresStore)(nil)
	_ ChallengeStore  = (*PostgresStore)(nil)
)

// PostgresStore implements both stores on a pgx connection pool. All
// operations are single statements; the database provides the atomicity the
// challenge consume path requires.
type PostgresStore struct {
	pool *pgxpool.Pool

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresStore creates a store backed by the given pool. Call
// EnsureSchema once at startup before serving requests.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the MFA tables if they do not exist. The DDL is
// idempotent; the once-guard only skips redundant round trips on repeated
// calls within the process. Deployments using goose migrations
// (pkg/mfa/migrations) can skip this entirely.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, err := s.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS admin_mfa_enrollments (
				admin_id   UUID PRIMARY KEY,
				secret     TEXT NOT NULL,
				enabled    BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE TABLE IF NOT EXISTS admin_login_challenges (
				token      TEXT PRIMARY KEY,
				admin_id   UUID NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				ip_address TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_admin_login_challenges_expires_at
				ON admin_login_challenges (expires_at);
		`)
		if err != nil {
			s.schemaErr = fmt.Errorf("failed to ensure mfa schema: %w", err)
		}
	})
	return s.schemaErr
}

func (s *PostgresStore) Upsert(ctx context.Context, enrollment *Enrollment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_mfa_enrollments (admin_id, secret, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (admin_id) DO UPDATE
		SET secret = EXCLUDED.secret, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		enrollment.AdminID, enrollment.Secret, enrollment.Enabled, enrollment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert enrollment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, adminID uuid.UUID) (*Enrollment, error) {
	var enrollment Enrollment
	err := s.pool.QueryRow(ctx, `
		SELECT admin_id, secret, enabled, created_at, updated_at
		FROM admin_mfa_enrollments
		WHERE admin_id = $1`,
		adminID,
	).Scan(&enrollment.AdminID, &enrollment.Secret, &enrollment.Enabled, &enrollment.CreatedAt, &enrollment.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	return &enrollment, nil
}

func (s *PostgresStore) SetEnabled(ctx context.Context, adminID uuid.UUID, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE admin_mfa_enrollments
		SET enabled = $2, updated_at = now()
		WHERE admin_id = $1`,
		adminID, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, adminID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM admin_mfa_enrollments
		WHERE admin_id = $1`,
		adminID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, challenge *Challenge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_login_challenges (token, admin_id, expires_at, ip_address)
		VALUES ($1, $2, $3, $4)`,
		challenge.Token, challenge.AdminID, challenge.ExpiresAt, challenge.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// Consume is the one operation that must be atomic: the conditional delete
// with RETURNING runs as a single statement, so two concurrent attempts on
// the same token see exactly one row between them.
func (s *PostgresStore) Consume(ctx context.Context, token string, now time.Time) (*Challenge, error) {
	var challenge Challenge
	err := s.pool.QueryRow(ctx, `
		DELETE FROM admin_login_challenges
		WHERE token = $1 AND expires_at > $2
		RETURNING token, admin_id, expires_at, ip_address`,
		token, now,
	).Scan(&challenge.Token, &challenge.AdminID, &challenge.ExpiresAt, &challenge.IPAddress)
	if err != nil {
		if pg.IsNotFoundError(err) {
			// Missing, expired, and already-consumed are indistinguishable.
			return nil, ErrChallengeExpiredOrInvalid
		}
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	return &challenge, nil
}

func (s *PostgresStore) Peek(ctx context.Context, token string, now time.Time) (*Challenge, error) {
	var challenge Challenge
	err := s.pool.QueryRow(ctx, `
		SELECT token, admin_id, expires_at, ip_address
		FROM admin_login_challenges
		WHERE token = $1 AND expires_at > $2`,
		token, now,
	).Scan(&challenge.Token, &challenge.AdminID, &challenge.ExpiresAt, &challenge.IPAddress)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrChallengeExpiredOrInvalid
		}
		return nil, fmt.Errorf("failed to peek challenge: %w", err)
	}
	return &challenge, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM admin_login_challenges
		WHERE expires_at <= $1`,
		now,
	); err != nil {
		return fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return nil
}

// Healthcheck exposes the underlying pool health for service health
// endpoints.
func (s *PostgresStore) Healthcheck(ctx context.Context) error {
	if err := pg.Healthcheck(s.pool)(ctx); err != nil {
		return errors.Join(errors.New("mfa store unavailable"), err)
	}
	return nil
}

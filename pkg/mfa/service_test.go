package mfa_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/adminmfa/pkg/mfa"
	"github.com/edustack/adminmfa/pkg/ratelimiter"
	"github.com/edustack/adminmfa/pkg/totp"
)

// testClock is a controllable time source for exercising expiry and
// TOTP windows deterministically.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1700000000000)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc         *mfa.Service
	enrollments *mfa.MemoryEnrollmentStore
	challenges  *mfa.MemoryChallengeStore
	clock       *testClock
}

func newTestEnv(t *testing.T, opts ...mfa.Option) *testEnv {
	t.Helper()

	key, err := totp.GenerateEncryptionKey()
	require.NoError(t, err)

	clock := newTestClock()
	enrollments := mfa.NewMemoryEnrollmentStore()
	challenges := mfa.NewMemoryChallengeStore(0)
	t.Cleanup(challenges.Close)

	opts = append([]mfa.Option{mfa.WithClock(clock.Now)}, opts...)
	svc, err := mfa.NewService(enrollments, challenges, key, opts...)
	require.NoError(t, err)

	return &testEnv{svc: svc, enrollments: enrollments, challenges: challenges, clock: clock}
}

// enroll walks an admin through the full setup flow and returns the raw
// base32 secret for computing codes in tests.
func (e *testEnv) enroll(t *testing.T, adminID uuid.UUID) string {
	t.Helper()
	ctx := context.Background()

	setup, err := e.svc.BeginSetup(ctx, adminID, "admin@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCodeAt(setup.Secret, e.clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.svc.ConfirmSetup(ctx, adminID, code))

	return setup.Secret
}

func (e *testEnv) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeAt(secret, e.clock.Now())
	require.NoError(t, err)
	return code
}

func strPtr(s string) *string { return &s }

func TestNewService(t *testing.T) {
	t.Parallel()

	t.Run("rejects short key", func(t *testing.T) {
		t.Parallel()
		_, err := mfa.NewService(mfa.NewMemoryEnrollmentStore(), mfa.NewMemoryChallengeStore(0), []byte("short"))
		require.ErrorIs(t, err, totp.ErrInvalidEncryptionKeyLength)
	})

	t.Run("rejects nil stores", func(t *testing.T) {
		t.Parallel()
		key, err := totp.GenerateEncryptionKey()
		require.NoError(t, err)
		_, err = mfa.NewService(nil, nil, key)
		require.Error(t, err)
	})
}

func TestBeginSetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, mfa.WithIssuer("Edustack LMS"))
	adminID := uuid.New()

	setup, err := env.svc.BeginSetup(ctx, adminID, "admin@example.com")
	require.NoError(t, err)

	assert.Regexp(t, totp.ValidateSecretKeyRegex, setup.Secret)
	assert.Contains(t, setup.URI, "otpauth://totp/Edustack%20LMS:admin@example.com")
	assert.Contains(t, setup.URI, "secret="+setup.Secret)
	assert.Contains(t, setup.URI, "issuer=Edustack+LMS")
	assert.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))

	// Pending until confirmed.
	enabled, err := env.svc.IsEnabled(ctx, adminID)
	require.NoError(t, err)
	assert.False(t, enabled)

	// The stored secret is encrypted, never the raw base32 value.
	stored, err := env.enrollments.Get(ctx, adminID)
	require.NoError(t, err)
	assert.NotEqual(t, setup.Secret, stored.Secret)
	assert.NotContains(t, stored.Secret, setup.Secret)
}

func TestConfirmSetup(t *testing.T) {
	t.Parallel()

	t.Run("valid code enables", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()

		setup, err := env.svc.BeginSetup(ctx, adminID, "admin@example.com")
		require.NoError(t, err)

		require.NoError(t, env.svc.ConfirmSetup(ctx, adminID, env.code(t, setup.Secret)))

		enabled, err := env.svc.IsEnabled(ctx, adminID)
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("invalid code stays pending", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()

		_, err := env.svc.BeginSetup(ctx, adminID, "admin@example.com")
		require.NoError(t, err)

		require.ErrorIs(t, env.svc.ConfirmSetup(ctx, adminID, "000000"), mfa.ErrInvalidCode)

		enabled, err := env.svc.IsEnabled(ctx, adminID)
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("no enrollment", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		err := env.svc.ConfirmSetup(context.Background(), uuid.New(), "123456")
		require.ErrorIs(t, err, mfa.ErrEnrollmentNotFound)
	})
}

func TestRestartSetupInvalidatesOldSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	adminID := uuid.New()

	oldSecret := env.enroll(t, adminID)

	// Restarting setup while enabled drops back to pending with a new secret.
	setup, err := env.svc.BeginSetup(ctx, adminID, "admin@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, oldSecret, setup.Secret)

	enabled, err := env.svc.IsEnabled(ctx, adminID)
	require.NoError(t, err)
	assert.False(t, enabled)

	// Codes for the old secret no longer confirm anything.
	err = env.svc.ConfirmSetup(ctx, adminID, env.code(t, oldSecret))
	require.ErrorIs(t, err, mfa.ErrInvalidCode)
}

func TestDisable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	adminID := uuid.New()

	env.enroll(t, adminID)
	require.NoError(t, env.svc.Disable(ctx, adminID))

	enabled, err := env.svc.IsEnabled(ctx, adminID)
	require.NoError(t, err)
	assert.False(t, enabled)

	// No residual record remains.
	_, err = env.enrollments.Get(ctx, adminID)
	require.ErrorIs(t, err, mfa.ErrEnrollmentNotFound)

	require.ErrorIs(t, env.svc.Disable(ctx, adminID), mfa.ErrEnrollmentNotFound)
}

func TestIssueChallenge(t *testing.T) {
	t.Parallel()

	t.Run("not required without enrollment", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		_, err := env.svc.IssueChallenge(context.Background(), uuid.New(), nil)
		require.ErrorIs(t, err, mfa.ErrMFANotRequired)
	})

	t.Run("not required while pending", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()

		_, err := env.svc.BeginSetup(ctx, adminID, "admin@example.com")
		require.NoError(t, err)

		_, err = env.svc.IssueChallenge(ctx, adminID, nil)
		require.ErrorIs(t, err, mfa.ErrMFANotRequired)
	})

	t.Run("issues unique tokens", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		env.enroll(t, adminID)

		first, err := env.svc.IssueChallenge(ctx, adminID, strPtr("1.2.3.4"))
		require.NoError(t, err)
		second, err := env.svc.IssueChallenge(ctx, adminID, strPtr("1.2.3.4"))
		require.NoError(t, err)

		// 32 random bytes encode to 43 url-safe base64 characters.
		assert.Len(t, first, 43)
		assert.NotEqual(t, first, second)
	})
}

func TestVerifyChallenge(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, strPtr("1.2.3.4"))
		require.NoError(t, err)

		got, err := env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, adminID, got)
	})

	t.Run("single use", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, strPtr("1.2.3.4"))
		require.NoError(t, err)

		code := env.code(t, secret)
		_, err = env.svc.VerifyChallenge(ctx, token, code, "1.2.3.4")
		require.NoError(t, err)

		_, err = env.svc.VerifyChallenge(ctx, token, code, "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrChallengeExpiredOrInvalid)
	})

	t.Run("wrong code burns the challenge", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, strPtr("1.2.3.4"))
		require.NoError(t, err)

		_, err = env.svc.VerifyChallenge(ctx, token, "000000", "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrInvalidCode)

		// Even the right code cannot revive a consumed token.
		_, err = env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrChallengeExpiredOrInvalid)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		_, err := env.svc.VerifyChallenge(context.Background(), "no-such-token", "123456", "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrChallengeExpiredOrInvalid)
	})

	t.Run("expired challenge", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, strPtr("1.2.3.4"))
		require.NoError(t, err)

		env.clock.Advance(mfa.DefaultChallengeTTL + time.Second)

		_, err = env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrChallengeExpiredOrInvalid)
	})

	t.Run("IP mismatch", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, strPtr("1.2.3.4"))
		require.NoError(t, err)

		// The mismatch reason is indistinguishable from an expired token.
		_, err = env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "9.9.9.9")
		require.ErrorIs(t, err, mfa.ErrChallengeExpiredOrInvalid)
	})

	t.Run("nil IP skips binding", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, nil)
		require.NoError(t, err)

		got, err := env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "9.9.9.9")
		require.NoError(t, err)
		assert.Equal(t, adminID, got)
	})

	t.Run("code from adjacent window accepted", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, nil)
		require.NoError(t, err)

		code := env.code(t, secret)
		env.clock.Advance(30 * time.Second)

		got, err := env.svc.VerifyChallenge(ctx, token, code, "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, adminID, got)
	})

	t.Run("stale code rejected", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, nil)
		require.NoError(t, err)

		code := env.code(t, secret)
		env.clock.Advance(2 * time.Minute)

		_, err = env.svc.VerifyChallenge(ctx, token, code, "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrInvalidCode)
	})

	t.Run("MFA disabled mid flight", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, nil)
		require.NoError(t, err)

		require.NoError(t, env.svc.Disable(ctx, adminID))

		_, err = env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrEnrollmentNotFound)
	})

	t.Run("setup restarted mid flight", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		env := newTestEnv(t)
		adminID := uuid.New()
		secret := env.enroll(t, adminID)

		token, err := env.svc.IssueChallenge(ctx, adminID, nil)
		require.NoError(t, err)

		_, err = env.svc.BeginSetup(ctx, adminID, "admin@example.com")
		require.NoError(t, err)

		_, err = env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrEnrollmentDisabled)
	})
}

func TestVerifyChallenge_AttemptLimiter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})
	require.NoError(t, err)

	env := newTestEnv(t, mfa.WithAttemptLimiter(limiter))
	adminID := uuid.New()
	secret := env.enroll(t, adminID)

	issue := func() string {
		token, err := env.svc.IssueChallenge(ctx, adminID, nil)
		require.NoError(t, err)
		return token
	}

	// Enrollment consumed one attempt and reset the bucket on success, so
	// two failed guesses drain it again.
	for i := 0; i < 2; i++ {
		_, err = env.svc.VerifyChallenge(ctx, issue(), "000000", "1.2.3.4")
		require.ErrorIs(t, err, mfa.ErrInvalidCode)
	}

	// Third attempt is denied before the code is even examined.
	_, err = env.svc.VerifyChallenge(ctx, issue(), env.code(t, secret), "1.2.3.4")
	require.ErrorIs(t, err, mfa.ErrTooManyAttempts)

	// Once the bucket resets, a correct code verifies again.
	require.NoError(t, store.Reset(ctx, adminID.String()))
	got, err := env.svc.VerifyChallenge(ctx, issue(), env.code(t, secret), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, adminID, got)
}

func TestPeekChallenge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	adminID := uuid.New()
	secret := env.enroll(t, adminID)

	token, err := env.svc.IssueChallenge(ctx, adminID, nil)
	require.NoError(t, err)

	gotID, expiresAt, err := env.svc.PeekChallenge(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, adminID, gotID)
	assert.Equal(t, env.clock.Now().Add(mfa.DefaultChallengeTTL), expiresAt)

	// Peek must not consume: the challenge still verifies.
	_, err = env.svc.VerifyChallenge(ctx, token, env.code(t, secret), "1.2.3.4")
	require.NoError(t, err)

	_, _, err = env.svc.PeekChallenge(ctx, token)
	require.ErrorIs(t, err, mfa.ErrChallengeExpiredOrInvalid)
}

func TestCleanupExpiredChallenges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	adminID := uuid.New()
	env.enroll(t, adminID)

	stale, err := env.svc.IssueChallenge(ctx, adminID, nil)
	require.NoError(t, err)

	env.clock.Advance(mfa.DefaultChallengeTTL + time.Second)

	fresh, err := env.svc.IssueChallenge(ctx, adminID, nil)
	require.NoError(t, err)

	require.NoError(t, env.svc.CleanupExpiredChallenges(ctx))

	_, _, err = env.svc.PeekChallenge(ctx, stale)
	require.ErrorIs(t, err, mfa.ErrChallengeExpiredOrInvalid)

	_, _, err = env.svc.PeekChallenge(ctx, fresh)
	require.NoError(t, err)
}

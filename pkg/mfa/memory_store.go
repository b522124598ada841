package mfa

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEnrollmentStore implements EnrollmentStore using in-memory storage.
// Intended for tests and single-node deployments.
type MemoryEnrollmentStore struct {
	mu          sync.RWMutex
	enrollments map[uuid.UUID]*Enrollment
}

// NewMemoryEnrollmentStore creates a new in-memory enrollment store.
func NewMemoryEnrollmentStore() *MemoryEnrollmentStore {
	return &MemoryEnrollmentStore{
		enrollments: make(map[uuid.UUID]*Enrollment),
	}
}

func (m *MemoryEnrollmentStore) Upsert(ctx context.Context, enrollment *Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *enrollment
	m.enrollments[enrollment.AdminID] = &cp
	return nil
}

func (m *MemoryEnrollmentStore) Get(ctx context.Context, adminID uuid.UUID) (*Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	enrollment, exists := m.enrollments[adminID]
	if !exists {
		return nil, ErrEnrollmentNotFound
	}
	cp := *enrollment
	return &cp, nil
}

func (m *MemoryEnrollmentStore) SetEnabled(ctx context.Context, adminID uuid.UUID, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	enrollment, exists := m.enrollments[adminID]
	if !exists {
		return ErrEnrollmentNotFound
	}
	enrollment.Enabled = enabled
	enrollment.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryEnrollmentStore) Delete(ctx context.Context, adminID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.enrollments[adminID]; !exists {
		return ErrEnrollmentNotFound
	}
	delete(m.enrollments, adminID)
	return nil
}

// MemoryChallengeStore implements ChallengeStore using in-memory storage.
// Consume holds the write lock for the whole check-and-delete, which gives
// the same exactly-once guarantee the SQL store gets from a conditional
// DELETE ... RETURNING.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	ticker     *time.Ticker
	done       chan struct{}
}

// NewMemoryChallengeStore creates a new in-memory challenge store. A
// positive cleanupInterval starts background eviction of expired rows;
// pass 0 to disable it (expiry is enforced at read time either way).
func NewMemoryChallengeStore(cleanupInterval time.Duration) *MemoryChallengeStore {
	store := &MemoryChallengeStore{
		challenges: make(map[string]*Challenge),
		done:       make(chan struct{}),
	}

	if cleanupInterval > 0 {
		store.ticker = time.NewTicker(cleanupInterval)
		go store.cleanupLoop()
	}

	return store
}

func (m *MemoryChallengeStore) Create(ctx context.Context, challenge *Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *challenge
	m.challenges[challenge.Token] = &cp
	return nil
}

func (m *MemoryChallengeStore) Consume(ctx context.Context, token string, now time.Time) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, exists := m.challenges[token]
	if !exists || challenge.IsExpired(now) {
		return nil, ErrChallengeExpiredOrInvalid
	}

	delete(m.challenges, token)
	cp := *challenge
	return &cp, nil
}

func (m *MemoryChallengeStore) Peek(ctx context.Context, token string, now time.Time) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, exists := m.challenges[token]
	if !exists || challenge.IsExpired(now) {
		return nil, ErrChallengeExpiredOrInvalid
	}
	cp := *challenge
	return &cp, nil
}

func (m *MemoryChallengeStore) DeleteExpired(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, challenge := range m.challenges {
		if challenge.IsExpired(now) {
			delete(m.challenges, token)
		}
	}
	return nil
}

func (m *MemoryChallengeStore) cleanupLoop() {
	for {
		select {
		case <-m.ticker.C:
			_ = m.DeleteExpired(context.Background(), time.Now())
		case <-m.done:
			return
		}
	}
}

// Close stops the cleanup goroutine if one is running. Safe to call
// multiple times.
func (m *MemoryChallengeStore) Close() {
	select {
	case <-m.done:
		// Already closed
	default:
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
	}
}

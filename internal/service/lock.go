package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/persist"
)

// Gateway applies and clears device restrictions. Both calls must be idempotent.
type Gateway interface {
	Apply(ctx context.Context, selection models.Selection) error
	Clear(ctx context.Context) error
}

// Transition is the effect of a successful scan.
type Transition int

const (
	// TransitionLocked means the device went from unlocked to locked.
	TransitionLocked Transition = iota + 1
	// TransitionUnlocked means the matching tag released the lock.
	TransitionUnlocked
)

// LockMachine owns the lock state and the emergency budget. It is not safe
// for concurrent use; the Controller owns it.
type LockMachine struct {
	state    models.LockState
	budget   int
	profiles *ProfileStore
	gateway  Gateway
	store    persist.ByteStore
	writer   *persist.Writer
	log      *zap.Logger
}

// NewLockMachine creates an unlocked machine with the default budget.
func NewLockMachine(
	profiles *ProfileStore,
	gateway Gateway,
	store persist.ByteStore,
	writer *persist.Writer,
	log *zap.Logger,
) *LockMachine {
	return &LockMachine{
		budget:   models.DefaultEmergencyUnlocks,
		profiles: profiles,
		gateway:  gateway,
		store:    store,
		writer:   writer,
		log:      log,
	}
}

// Restore loads the persisted state. A locked id that no longer names a
// profile is discarded, restrictions are cleared and Unlocked is persisted.
// Profiles must be loaded first.
func (m *LockMachine) Restore(ctx context.Context) error {
	m.state = models.Unlocked()
	m.budget = models.DefaultEmergencyUnlocks

	raw, ok, err := m.store.LoadScalar(ctx, persist.KeyEmergencyUnlocks)
	if err != nil {
		return fmt.Errorf("load emergency budget: %w", err)
	}
	if ok {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			m.log.Warn("ignoring unreadable emergency budget", zap.String("value", raw), zap.Error(err))
		case n < 0:
			m.budget = 0
		default:
			m.budget = n
		}
	}

	raw, ok, err = m.store.LoadScalar(ctx, persist.KeyLockedProfile)
	if err != nil {
		return fmt.Errorf("load lock state: %w", err)
	}
	if !ok {
		return nil
	}

	id, err := uuid.Parse(raw)
	if err == nil && m.profiles.Contains(id) {
		m.state = models.LockedTo(id)
		return nil
	}

	m.log.Warn("discarding stale lock state", zap.String("profile_id", raw))
	if err := m.gateway.Clear(ctx); err != nil {
		m.log.Error("failed to clear restrictions for stale lock", zap.Error(err))
	}
	m.persist()
	return nil
}

// Current returns the lock state.
func (m *LockMachine) Current() models.LockState {
	return m.state
}

// EmergencyUnlocksRemaining returns the remaining budget.
func (m *LockMachine) EmergencyUnlocksRemaining() int {
	return m.budget
}

// Scan applies the tag-scan transition for id. Restrictions are applied or
// cleared before the state changes; if that fails the state is untouched and
// an ErrGateway error is returned.
func (m *LockMachine) Scan(ctx context.Context, id uuid.UUID) (Transition, error) {
	if locked, ok := m.state.ProfileID(); ok {
		if locked != id {
			return 0, ErrLockedToOther
		}
		if err := m.gateway.Clear(ctx); err != nil {
			return 0, fmt.Errorf("%w: clear: %w", ErrGateway, err)
		}
		m.state = models.Unlocked()
		m.persist()
		m.log.Info("unlocked", zap.Stringer("profile_id", id))
		return TransitionUnlocked, nil
	}

	p, ok := m.profiles.Get(id)
	if !ok {
		return 0, ErrNoMatchingProfile
	}
	if err := m.gateway.Apply(ctx, p.Selection); err != nil {
		return 0, fmt.Errorf("%w: apply: %w", ErrGateway, err)
	}
	m.state = models.LockedTo(id)
	m.persist()
	m.log.Info("locked", zap.Stringer("profile_id", id), zap.String("profile", p.Name))
	return TransitionLocked, nil
}

// EmergencyUnlock releases the lock without a tag, spending one unit of
// budget. It returns ErrNotEligible, with no side effects, when unlocked or
// when the budget is exhausted.
func (m *LockMachine) EmergencyUnlock(ctx context.Context) error {
	if !m.state.IsLocked() || m.budget <= 0 {
		return ErrNotEligible
	}
	if err := m.gateway.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrGateway, err)
	}
	m.state = models.Unlocked()
	m.budget--
	m.persist()
	m.log.Warn("emergency unlock used", zap.Int("remaining", m.budget))
	return nil
}

// CheckModifiable returns ErrProfileLocked when id is the locked profile.
func (m *LockMachine) CheckModifiable(id uuid.UUID) error {
	if m.state.IsLockedTo(id) {
		return ErrProfileLocked
	}
	return nil
}

// Reconcile falls back to Unlocked when the locked profile has disappeared
// from the store. It reports whether a repair happened.
func (m *LockMachine) Reconcile(ctx context.Context) bool {
	id, ok := m.state.ProfileID()
	if !ok || m.profiles.Contains(id) {
		return false
	}
	m.log.Warn("locked profile removed, unlocking", zap.Stringer("profile_id", id))
	if err := m.gateway.Clear(ctx); err != nil {
		m.log.Error("failed to clear restrictions for removed profile", zap.Error(err))
	}
	m.state = models.Unlocked()
	m.persist()
	return true
}

// persist schedules state and budget as one write.
func (m *LockMachine) persist() {
	locked := persist.Unset(persist.KeyLockedProfile)
	if id, ok := m.state.ProfileID(); ok {
		locked = persist.Set(persist.KeyLockedProfile, id.String())
	}
	budget := persist.Set(persist.KeyEmergencyUnlocks, strconv.Itoa(m.budget))

	m.writer.Enqueue("lock state", func(ctx context.Context) error {
		return m.store.SaveScalars(ctx, locked, budget)
	})
}

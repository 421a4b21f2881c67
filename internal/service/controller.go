package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/exchange"
	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/persist"
	"github.com/atinyakov/TagLock/internal/tag"
)

// TagSession runs single-shot exchanges with the tag reader.
type TagSession interface {
	BeginRead(ctx context.Context) (<-chan exchange.ReadResult, error)
	BeginWrite(ctx context.Context, payload []byte) (<-chan error, error)
}

// OutcomeKind is the result category of a scan.
type OutcomeKind int

const (
	OutcomeLocked OutcomeKind = iota + 1
	OutcomeUnlocked
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeLocked:
		return "locked"
	case OutcomeUnlocked:
		return "unlocked"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Reason explains a rejected scan.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnreadableTag
	ReasonNoMatchingProfile
	ReasonLockedToOther
)

func (r Reason) String() string {
	switch r {
	case ReasonUnreadableTag:
		return "unreadable_tag"
	case ReasonNoMatchingProfile:
		return "no_matching_profile"
	case ReasonLockedToOther:
		return "locked_to_other"
	default:
		return ""
	}
}

// Outcome describes what a scan did.
type Outcome struct {
	Kind        OutcomeKind
	ProfileID   uuid.UUID
	ProfileName string
	Reason      Reason
	// Err is the decode or state error behind a rejection.
	Err error
}

// Message is a short human readable description of the outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeLocked:
		return fmt.Sprintf("Locked with %q", o.ProfileName)
	case OutcomeUnlocked:
		return "Unlocked"
	}

	switch o.Reason {
	case ReasonNoMatchingProfile:
		return "No profile matches this tag"
	case ReasonLockedToOther:
		return "Wrong tag, the device is locked to another profile"
	}
	switch tag.Classify(o.Err) {
	case tag.ClassEmpty:
		return "Tag is empty"
	case tag.ClassCorrupted:
		return "Tag data is corrupted"
	default:
		return "Tag does not hold a profile"
	}
}

// Config holds the collaborators of a Controller.
type Config struct {
	Store   persist.ByteStore
	Writer  *persist.Writer
	Gateway Gateway
	// Session may be nil when no reader is attached.
	Session TagSession
	Logger  *zap.Logger
}

// Controller is the single coordination point for profiles and the lock.
// Every operation runs under one mutex, so state changes never interleave.
type Controller struct {
	mu       sync.Mutex
	profiles *ProfileStore
	lock     *LockMachine
	writer   *persist.Writer
	session  TagSession
	log      *zap.Logger
}

// NewController wires the profile store and lock machine. Call Load before use.
func NewController(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	profiles := NewProfileStore(cfg.Store, cfg.Writer)
	return &Controller{
		profiles: profiles,
		lock:     NewLockMachine(profiles, cfg.Gateway, cfg.Store, cfg.Writer, log),
		writer:   cfg.Writer,
		session:  cfg.Session,
		log:      log,
	}
}

// Load reads profiles and then the lock state from the store.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Reload discards the in-memory state and reads it again from the store,
// after every write already queued has landed.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}
	c.log.Info("state reloaded", zap.Int("profiles", len(c.profiles.All())))
	return nil
}

func (c *Controller) load(ctx context.Context) error {
	// Queued writes would otherwise land after the read and overwrite it.
	if c.writer != nil {
		if err := c.writer.Flush(ctx); err != nil {
			return fmt.Errorf("flush pending writes: %w", err)
		}
	}
	if err := c.profiles.Load(ctx); err != nil {
		return err
	}
	return c.lock.Restore(ctx)
}

// Profiles returns the profiles in insertion order.
func (c *Controller) Profiles() []models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profiles.All()
}

// Profile returns one profile.
func (c *Controller) Profile(id uuid.UUID) (models.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profiles.Get(id)
}

// AddProfile creates a profile with a fresh id.
func (c *Controller) AddProfile(name string, selection models.Selection) models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := models.NewProfile(name, selection)
	c.profiles.Add(p)
	c.log.Info("profile added", zap.Stringer("profile_id", p.ID), zap.String("profile", p.Name))
	return p
}

// EditProfile renames a profile and replaces its selection.
func (c *Controller) EditProfile(id uuid.UUID, name string, selection models.Selection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.lock.CheckModifiable(id); err != nil {
		return err
	}
	if !c.profiles.Update(id, models.NormalizeName(name), selection) {
		return ErrProfileNotFound
	}
	return nil
}

// DeleteProfiles removes the listed profiles and returns the ids removed.
// The locked profile is never removed; when it was listed the other ids are
// still removed and ErrProfileLocked is returned alongside them.
func (c *Controller) DeleteProfiles(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var guardErr error
	allowed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if err := c.lock.CheckModifiable(id); err != nil {
			guardErr = err
			continue
		}
		allowed = append(allowed, id)
	}

	removed := c.profiles.Remove(allowed)
	if len(removed) > 0 {
		c.log.Info("profiles removed", zap.Int("count", len(removed)))
	}
	c.lock.Reconcile(ctx)
	return removed, guardErr
}

// OnScan decodes raw tag content and applies the scan to the lock machine.
// Rejections are reported in the Outcome; the error is reserved for gateway
// failures, in which case no transition happened.
func (c *Controller) OnScan(ctx context.Context, raw []byte) (Outcome, error) {
	id, err := tag.DecodeBytes(raw)
	if err != nil {
		c.log.Info("tag rejected", zap.Stringer("class", tag.Classify(err)), zap.Error(err))
		return Outcome{Kind: OutcomeRejected, Reason: ReasonUnreadableTag, Err: err}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	transition, err := c.lock.Scan(ctx, id)
	switch {
	case errors.Is(err, ErrNoMatchingProfile):
		return Outcome{Kind: OutcomeRejected, ProfileID: id, Reason: ReasonNoMatchingProfile, Err: err}, nil
	case errors.Is(err, ErrLockedToOther):
		return Outcome{Kind: OutcomeRejected, ProfileID: id, Reason: ReasonLockedToOther, Err: err}, nil
	case err != nil:
		return Outcome{}, err
	}

	p, _ := c.profiles.Get(id)
	kind := OutcomeUnlocked
	if transition == TransitionLocked {
		kind = OutcomeLocked
	}
	return Outcome{Kind: kind, ProfileID: id, ProfileName: p.Name}, nil
}

// ScanTag waits for a tag to be read and then handles it like OnScan. The
// controller is not held while waiting. Reader failures are returned as errors.
func (c *Controller) ScanTag(ctx context.Context) (Outcome, error) {
	if c.session == nil {
		return Outcome{}, exchange.ErrUnavailable
	}
	ch, err := c.session.BeginRead(ctx)
	if err != nil {
		return Outcome{}, err
	}
	res := <-ch
	if res.Err != nil {
		return Outcome{}, fmt.Errorf("read tag: %w", res.Err)
	}
	return c.OnScan(ctx, res.Payload)
}

// TagPayload returns the bytes to write on the tag for profile id.
func (c *Controller) TagPayload(id uuid.UUID) ([]byte, error) {
	c.mu.Lock()
	p, ok := c.profiles.Get(id)
	c.mu.Unlock()
	if !ok {
		return nil, ErrProfileNotFound
	}
	return tag.EncodeBytes(p.ID, p.Name)
}

// WriteTag writes the tag for profile id through the reader.
func (c *Controller) WriteTag(ctx context.Context, id uuid.UUID) error {
	if c.session == nil {
		return exchange.ErrUnavailable
	}
	payload, err := c.TagPayload(id)
	if err != nil {
		return err
	}
	ch, err := c.session.BeginWrite(ctx, payload)
	if err != nil {
		return err
	}
	if err := <-ch; err != nil {
		return fmt.Errorf("write tag: %w", err)
	}
	c.log.Info("tag written", zap.Stringer("profile_id", id), zap.Int("bytes", len(payload)))
	return nil
}

// EmergencyUnlock releases the lock without a tag.
func (c *Controller) EmergencyUnlock(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lock.EmergencyUnlock(ctx)
}

// Status returns a snapshot of the lock.
func (c *Controller) Status() models.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.Status{EmergencyUnlocksRemaining: c.lock.EmergencyUnlocksRemaining()}
	if id, ok := c.lock.Current().ProfileID(); ok {
		st.Locked = true
		st.ProfileID = id.String()
		if p, ok := c.profiles.Get(id); ok {
			st.ProfileName = p.Name
		}
	}
	return st
}

// IsLocked reports whether restrictions are currently applied.
func (c *Controller) IsLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lock.Current().IsLocked()
}

// Package models defines the core data structures for profiles and lock state.
package models

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
)

// DefaultProfileName is used when a profile is saved with a blank name.
const DefaultProfileName = "New Profile"

// DefaultEmergencyUnlocks is the emergency budget of a fresh install.
const DefaultEmergencyUnlocks = 3

// Selection is the opaque set of apps, sites and categories chosen in the
// picker. The core only compares and empty-checks it.
type Selection []byte

// IsEmpty reports whether nothing was selected.
func (s Selection) IsEmpty() bool {
	return len(s) == 0
}

// Equal reports whether two selections are identical.
func (s Selection) Equal(other Selection) bool {
	return bytes.Equal(s, other)
}

// Profile is a named restriction set that can be bound to a tag.
type Profile struct {
	// ID is the random, immutable identifier written to the tag.
	ID uuid.UUID `json:"id"`
	// Name is the user-visible label, also written to the tag as text.
	Name string `json:"name"`
	// Selection is the opaque restriction set applied while locked.
	Selection Selection `json:"selection"`
}

// NewProfile creates a profile with a freshly generated identifier.
func NewProfile(name string, selection Selection) Profile {
	return Profile{
		ID:        uuid.New(),
		Name:      NormalizeName(name),
		Selection: selection,
	}
}

// NormalizeName trims the name and substitutes DefaultProfileName for blanks.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultProfileName
	}
	return name
}

// LockState is either Unlocked or locked to one profile. The zero value is Unlocked.
type LockState struct {
	profileID uuid.UUID
	locked    bool
}

// Unlocked returns the unlocked state.
func Unlocked() LockState {
	return LockState{}
}

// LockedTo returns the state locked to the given profile.
func LockedTo(id uuid.UUID) LockState {
	return LockState{profileID: id, locked: true}
}

// IsLocked reports whether the state is LockedTo some profile.
func (s LockState) IsLocked() bool {
	return s.locked
}

// ProfileID returns the locked profile and true, or uuid.Nil and false when unlocked.
func (s LockState) ProfileID() (uuid.UUID, bool) {
	return s.profileID, s.locked
}

// IsLockedTo reports whether the state is locked to exactly id.
func (s LockState) IsLockedTo(id uuid.UUID) bool {
	return s.locked && s.profileID == id
}

func (s LockState) String() string {
	if !s.locked {
		return "unlocked"
	}
	return "locked:" + s.profileID.String()
}

// Status is a read-only snapshot of the lock machine for callers outside the core.
type Status struct {
	// Locked is true while restrictions are applied.
	Locked bool `json:"locked"`
	// ProfileID is the locked profile, empty when unlocked.
	ProfileID string `json:"profile_id,omitempty"`
	// ProfileName is the locked profile's name, empty when unlocked.
	ProfileName string `json:"profile_name,omitempty"`
	// EmergencyUnlocksRemaining is the remaining override budget.
	EmergencyUnlocksRemaining int `json:"emergency_unlocks_remaining"`
}

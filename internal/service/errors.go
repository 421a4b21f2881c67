package service

import "errors"

// State-conflict errors. They describe expected user situations, not faults.
var (
	// ErrNoMatchingProfile is returned when a scanned tag names no known profile.
	ErrNoMatchingProfile = errors.New("no matching profile")
	// ErrLockedToOther is returned when a different tag is scanned while locked.
	ErrLockedToOther = errors.New("locked to a different tag")
	// ErrProfileLocked is returned when editing or deleting the locked profile.
	ErrProfileLocked = errors.New("profile is locked")
	// ErrNotEligible is returned by EmergencyUnlock when unlocked or out of budget.
	ErrNotEligible = errors.New("emergency unlock not eligible")
	// ErrProfileNotFound is returned when an operation names an unknown profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// ErrGateway wraps failures of the restriction gateway; the transition did not happen.
var ErrGateway = errors.New("restriction gateway failed")

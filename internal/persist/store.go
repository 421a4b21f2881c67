// Package persist defines the byte store contract used by the core and the
// ordered background writer that applies mutations to it.
package persist

import (
	"context"

	"github.com/atinyakov/TagLock/internal/models"
)

// Scalar keys persisted next to the profile collection.
const (
	// KeyLockedProfile holds the locked profile id; absent means unlocked.
	KeyLockedProfile = "locked_profile_id"
	// KeyEmergencyUnlocks holds the remaining emergency budget; absent means the default.
	KeyEmergencyUnlocks = "emergency_unlocks_remaining"
)

// Scalar is a single keyed value. A nil Value removes the key.
type Scalar struct {
	Key   string
	Value *string
}

// Set returns a scalar that stores value under key.
func Set(key, value string) Scalar {
	return Scalar{Key: key, Value: &value}
}

// Unset returns a scalar that removes key.
func Unset(key string) Scalar {
	return Scalar{Key: key}
}

// ByteStore is the durable storage behind profiles and lock state.
type ByteStore interface {
	// LoadProfiles returns the stored collection and false when nothing was ever saved.
	LoadProfiles(ctx context.Context) ([]models.Profile, bool, error)
	// SaveProfiles replaces the stored collection.
	SaveProfiles(ctx context.Context, profiles []models.Profile) error
	// LoadScalar returns the value for key and false when it is absent.
	LoadScalar(ctx context.Context, key string) (string, bool, error)
	// SaveScalars applies all values atomically.
	SaveScalars(ctx context.Context, values ...Scalar) error
}

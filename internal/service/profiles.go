package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/persist"
)

// ProfileStore holds the ordered profile collection and schedules a full
// save after every mutation. It is not safe for concurrent use; the
// Controller owns it.
type ProfileStore struct {
	profiles []models.Profile
	store    persist.ByteStore
	writer   *persist.Writer
}

// NewProfileStore creates an empty store backed by store.
func NewProfileStore(store persist.ByteStore, writer *persist.Writer) *ProfileStore {
	return &ProfileStore{store: store, writer: writer}
}

// Load replaces the in-memory collection with the stored one.
func (s *ProfileStore) Load(ctx context.Context) error {
	profiles, ok, err := s.store.LoadProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	if !ok {
		profiles = nil
	}
	s.profiles = profiles
	return nil
}

// Add appends p.
func (s *ProfileStore) Add(p models.Profile) {
	s.profiles = append(s.profiles, p)
	s.schedule()
}

// Update changes the name and selection of id. It returns false and does
// nothing when id is unknown.
func (s *ProfileStore) Update(id uuid.UUID, name string, selection models.Selection) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.profiles[i].Name = name
	s.profiles[i].Selection = selection
	s.schedule()
	return true
}

// Remove deletes every listed profile and returns the ids that existed.
func (s *ProfileStore) Remove(ids []uuid.UUID) []uuid.UUID {
	var removed []uuid.UUID
	s.profiles = slices.DeleteFunc(s.profiles, func(p models.Profile) bool {
		if slices.Contains(ids, p.ID) {
			removed = append(removed, p.ID)
			return true
		}
		return false
	})
	if len(removed) > 0 {
		s.schedule()
	}
	return removed
}

// All returns a copy of the collection.
func (s *ProfileStore) All() []models.Profile {
	return slices.Clone(s.profiles)
}

// Get returns the profile with id.
func (s *ProfileStore) Get(id uuid.UUID) (models.Profile, bool) {
	i := s.index(id)
	if i < 0 {
		return models.Profile{}, false
	}
	return s.profiles[i], true
}

// Contains reports whether id is in the collection.
func (s *ProfileStore) Contains(id uuid.UUID) bool {
	return s.index(id) >= 0
}

func (s *ProfileStore) index(id uuid.UUID) int {
	return slices.IndexFunc(s.profiles, func(p models.Profile) bool { return p.ID == id })
}

func (s *ProfileStore) schedule() {
	snapshot := slices.Clone(s.profiles)
	if snapshot == nil {
		snapshot = []models.Profile{}
	}
	s.writer.Enqueue("profiles", func(ctx context.Context) error {
		return s.store.SaveProfiles(ctx, snapshot)
	})
}

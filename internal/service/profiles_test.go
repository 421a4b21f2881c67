package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/models"
	"github.com/atinyakov/TagLock/internal/persist"
	"github.com/atinyakov/TagLock/internal/service"
)

func TestProfileStore(t *testing.T) {
	store := newMemStore()
	w := persist.NewWriter(zap.NewNop())
	defer w.Close()

	ps := service.NewProfileStore(store, w)
	require.NoError(t, ps.Load(context.Background()))
	assert.Empty(t, ps.All())

	a := models.NewProfile("A", models.Selection{1})
	b := models.NewProfile("B", nil)
	ps.Add(a)
	ps.Add(b)

	assert.True(t, ps.Update(a.ID, "A2", models.Selection{2}))
	assert.False(t, ps.Update(uuid.New(), "x", nil))

	got, ok := ps.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "A2", got.Name)
	assert.True(t, got.Selection.Equal(models.Selection{2}))

	missing := uuid.New()
	removed := ps.Remove([]uuid.UUID{b.ID, missing})
	assert.Equal(t, []uuid.UUID{b.ID}, removed)
	assert.False(t, ps.Contains(b.ID))
	assert.Empty(t, ps.Remove([]uuid.UUID{missing}))

	all := ps.All()
	all[0].Name = "mutated"
	got, _ = ps.Get(a.ID)
	assert.Equal(t, "A2", got.Name)

	require.NoError(t, w.Flush(context.Background()))
	stored, ok, err := store.LoadProfiles(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored, 1)
	assert.Equal(t, a.ID, stored[0].ID)
	assert.Equal(t, "A2", stored[0].Name)
}

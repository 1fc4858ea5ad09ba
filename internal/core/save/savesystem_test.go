package save

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/ecs"
)

func characterWorld(t *testing.T, name string) *ecs.World {
	t.Helper()
	w := ecs.NewWorld()
	e := w.CreateEntity()
	w.AddComponent(e.ID, "character_info", map[string]any{"name": name})
	w.AddComponent(e.ID, "hunger", map[string]any{"current": 75.0, "maximum": 100.0})
	return w
}

func characterName(t *testing.T, w *ecs.World) string {
	t.Helper()
	ids := w.EntitiesWith("character_info")
	require.Len(t, ids, 1)
	data, ok := w.GetComponent(ids[0], "character_info")
	require.True(t, ok)
	return data.(map[string]any)["name"].(string)
}

func TestSaveLoadLocal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "Aldric"), "slot1", SaveOptions{Checksum: true}))

	w, err := s.LoadLocal(ctx, "slot1", LoadOptions{VerifyChecksum: true})
	require.NoError(t, err)
	assert.Equal(t, "Aldric", characterName(t, w))
}

func TestSaveLoadCompressed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "Mira"), "slot1", SaveOptions{Compress: true, Checksum: true}))

	raw, err := store.Load(ctx, "slot1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "stored payload must be gzip")

	w, err := s.LoadLocal(ctx, "slot1", LoadOptions{VerifyChecksum: true})
	require.NoError(t, err)
	assert.Equal(t, "Mira", characterName(t, w))
}

func TestBackupFallback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "first"), "slot1", SaveOptions{Checksum: true}))
	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "second"), "slot1", SaveOptions{Checksum: true}))

	// Corrupt the primary payload directly.
	require.True(t, store.Corrupt("slot1", func([]byte) []byte {
		return []byte("{not json")
	}))

	w, err := s.LoadLocal(ctx, "slot1", LoadOptions{VerifyChecksum: true})
	require.NoError(t, err)
	assert.Equal(t, "first", characterName(t, w), "must recover the pre-overwrite backup")
}

func TestNewestBackupWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "v1"), "slot1", SaveOptions{}))
	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "v2"), "slot1", SaveOptions{}))
	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "v3"), "slot1", SaveOptions{}))

	require.True(t, store.Corrupt("slot1", func([]byte) []byte { return nil }))

	w, err := s.LoadLocal(ctx, "slot1", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v2", characterName(t, w), "newest backup holds the save before the corrupted one")
}

func TestLoadNoValidSave(t *testing.T) {
	ctx := context.Background()
	s := New(testRegistry(t), NewMemoryStore(), WithRules(testRules()))

	_, err := s.LoadLocal(ctx, "missing", LoadOptions{})
	assert.ErrorIs(t, err, ErrNoValidSave)
}

func TestLoadAllCopiesCorrupt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "a"), "slot1", SaveOptions{}))
	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "b"), "slot1", SaveOptions{}))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		store.Corrupt(k, func([]byte) []byte { return []byte("garbage") })
	}

	_, err = s.LoadLocal(ctx, "slot1", LoadOptions{})
	assert.ErrorIs(t, err, ErrNoValidSave)
}

func TestValidateSaveData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "x"), "slot1", SaveOptions{Checksum: true}))
	assert.True(t, s.ValidateSaveData(ctx, "slot1"))

	// Any byte-level mutation must be detected.
	require.True(t, store.Corrupt("slot1", func(data []byte) []byte {
		return bytes.Replace(data, []byte(`"x"`), []byte(`"y"`), 1)
	}))
	assert.False(t, s.ValidateSaveData(ctx, "slot1"))

	assert.False(t, s.ValidateSaveData(ctx, "missing"))
}

func TestValidateSaveDataDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "x"), "slot1", SaveOptions{Checksum: true}))
	before, err := store.Load(ctx, "slot1")
	require.NoError(t, err)

	s.ValidateSaveData(ctx, "slot1")
	after, err := store.Load(ctx, "slot1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAvailableSavesExcludesBackups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "a"), "slot1", SaveOptions{}))
	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "b"), "slot1", SaveOptions{}))
	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "c"), "slot2", SaveOptions{}))

	saves, err := s.AvailableSaves(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"slot1", "slot2"}, saves)
}

func TestDeleteSaveRemovesBackups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New(testRegistry(t), store, WithRules(testRules()))

	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "a"), "slot1", SaveOptions{}))
	require.NoError(t, s.SaveLocal(ctx, characterWorld(t, "b"), "slot1", SaveOptions{}))

	assert.True(t, s.DeleteSave(ctx, "slot1"))
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.False(t, s.DeleteSave(ctx, "slot1"))
}

func TestCloudRoundTrip(t *testing.T) {
	ctx := context.Background()
	cloud := NewMemoryStore()
	s := New(testRegistry(t), NewMemoryStore(), WithRules(testRules()), WithCloud(cloud))

	require.NoError(t, s.SaveCloud(ctx, characterWorld(t, "cloudy"), "slot1", SaveOptions{Checksum: true}))
	w, err := s.LoadCloud(ctx, "slot1", LoadOptions{VerifyChecksum: true})
	require.NoError(t, err)
	assert.Equal(t, "cloudy", characterName(t, w))
}

func TestCloudUnconfigured(t *testing.T) {
	ctx := context.Background()
	s := New(testRegistry(t), NewMemoryStore())

	assert.Error(t, s.SaveCloud(ctx, ecs.NewWorld(), "slot1", SaveOptions{}))
	_, err := s.LoadCloud(ctx, "slot1", LoadOptions{})
	assert.Error(t, err)
}

func TestRoundTripThroughStorePreservesIDs(t *testing.T) {
	ctx := context.Background()
	s := New(testRegistry(t), NewMemoryStore(), WithRules(testRules()))

	w := ecs.NewWorld()
	w.CreateEntityWithID(41)
	require.NoError(t, s.SaveLocal(ctx, w, "slot1", SaveOptions{}))

	restored, err := s.LoadLocal(ctx, "slot1", LoadOptions{})
	require.NoError(t, err)
	assert.Greater(t, restored.CreateEntity().ID, ecs.EntityID(41))
}

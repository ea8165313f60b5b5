package bookkeeper

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"testing"
	"time"
)

func newStores(t *testing.T) map[string]BookKeeper {
	memory, err := New(util.BookKeeperConfig{Type: MEMORY, TTL: util.Duration{Duration: time.Minute}})
	require.NoError(t, err)
	disk, err := New(util.BookKeeperConfig{Type: DISK, Dir: t.TempDir(), TTL: util.Duration{Duration: time.Minute}})
	require.NoError(t, err)
	stores := map[string]BookKeeper{MEMORY: memory, DISK: disk}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestRememberRecall(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := store.Recall("span-1")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Remember("span-1", []byte("first")))
			require.NoError(t, store.Remember("span-1", []byte("second")))
			record, found, err := store.Recall("span-1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "second", string(record))
			assert.False(t, store.Ended("span-1"))
		})
	}
}

func TestMarkEnded(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Remember("span-2", []byte("pending")))
			require.NoError(t, store.MarkEnded("span-2"))
			assert.True(t, store.Ended("span-2"))

			_, found, err := store.Recall("span-2")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Remember("span-2", []byte("late")))
			_, found, _ = store.Recall("span-2")
			assert.False(t, found)
		})
	}
}

func TestDiscard(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Remember("span-3", []byte("pending")))
			require.NoError(t, store.MarkEnded("span-4"))
			require.NoError(t, store.Discard())

			_, found, err := store.Recall("span-3")
			require.NoError(t, err)
			assert.False(t, found)
			assert.False(t, store.Ended("span-4"))
		})
	}
}

func TestDiskStoreSurvivesReopen(t *testing.T) {
	config := util.BookKeeperConfig{Type: DISK, Dir: t.TempDir()}
	store, err := New(config)
	require.NoError(t, err)
	require.NoError(t, store.Remember("span-5", []byte("kept")))
	require.NoError(t, store.Close())

	store, err = New(config)
	require.NoError(t, err)
	defer store.Close()
	record, found, err := store.Recall("span-5")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "kept", string(record))
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(util.BookKeeperConfig{Type: "redis"})
	assert.Error(t, err)
}

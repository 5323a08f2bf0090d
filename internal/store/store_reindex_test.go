package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertIndexConsistent checks that every stored key appears in exactly
// one server's key list.
func assertIndexConsistent(t *testing.T, s *Store) {
	t.Helper()

	indexed := make(map[string]int)
	for _, serverID := range s.Servers() {
		for _, key := range s.KeysForServer(serverID) {
			indexed[key]++
		}
	}
	assert.Len(t, indexed, s.TotalEntries(), "index and data must cover the same keys")
	for key, count := range indexed {
		assert.Equal(t, 1, count, "key %s indexed %d times", key, count)
		assert.True(t, s.Exists(key), "indexed key %s missing from data", key)
	}
}

func TestStore_RemoveServer_ReindexesKeys(t *testing.T) {
	s := newTestStore(t, "A", "B", "C")

	numKeys := 200
	for i := 0; i < numKeys; i++ {
		require.True(t, s.Put(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i)))
	}

	removedKeys := s.KeysForServer("B")
	require.True(t, s.RemoveServer("B"))

	// No data is lost, only ownership moved.
	assert.Equal(t, numKeys, s.TotalEntries())
	assert.NotContains(t, s.Servers(), "B")
	assert.Empty(t, s.KeysForServer("B"))
	assertIndexConsistent(t, s)

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key-%d", i)
		value, found := s.Get(key)
		require.True(t, found, "key %s lost during re-indexing", key)
		assert.Equal(t, fmt.Sprintf("value-%d", i), value)
	}

	// B's former keys now resolve to a surviving server.
	for _, key := range removedKeys {
		owner, found := s.ServerForKey(key)
		require.True(t, found)
		assert.Contains(t, []string{"A", "C"}, owner)
		assert.Contains(t, s.KeysForServer(owner), key,
			"key %s should be indexed under its new owner", key)
	}
}

func TestStore_RemoveServer_OtherServersUntouched(t *testing.T) {
	s := newTestStore(t, "A", "B", "C")

	for i := 0; i < 200; i++ {
		require.True(t, s.Put(fmt.Sprintf("key-%d", i), "v"))
	}

	beforeA := s.KeysForServer("A")
	beforeC := s.KeysForServer("C")

	require.True(t, s.RemoveServer("B"))

	// A and C keep everything they had; they only gain B's keys.
	afterA := s.KeysForServer("A")
	afterC := s.KeysForServer("C")
	assert.Subset(t, afterA, beforeA)
	assert.Subset(t, afterC, beforeC)
	assert.GreaterOrEqual(t, len(afterA)+len(afterC), len(beforeA)+len(beforeC))
}

func TestStore_RemoveLastServer_KeepsData(t *testing.T) {
	s := newTestStore(t, "A")
	require.True(t, s.Put("k", "v"))

	require.True(t, s.RemoveServer("A"))

	// The payload survives with no owner; reads still work, writes fail.
	value, found := s.Get("k")
	assert.True(t, found)
	assert.Equal(t, "v", value)
	assert.Equal(t, 0, s.ServerCount())
	assert.False(t, s.Put("k2", "v2"))

	_, found = s.ServerForKey("k")
	assert.False(t, found)
}

func TestStore_AddServer_DoesNotReindex(t *testing.T) {
	s := newTestStore(t, "A", "B")

	for i := 0; i < 100; i++ {
		require.True(t, s.Put(fmt.Sprintf("key-%d", i), "v"))
	}

	recorded := make(map[string]string)
	for _, serverID := range s.Servers() {
		for _, key := range s.KeysForServer(serverID) {
			recorded[key] = serverID
		}
	}

	require.True(t, s.AddServer("C"))

	// Recorded attribution is unchanged until the next write or server
	// removal; the live ring may disagree for keys C now owns.
	for _, serverID := range []string{"A", "B"} {
		for _, key := range s.KeysForServer(serverID) {
			assert.Equal(t, recorded[key], serverID)
		}
	}
	assert.Empty(t, s.KeysForServer("C"))

	// A fresh write re-attributes the key to the live owner.
	moved := 0
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		require.True(t, s.Put(key, "v2"))
		owner, found := s.ServerForKey(key)
		require.True(t, found)
		if owner != recorded[key] {
			moved++
			assert.Equal(t, "C", owner, "rewritten key may only move to the new server")
		}
	}
	assertIndexConsistent(t, s)
	assert.Greater(t, moved, 0, "some keys should move to C on rewrite")
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t, "A", "B", "C")

	var wg sync.WaitGroup
	workers := 8
	perWorker := 100

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-key-%d", w, i)
				s.Put(key, "v")
				s.Get(key)
				s.ServerForKey(key)
				if i%10 == 0 {
					s.Stats()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, s.TotalEntries())
	assertIndexConsistent(t, s)
}

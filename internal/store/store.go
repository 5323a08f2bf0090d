package store

import (
	"sort"
	"sync"

	"shardkv/internal/ring"
)

// Store is a sharded key-value store backed by a consistent hashing ring.
//
// Alongside the payload map it maintains a per-server index of the keys
// attributed to each server. The owning server is recorded at write time
// and used for all bookkeeping until the key is re-indexed by a server
// removal; ServerForKey consults the live ring instead, so the two can
// disagree after a topology change that did not trigger re-indexing.
//
// All methods are safe for concurrent use. The store's mutex is held for
// the full duration of every operation; calls into the ring are
// one-directional so the two locks cannot form a cycle.
type Store struct {
	mu         sync.Mutex
	ring       *ring.Ring
	data       map[string]string   // key -> value
	serverKeys map[string][]string // server ID -> keys, insertion order
	owners     map[string]string   // key -> server recorded at last write/re-index
}

// New creates an empty store with no servers. virtualNodes is the number
// of ring positions per server.
func New(virtualNodes int) (*Store, error) {
	r, err := ring.New(virtualNodes)
	if err != nil {
		return nil, err
	}
	return &Store{
		ring:       r,
		data:       make(map[string]string),
		serverKeys: make(map[string][]string),
		owners:     make(map[string]string),
	}, nil
}

// AddServer adds a server to the cluster.
// Returns false if the ID is empty or the server already exists.
func (s *Store) AddServer(serverID string) bool {
	if serverID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.serverKeys[serverID]; exists {
		return false
	}
	if err := s.ring.AddNode(serverID); err != nil {
		return false
	}
	s.serverKeys[serverID] = []string{}
	return true
}

// RemoveServer removes a server and re-attributes its keys to the servers
// that now own them. Only the ownership bookkeeping moves; the stored
// values are untouched. Returns false if the server is unknown.
func (s *Store) RemoveServer(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphaned, exists := s.serverKeys[serverID]
	if !exists {
		return false
	}

	s.ring.RemoveNode(serverID)
	delete(s.serverKeys, serverID)

	for _, key := range orphaned {
		if _, ok := s.data[key]; !ok {
			continue
		}
		newOwner, ok := s.ring.Lookup(key)
		if !ok {
			// Last server removed: the value stays but has no owner
			// until a server rejoins and the key is written again.
			delete(s.owners, key)
			continue
		}
		s.owners[key] = newOwner
		s.indexKey(key, newOwner)
	}
	return true
}

// Put stores a key-value pair on the server that owns the key.
// Returns false if the key is empty or the cluster has no servers.
func (s *Store) Put(key, value string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.ring.Lookup(key)
	if !ok {
		return false
	}

	// Re-attribute if the ring's answer moved since the last write.
	if prev, recorded := s.owners[key]; recorded && prev != owner {
		s.unindexKey(key, prev)
	}

	s.data[key] = value
	s.owners[key] = owner
	s.indexKey(key, owner)
	return true
}

// Get retrieves a value by key. The second return distinguishes a missing
// key from a stored empty string. Get never consults the ring.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, exists := s.data[key]
	return value, exists
}

// Exists reports whether the key is present.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.data[key]
	return exists
}

// Remove deletes a key-value pair. Returns false if the key is absent.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists {
		return false
	}
	if owner, recorded := s.owners[key]; recorded {
		s.unindexKey(key, owner)
	}
	delete(s.owners, key)
	delete(s.data, key)
	return true
}

// KeysForServer returns the keys attributed to a server, in insertion
// order. Returns an empty slice for unknown servers.
func (s *Store) KeysForServer(serverID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.serverKeys[serverID]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Servers returns all server IDs in the cluster, sorted.
func (s *Store) Servers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	servers := make([]string, 0, len(s.serverKeys))
	for serverID := range s.serverKeys {
		servers = append(servers, serverID)
	}
	sort.Strings(servers)
	return servers
}

// ServerForKey returns the server that currently owns the key according
// to the live ring. Returns ("", false) when the cluster is empty.
func (s *Store) ServerForKey(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ring.Lookup(key)
}

// Stats returns the number of keys attributed to each server.
func (s *Store) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]int, len(s.serverKeys))
	for serverID, keys := range s.serverKeys {
		stats[serverID] = len(keys)
	}
	return stats
}

// ServerCount returns the number of servers in the cluster.
func (s *Store) ServerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ring.NodeCount()
}

// TotalEntries returns the number of stored key-value pairs.
func (s *Store) TotalEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data)
}

// Clear removes all data, all servers, and resets the ring.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]string)
	s.serverKeys = make(map[string][]string)
	s.owners = make(map[string]string)
	s.ring.Clear()
}

// indexKey appends key to the server's list if absent.
// Callers must hold the lock.
func (s *Store) indexKey(key, serverID string) {
	keys, exists := s.serverKeys[serverID]
	if !exists {
		return
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	s.serverKeys[serverID] = append(keys, key)
}

// unindexKey removes key from the server's list.
// Callers must hold the lock.
func (s *Store) unindexKey(key, serverID string) {
	keys, exists := s.serverKeys[serverID]
	if !exists {
		return
	}
	for i, k := range keys {
		if k == key {
			s.serverKeys[serverID] = append(keys[:i], keys[i+1:]...)
			return
		}
	}
}

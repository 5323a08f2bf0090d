package ring

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
)

// Ring implements consistent hashing with virtual nodes.
//
// Every physical node owns `replicas` positions on a circular 32-bit hash
// space. A key is owned by the node whose position is the first one
// clockwise from the key's hash. Positions are unique: a hash collision is
// resolved by probing forward to the next free position.
type Ring struct {
	mu        sync.RWMutex
	replicas  int
	positions []uint32            // sorted ring positions for binary search
	ring      map[uint32]string   // position -> node ID
	nodes     map[string][]uint32 // node ID -> owned positions
}

// New creates an empty ring. replicas is the number of virtual nodes per
// physical node; 100-200 is typical.
func New(replicas int) (*Ring, error) {
	if replicas <= 0 {
		return nil, fmt.Errorf("replicas must be positive, got %d", replicas)
	}
	return &Ring{
		replicas: replicas,
		ring:     make(map[uint32]string),
		nodes:    make(map[string][]uint32),
	}, nil
}

// AddNode places `replicas` virtual copies of nodeID on the ring.
// Adding a node that is already present is a no-op.
func (r *Ring) AddNode(nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[nodeID]; exists {
		return nil
	}

	owned := make([]uint32, 0, r.replicas)
	for i := 0; i < r.replicas; i++ {
		pos := hashString(fmt.Sprintf("%s#%d", nodeID, i))
		// Probe forward until the position is free. Collisions are rare
		// but ring positions must stay unique; uint32 overflow wraps,
		// matching the circular hash space.
		for {
			if _, taken := r.ring[pos]; !taken {
				break
			}
			pos++
		}
		r.ring[pos] = nodeID
		owned = append(owned, pos)
		r.insertPosition(pos)
	}
	r.nodes[nodeID] = owned
	return nil
}

// RemoveNode removes all virtual nodes for nodeID.
// Returns false if the node is not on the ring. The work done is
// proportional to the replica count, not the number of keys.
func (r *Ring) RemoveNode(nodeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned, exists := r.nodes[nodeID]
	if !exists {
		return false
	}

	for _, pos := range owned {
		delete(r.ring, pos)
		r.deletePosition(pos)
	}
	delete(r.nodes, nodeID)
	return true
}

// Lookup returns the node responsible for the given key.
// Returns ("", false) if the ring is empty.
func (r *Ring) Lookup(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.successor(hashString(key))
	if !ok {
		return "", false
	}
	return r.ring[r.positions[idx]], true
}

// LookupReplicas returns up to count distinct nodes for the key, in ring
// order starting at the key's owner. Fewer nodes are returned when the
// ring holds fewer than count physical nodes.
func (r *Ring) LookupReplicas(key string, count int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if count <= 0 {
		return nil
	}
	idx, ok := r.successor(hashString(key))
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	replicas := make([]string, 0, count)

	// Walk clockwise collecting physical nodes in first-seen order.
	for i := 0; i < len(r.positions) && len(replicas) < count; i++ {
		nodeID := r.ring[r.positions[(idx+i)%len(r.positions)]]
		if !seen[nodeID] {
			seen[nodeID] = true
			replicas = append(replicas, nodeID)
		}
	}
	return replicas
}

// HasNode reports whether nodeID is on the ring.
func (r *Ring) HasNode(nodeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.nodes[nodeID]
	return exists
}

// Nodes returns all physical node IDs on the ring, sorted.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]string, 0, len(r.nodes))
	for nodeID := range r.nodes {
		nodes = append(nodes, nodeID)
	}
	sort.Strings(nodes)
	return nodes
}

// NodeCount returns the number of physical nodes on the ring.
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// VirtualNodeCount returns the total number of ring positions.
func (r *Ring) VirtualNodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ring)
}

// Clear removes every node from the ring.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.positions = nil
	r.ring = make(map[uint32]string)
	r.nodes = make(map[string][]uint32)
}

// DistributionStats hashes numKeys synthetic keys and returns how many
// land on each node. Useful for judging load balance for a given
// replica count.
func (r *Ring) DistributionStats(numKeys int) map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int, len(r.nodes))
	if len(r.positions) == 0 {
		return stats
	}
	for nodeID := range r.nodes {
		stats[nodeID] = 0
	}

	for i := 0; i < numKeys; i++ {
		idx, _ := r.successor(hashString(fmt.Sprintf("key_%d", i)))
		stats[r.ring[r.positions[idx]]]++
	}
	return stats
}

// successor returns the index of the first position >= h, wrapping to 0
// when h is past the last position. Callers must hold the lock.
func (r *Ring) successor(h uint32) (int, bool) {
	if len(r.positions) == 0 {
		return 0, false
	}
	idx := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i] >= h
	})
	if idx == len(r.positions) {
		idx = 0
	}
	return idx, true
}

// insertPosition inserts pos into the sorted position slice.
func (r *Ring) insertPosition(pos uint32) {
	idx := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i] >= pos
	})
	r.positions = append(r.positions, 0)
	copy(r.positions[idx+1:], r.positions[idx:])
	r.positions[idx] = pos
}

// deletePosition removes pos from the sorted position slice.
func (r *Ring) deletePosition(pos uint32) {
	idx := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i] >= pos
	})
	if idx < len(r.positions) && r.positions[idx] == pos {
		r.positions = append(r.positions[:idx], r.positions[idx+1:]...)
	}
}

// hashString computes a 32-bit FNV-1a hash of the string.
func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

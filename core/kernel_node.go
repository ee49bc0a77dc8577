package core

import "sync"

// NodeLocation distinguishes where a node's substates currently live: newly
// created nodes start in the Heap and only enter the Store on commit (or
// were loaded from the Store in the first place), matching §5's "node
// table tracks Heap vs Store residency".
type NodeLocation byte

const (
	LocationHeap NodeLocation = iota
	LocationStore
)

// nodeEntry is one row of the kernel's node table: where a node lives, and
// how many outstanding substate locks it currently has (a node cannot be
// dropped while any lock is outstanding).
type nodeEntry struct {
	location     NodeLocation
	lockCount    int
	module       map[ModuleId]map[string][]byte // heap-resident substates, keyed by raw key string
	ownedBy      NodeId                          // the owner passed to CreateNode; kept after globalization
	isGlobalized bool
}

// NodeTable is the kernel's heap: a mutex-guarded map of every node the
// running transaction currently knows about, whether freshly allocated,
// loaded from the store, or globalized this transaction.
type NodeTable struct {
	mu    sync.RWMutex
	store SubstateStore
	nodes map[NodeId]*nodeEntry
}

func NewNodeTable(store SubstateStore) *NodeTable {
	return &NodeTable{store: store, nodes: make(map[NodeId]*nodeEntry)}
}

// CreateNode allocates a brand-new heap-resident node, per the
// create_node kernel primitive of §5.
func (nt *NodeTable) CreateNode(id NodeId, owner NodeId) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if _, exists := nt.nodes[id]; exists {
		return KernelErr(ErrNodeExists)
	}
	nt.nodes[id] = &nodeEntry{
		location: LocationHeap,
		module:   make(map[ModuleId]map[string][]byte),
		ownedBy:  owner,
	}
	return nil
}

// ensureLoaded brings a store-resident node into the node table lazily,
// the first time a frame references it.
func (nt *NodeTable) ensureLoaded(id NodeId) *nodeEntry {
	if e, ok := nt.nodes[id]; ok {
		return e
	}
	e := &nodeEntry{location: LocationStore, module: make(map[ModuleId]map[string][]byte), isGlobalized: id.IsGlobal()}
	nt.nodes[id] = e
	return e
}

// DropNode removes a node from the table. It fails if any substate lock on
// the node is still outstanding (§5 invariant).
func (nt *NodeTable) DropNode(id NodeId) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	e, ok := nt.nodes[id]
	if !ok {
		return KernelErr(ErrNodeNotFound)
	}
	if e.lockCount > 0 {
		return KernelErr(ErrOutstandingLocks)
	}
	delete(nt.nodes, id)
	return nil
}

// Globalize marks a node as globally addressable, the transition the auth
// module's barrier rule (SPEC_FULL.md §12) keys off of.
func (nt *NodeTable) Globalize(id NodeId) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	e, ok := nt.nodes[id]
	if !ok {
		return KernelErr(ErrNodeNotFound)
	}
	e.isGlobalized = true
	return nil
}

func (nt *NodeTable) IsGlobalized(id NodeId) bool {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	e, ok := nt.nodes[id]
	return ok && e.isGlobalized
}

// ReadSubstate returns the raw bytes stored at (node, module, key), reading
// from the heap entry if present, the backing store otherwise, and
// populating the heap entry as a read-through cache either way.
func (nt *NodeTable) ReadSubstate(node NodeId, module ModuleId, key SubstateKey) ([]byte, bool, error) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	e := nt.ensureLoaded(node)
	if m, ok := e.module[module]; ok {
		if v, ok := m[string(key)]; ok {
			return append([]byte(nil), v...), true, nil
		}
	}
	v, ok, err := nt.store.Get(node, module, key)
	if err != nil {
		return nil, false, SystemErr(err)
	}
	if !ok {
		return nil, false, nil
	}
	if e.module[module] == nil {
		e.module[module] = make(map[string][]byte)
	}
	e.module[module][string(key)] = v
	return v, true, nil
}

// WriteSubstate updates the heap-resident copy of (node, module, key). The
// write is only durable once the kernel commits the node table to the
// store; until then it is visible only within this transaction.
func (nt *NodeTable) WriteSubstate(node NodeId, module ModuleId, key SubstateKey, value []byte) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	e := nt.ensureLoaded(node)
	if e.module[module] == nil {
		e.module[module] = make(map[string][]byte)
	}
	cpy := append([]byte(nil), value...)
	e.module[module][string(key)] = cpy
	return nil
}

// Commit flushes every heap-resident substate into the backing store in a
// single atomic batch, per §4.B's "atomic commit" requirement.
func (nt *NodeTable) Commit() error {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	writes := make(map[string][]byte)
	for node, e := range nt.nodes {
		for module, kv := range e.module {
			for k, v := range kv {
				writes[PhysicalKeyString(node, module, SubstateKey(k))] = v
			}
		}
	}
	return nt.store.Commit(writes)
}

func (nt *NodeTable) incLock(node NodeId) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if e, ok := nt.nodes[node]; ok {
		e.lockCount++
	}
}

func (nt *NodeTable) decLock(node NodeId) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if e, ok := nt.nodes[node]; ok && e.lockCount > 0 {
		e.lockCount--
	}
}

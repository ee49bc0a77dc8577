package core

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

var kernelLog = logrus.WithField("subsystem", "kernel")

// globalLockOwner tracks which substate locks are currently outstanding
// store-wide, enforcing §5's exclusivity rule: a substate may be locked by
// many concurrent readers or by exactly one writer, never both at once.
// The kernel is single-threaded per transaction, so this is a simple set
// rather than a true concurrent structure.
type globalLockOwner struct {
	readers map[string]int
	writer  map[string]bool
}

func newGlobalLockOwner() *globalLockOwner {
	return &globalLockOwner{readers: make(map[string]int), writer: make(map[string]bool)}
}

func (g *globalLockOwner) tryLock(pk string, mutable bool) bool {
	if g.writer[pk] {
		return false
	}
	if mutable {
		if g.readers[pk] > 0 {
			return false
		}
		g.writer[pk] = true
		return true
	}
	g.readers[pk]++
	return true
}

func (g *globalLockOwner) unlock(pk string, mutable bool) {
	if mutable {
		delete(g.writer, pk)
		return
	}
	if g.readers[pk] > 0 {
		g.readers[pk]--
	}
}

// Kernel drives one transaction's execution: a stack of call frames over a
// shared node table, with substate-lock exclusivity enforced globally
// across the whole stack (not just within one frame).
type Kernel struct {
	nodes      *NodeTable
	frames     []*CallFrame
	locks      *globalLockOwner
	nextHandle uint32

	idSeed    [32]byte // transaction-hash seed for AllocateNodeId
	idCounter uint64
}

// NewKernel constructs a kernel over store, with a single root frame
// representing the transaction processor itself (a function-call actor,
// never a barrier).
func NewKernel(store SubstateStore) *Kernel {
	root := newCallFrame(Actor{Kind: ActorFunction, Blueprint: "TransactionProcessor"})
	return &Kernel{
		nodes:  NewNodeTable(store),
		frames: []*CallFrame{root},
		locks:  newGlobalLockOwner(),
	}
}

func (k *Kernel) currentFrame() *CallFrame { return k.frames[len(k.frames)-1] }

// SeedAllocator seeds AllocateNodeId's derivation from a transaction's
// content hash and resets its counter, so running the identical
// instruction list through a fresh kernel always mints the identical
// sequence of node ids (§1's determinism mandate). Called once per
// transaction before any instruction runs.
func (k *Kernel) SeedAllocator(seed [32]byte) {
	k.idSeed = seed
	k.idCounter = 0
}

// AllocateNodeId mints a fresh NodeId of the given entity type, the
// allocate_node_id primitive of §5. Ids are derived from the seeded
// transaction hash and a monotonic counter rather than from randomness, the
// same id-allocator-seeded-from-the-transaction-hash approach
// original_source uses, so two runs of the same transaction always produce
// the same receipt.
func (k *Kernel) AllocateNodeId(entity EntityType) (NodeId, error) {
	var id NodeId
	id[0] = byte(entity)

	k.idCounter++
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], k.idCounter)
	preimage := append(append([]byte{}, k.idSeed[:]...), counterBytes[:]...)
	digest := crypto.Keccak256(preimage)
	copy(id[1:], digest)
	return id, nil
}

// CreateNode allocates id in the node table and marks it owned by (visible
// to) the current frame.
func (k *Kernel) CreateNode(id NodeId, owner NodeId) error {
	if err := k.nodes.CreateNode(id, owner); err != nil {
		return err
	}
	k.currentFrame().ownedNodes[id] = true
	return nil
}

// DropNode removes id, failing if any lock on it is outstanding anywhere in
// the lock-owner table.
func (k *Kernel) DropNode(id NodeId) error {
	if err := k.nodes.DropNode(id); err != nil {
		return err
	}
	delete(k.currentFrame().ownedNodes, id)
	return nil
}

// Globalize promotes a frame-owned node to a globally addressable one.
func (k *Kernel) Globalize(id NodeId) error {
	return k.nodes.Globalize(id)
}

// LockSubstate acquires a lock handle on (node, module, key) for the
// current frame, enforcing: the node must be visible to this frame, and the
// requested lock must not conflict with any outstanding lock anywhere
// (single writer xor many readers).
func (k *Kernel) LockSubstate(node NodeId, module ModuleId, key SubstateKey, flags LockFlags) (*SubstateLockHandle, error) {
	frame := k.currentFrame()
	if !frame.canSee(node) {
		return nil, KernelErr(ErrNotVisible)
	}
	pk := PhysicalKeyString(node, module, key)
	mutable := flags&LockMutable != 0
	if !k.locks.tryLock(pk, mutable) {
		return nil, KernelErr(ErrAlreadyLocked)
	}
	k.nextHandle++
	h := &SubstateLockHandle{handle: k.nextHandle, node: node, module: module, key: key, flags: flags}
	frame.locks[h.handle] = h
	k.nodes.incLock(node)
	kernelLog.Debugf("lock acquired: node=%s module=%d handle=%d mutable=%v", node, module, h.handle, mutable)
	return h, nil
}

// ReadSubstate dereferences a lock handle to the substate's current bytes.
func (k *Kernel) ReadSubstate(h *SubstateLockHandle) ([]byte, error) {
	v, _, err := k.nodes.ReadSubstate(h.node, h.module, h.key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// WriteSubstate updates the substate behind a mutable lock handle.
func (k *Kernel) WriteSubstate(h *SubstateLockHandle, value []byte) error {
	if h.flags&LockMutable == 0 {
		return KernelErr(ErrReadOnlyHandle)
	}
	return k.nodes.WriteSubstate(h.node, h.module, h.key, value)
}

// DropLock releases a lock handle, freeing it for other frames to acquire.
func (k *Kernel) DropLock(h *SubstateLockHandle) error {
	frame := k.currentFrame()
	if _, ok := frame.locks[h.handle]; !ok {
		return KernelErr(ErrNotVisible)
	}
	delete(frame.locks, h.handle)
	mutable := h.flags&LockMutable != 0
	k.locks.unlock(PhysicalKeyString(h.node, h.module, h.key), mutable)
	k.nodes.decLock(h.node)
	kernelLog.Debugf("lock released: node=%s module=%d handle=%d", h.node, h.module, h.handle)
	return nil
}

// PushFrame pushes a new call frame for invoking actor, inheriting
// visibility of every node the new actor's arguments reference (argNodes),
// plus every global node (always visible). This is invoke/
// call_frame_update's core mechanic: a callee sees only what it was handed.
func (k *Kernel) PushFrame(actor Actor, argNodes []NodeId) *CallFrame {
	frame := newCallFrame(actor)
	for _, n := range argNodes {
		frame.AddVisible(n)
	}
	k.frames = append(k.frames, frame)
	kernelLog.Debugf("frame pushed: %s depth=%d", frame, len(k.frames))
	return frame
}

// PopFrame pops the current call frame, returning the nodes it still owns
// (its callees are responsible for having consumed/returned them).
func (k *Kernel) PopFrame() []NodeId {
	frame := k.currentFrame()
	k.frames = k.frames[:len(k.frames)-1]
	kernelLog.Debugf("frame popped: %s depth=%d", frame, len(k.frames))
	owned := make([]NodeId, 0, len(frame.ownedNodes))
	for n := range frame.ownedNodes {
		owned = append(owned, n)
	}
	return owned
}

// Depth reports the current call-frame stack depth, including the root
// frame.
func (k *Kernel) Depth() int { return len(k.frames) }

// CurrentActor reports the actor of the top-of-stack frame.
func (k *Kernel) CurrentActor() Actor { return k.currentFrame().Actor }

// Commit flushes the node table to the backing store.
func (k *Kernel) Commit() error { return k.nodes.Commit() }

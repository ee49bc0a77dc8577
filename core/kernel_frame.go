package core

import "fmt"

// LockFlags controls whether a substate lock handle permits mutation.
type LockFlags uint8

const (
	LockRead LockFlags = 0
	LockMutable LockFlags = 1 << 0
)

// SubstateLockHandle is the opaque token read_substate/write_substate/
// drop_lock operate on. Exclusivity (§5: single writer, many readers) is
// enforced by Kernel.LockSubstate, not by the handle itself.
type SubstateLockHandle struct {
	handle uint32
	node   NodeId
	module ModuleId
	key    SubstateKey
	flags  LockFlags
}

// ActorKind distinguishes a method call on an object from a bare function
// call, the distinction SPEC_FULL.md §12's barrier rule depends on.
type ActorKind byte

const (
	ActorFunction ActorKind = iota
	ActorMethod
)

// Actor describes who is executing the current call frame: which
// package/blueprint, which kind of call, and (for methods) which node the
// call targets.
type Actor struct {
	Package NodeId
	Blueprint string
	Kind    ActorKind
	// Receiver is the node a method call targets; zero for function calls.
	Receiver NodeId
	// ReceiverIsGlobal mirrors NodeId.IsGlobal() at call time, since a node
	// can be globalized mid-transaction and the barrier check must use the
	// globalization state at the moment the frame was pushed.
	ReceiverIsGlobal bool
}

// IsBarrier implements SPEC_FULL.md §12's resolution of the abstract
// is_barrier predicate: a frame is a barrier iff its actor is a method call
// on a globalized object. Function calls and calls on owned (non-global)
// objects are never barriers.
func (a Actor) IsBarrier() bool {
	return a.Kind == ActorMethod && a.ReceiverIsGlobal
}

// CallFrame is one entry of the kernel's call-frame stack: the actor
// executing, the nodes visible to it, and its own outstanding lock handles.
type CallFrame struct {
	Actor Actor
	// visibleNodes is the set of node ids this frame may address, per
	// get_visible_node_origin's visibility computation.
	visibleNodes map[NodeId]bool
	locks        map[uint32]*SubstateLockHandle
	ownedNodes   map[NodeId]bool
}

func newCallFrame(actor Actor) *CallFrame {
	return &CallFrame{
		Actor:        actor,
		visibleNodes: make(map[NodeId]bool),
		locks:        make(map[uint32]*SubstateLockHandle),
		ownedNodes:   make(map[NodeId]bool),
	}
}

func (f *CallFrame) canSee(node NodeId) bool {
	return node.IsGlobal() || f.visibleNodes[node] || f.ownedNodes[node]
}

// AddVisible extends the frame's visibility, used when a call argument or
// a global reference exposes a new node to this frame.
func (f *CallFrame) AddVisible(node NodeId) { f.visibleNodes[node] = true }

func (f *CallFrame) String() string {
	return fmt.Sprintf("frame(actor=%s/%s barrier=%v)", f.Actor.Package, f.Actor.Blueprint, f.Actor.IsBarrier())
}

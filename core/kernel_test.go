package core

import "testing"

func TestKernelCreateLockWriteRead(t *testing.T) {
	k := NewKernel(NewMemStore())
	id, err := k.AllocateNodeId(EntityComponent)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := k.CreateNode(id, NodeId{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	h, err := k.LockSubstate(id, ModuleObject, SubstateKey("x"), LockMutable)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := k.WriteSubstate(h, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := k.ReadSubstate(h)
	if err != nil || string(v) != "hello" {
		t.Fatalf("read back: v=%q err=%v", v, err)
	}
	if err := k.DropLock(h); err != nil {
		t.Fatalf("drop lock: %v", err)
	}
	if err := k.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// TestSubstateLockExclusivity is the §5 invariant: a write lock cannot be
// acquired while read locks are outstanding, though several read locks
// may be held at once.
func TestSubstateLockExclusivity(t *testing.T) {
	k := NewKernel(NewMemStore())
	id, _ := k.AllocateNodeId(EntityComponent)
	if err := k.CreateNode(id, NodeId{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	r1, err := k.LockSubstate(id, ModuleObject, SubstateKey("x"), LockRead)
	if err != nil {
		t.Fatalf("first read lock: %v", err)
	}
	if _, err := k.LockSubstate(id, ModuleObject, SubstateKey("x"), LockRead); err != nil {
		t.Fatalf("second read lock should succeed: %v", err)
	}
	if _, err := k.LockSubstate(id, ModuleObject, SubstateKey("x"), LockMutable); err == nil {
		t.Fatalf("expected write lock to fail while reads are outstanding")
	}
	if err := k.DropLock(r1); err != nil {
		t.Fatalf("drop: %v", err)
	}
}

func TestDropNodeFailsWithOutstandingLock(t *testing.T) {
	k := NewKernel(NewMemStore())
	id, _ := k.AllocateNodeId(EntityComponent)
	if err := k.CreateNode(id, NodeId{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	h, err := k.LockSubstate(id, ModuleObject, SubstateKey("x"), LockRead)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := k.DropNode(id); err == nil {
		t.Fatalf("expected drop to fail with outstanding lock")
	}
	if err := k.DropLock(h); err != nil {
		t.Fatalf("drop lock: %v", err)
	}
	if err := k.DropNode(id); err != nil {
		t.Fatalf("expected drop to succeed once lock released: %v", err)
	}
}

// TestVisibilityRules checks that a frame cannot address a node it was
// never handed, unless that node is global.
func TestVisibilityRules(t *testing.T) {
	k := NewKernel(NewMemStore())
	owned, _ := k.AllocateNodeId(EntityInternalVault)
	if err := k.CreateNode(owned, NodeId{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	callee := k.PushFrame(Actor{Kind: ActorFunction, Blueprint: "callee"}, nil)
	if callee.canSee(owned) {
		t.Fatalf("expected callee frame to not see an unhanded owned node")
	}
	if _, err := k.LockSubstate(owned, ModuleObject, SubstateKey("x"), LockRead); err == nil {
		t.Fatalf("expected lock on invisible node to fail")
	}
	k.PopFrame()

	callee2 := k.PushFrame(Actor{Kind: ActorFunction, Blueprint: "callee2"}, []NodeId{owned})
	if !callee2.canSee(owned) {
		t.Fatalf("expected callee2 to see a node passed as an argument")
	}
	k.PopFrame()
}

// TestBarrierDefinition pins SPEC_FULL.md §12's resolution: only a method
// call on a globalized object is a barrier.
func TestBarrierDefinition(t *testing.T) {
	cases := []struct {
		name     string
		actor    Actor
		expected bool
	}{
		{"function call", Actor{Kind: ActorFunction}, false},
		{"method on owned object", Actor{Kind: ActorMethod, ReceiverIsGlobal: false}, false},
		{"method on global object", Actor{Kind: ActorMethod, ReceiverIsGlobal: true}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.actor.IsBarrier(); got != c.expected {
				t.Fatalf("IsBarrier() = %v, want %v", got, c.expected)
			}
		})
	}
}

package core

import "testing"

func TestMemStoreGetCommit(t *testing.T) {
	s := NewMemStore()
	node := NodeId{}
	node[0] = byte(EntityComponent)
	key := SubstateKey("balance")

	if _, ok, err := s.Get(node, ModuleObject, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	pk := PhysicalKeyString(node, ModuleObject, key)
	if err := s.Commit(map[string][]byte{pk: []byte("100")}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, ok, err := s.Get(node, ModuleObject, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != "100" {
		t.Fatalf("got %q, want 100", v)
	}

	if err := s.Commit(map[string][]byte{pk: nil}); err != nil {
		t.Fatalf("commit delete: %v", err)
	}
	if _, ok, _ := s.Get(node, ModuleObject, key); ok {
		t.Fatalf("expected deleted entry to miss")
	}
}

func TestMemStoreListOrdering(t *testing.T) {
	s := NewMemStore()
	node := NodeId{}
	node[0] = byte(EntityComponent)

	writes := map[string][]byte{
		PhysicalKeyString(node, ModuleObject, SubstateKey("c")): []byte("3"),
		PhysicalKeyString(node, ModuleObject, SubstateKey("a")): []byte("1"),
		PhysicalKeyString(node, ModuleObject, SubstateKey("b")): []byte("2"),
	}
	if err := s.Commit(writes); err != nil {
		t.Fatalf("commit: %v", err)
	}

	it := s.List(node, ModuleObject)
	var got []string
	for it.Next() {
		got = append(got, string(it.Value()))
	}
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Fatalf("expected ascending order [1 2 3], got %v", got)
	}
}

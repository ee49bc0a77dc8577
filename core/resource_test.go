package core

import "testing"

func testResourceAddr() NodeId {
	id := NodeId{}
	id[0] = byte(EntityResource)
	id[1] = 7
	return id
}

func mustAmount(t *testing.T, s string) Amount {
	t.Helper()
	a, err := NewAmount(s)
	if err != nil {
		t.Fatalf("NewAmount(%q): %v", s, err)
	}
	return a
}

// TestResourceConservation is the §8 property: Put followed by Take of the
// same amount returns the container to its original balance, with nothing
// created or destroyed.
func TestResourceConservation(t *testing.T) {
	res := testResourceAddr()
	c := NewFungibleContainer(res, 18)
	c.amount = mustAmount(t, "100")

	other := NewFungibleContainer(res, 18)
	other.amount = mustAmount(t, "50")

	if err := c.Put(other); err != nil {
		t.Fatalf("put: %v", err)
	}
	if c.Amount().Cmp(mustAmount(t, "150")) != 0 {
		t.Fatalf("got %s, want 150", c.Amount())
	}

	taken, err := c.Take(mustAmount(t, "150"))
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if !c.IsEmpty() {
		t.Fatalf("expected container empty after taking full balance")
	}
	if taken.Amount().Cmp(mustAmount(t, "150")) != 0 {
		t.Fatalf("taken amount mismatch: %s", taken.Amount())
	}
}

// TestLinearityBucketTakeThenPut exercises the §8 "linearity" property: a
// bucket split by Take and rejoined by Put ends where it started, and a
// non-empty bucket cannot be silently dropped.
func TestLinearityBucketTakeThenPut(t *testing.T) {
	res := testResourceAddr()
	c := NewFungibleContainer(res, 18)
	c.amount = mustAmount(t, "66.5")
	bucket := NewBucket(NodeId{}, c)

	half, err := bucket.Take(mustAmount(t, "20"))
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if err := bucket.Put(half); err != nil {
		t.Fatalf("put: %v", err)
	}
	if bucket.Amount().Cmp(mustAmount(t, "66.5")) != 0 {
		t.Fatalf("got %s, want 66.5", bucket.Amount())
	}

	if err := bucket.Drop(); err == nil {
		t.Fatalf("expected drop of non-empty bucket to fail")
	}
	drained, err := bucket.TakeAll()
	if err != nil {
		t.Fatalf("take all: %v", err)
	}
	if !bucket.IsEmpty() {
		t.Fatalf("expected bucket empty after TakeAll")
	}
	if err := bucket.Drop(); err != nil {
		t.Fatalf("drop of empty bucket: %v", err)
	}
	if drained.Amount().Cmp(mustAmount(t, "66.5")) != 0 {
		t.Fatalf("drained amount mismatch: %s", drained.Amount())
	}
}

// TestFrozenVaultBlocksWithdraw models scenario S5 (frozen vault): a vault
// with VaultWithdraw frozen rejects withdrawals but still allows deposits.
func TestFrozenVaultBlocksWithdraw(t *testing.T) {
	res := testResourceAddr()
	c := NewFungibleContainer(res, 18)
	c.amount = mustAmount(t, "10")
	vault := NewVault(NodeId{}, c)
	vault.Freeze(VaultWithdraw)

	if _, err := vault.Withdraw(mustAmount(t, "1")); err == nil {
		t.Fatalf("expected withdraw from frozen vault to fail")
	}

	depositC := NewFungibleContainer(res, 18)
	depositC.amount = mustAmount(t, "5")
	if err := vault.Deposit(NewBucket(NodeId{}, depositC)); err != nil {
		t.Fatalf("deposit into withdraw-frozen vault should succeed: %v", err)
	}
	if vault.Amount().Cmp(mustAmount(t, "15")) != 0 {
		t.Fatalf("got %s, want 15", vault.Amount())
	}

	vault.Unfreeze(VaultWithdraw)
	if _, err := vault.Withdraw(mustAmount(t, "1")); err != nil {
		t.Fatalf("withdraw after unfreeze: %v", err)
	}
}

// TestRecallEmitsSpuriousWithdrawEvent pins the deliberately-preserved
// ambiguity: Recall raises a Withdraw event ahead of its own Recall event.
func TestRecallEmitsSpuriousWithdrawEvent(t *testing.T) {
	res := testResourceAddr()
	c := NewFungibleContainer(res, 18)
	c.amount = mustAmount(t, "10")
	vault := NewVault(NodeId{}, c)

	_, events, err := vault.Recall(mustAmount(t, "3"))
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(events) != 2 || events[0].Kind != "Withdraw" || events[1].Kind != "Recall" {
		t.Fatalf("expected [Withdraw, Recall] events, got %v", events)
	}
}

// TestMintThenBurnConservesNothingLeftOver models scenario S4 (spec §8):
// minting 10 units of a resource then burning exactly what was minted
// returns total supply to 0, with nothing left over anywhere.
func TestMintThenBurnConservesNothingLeftOver(t *testing.T) {
	res := testResourceAddr()
	mgr := NewResourceManager(res, ResourceFungible, 18)

	bucket, err := mgr.MintFungible(mustAmount(t, "10"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if mgr.TotalSupply().Cmp(mustAmount(t, "10")) != 0 {
		t.Fatalf("got supply %s after mint, want 10", mgr.TotalSupply())
	}

	if err := mgr.BurnBucket(bucket); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if !mgr.TotalSupply().IsZero() {
		t.Fatalf("expected total supply to return to 0 after mint-then-burn, got %s", mgr.TotalSupply())
	}
}

// TestVaultBurnRecordsSupplyAgainstAttachedManager checks Vault.Burn's
// manager wiring: burning from a vault decrements the resource's tracked
// total supply exactly like burning a bucket does.
func TestVaultBurnRecordsSupplyAgainstAttachedManager(t *testing.T) {
	res := testResourceAddr()
	mgr := NewResourceManager(res, ResourceFungible, 18)
	bucket, err := mgr.MintFungible(mustAmount(t, "42"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	vault := NewVault(NodeId{}, NewFungibleContainer(res, 18))
	vault.SetManager(mgr)
	if err := vault.Deposit(bucket); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := vault.Burn(mustAmount(t, "42")); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if !vault.container.IsEmpty() {
		t.Fatalf("expected vault empty after burning full balance")
	}
	if !mgr.TotalSupply().IsZero() {
		t.Fatalf("expected supply to return to 0, got %s", mgr.TotalSupply())
	}
	if err := vault.Burn(mustAmount(t, "1")); err == nil {
		t.Fatalf("expected burn beyond balance to fail")
	}
}

// TestProofLockBlocksWithdrawUntilDropped checks the source-lock property:
// a container cannot be withdrawn from while any proof taken over it is
// still outstanding, and the lock clears once every clone is dropped.
func TestProofLockBlocksWithdrawUntilDropped(t *testing.T) {
	res := testResourceAddr()
	c := NewFungibleContainer(res, 18)
	c.amount = mustAmount(t, "10")

	c.lockSource()
	source := ProofSource{container: c}
	proof := NewFungibleProof(NodeId{}, res, mustAmount(t, "10"), source)

	if _, err := c.Take(mustAmount(t, "1")); err == nil {
		t.Fatalf("expected take to fail while a proof lock is outstanding")
	}

	clone := proof.Clone(NodeId{})
	proof.Drop()
	if _, err := c.Take(mustAmount(t, "1")); err == nil {
		t.Fatalf("expected take to still fail while the clone is outstanding")
	}

	clone.Drop()
	taken, err := c.Take(mustAmount(t, "1"))
	if err != nil {
		t.Fatalf("take after every proof dropped: %v", err)
	}
	if taken.Amount().Cmp(mustAmount(t, "1")) != 0 {
		t.Fatalf("got %s, want 1", taken.Amount())
	}

	// Dropping twice must not under-flow the lock count.
	clone.Drop()
	if _, err := c.Take(mustAmount(t, "1")); err != nil {
		t.Fatalf("double-drop should not re-lock the container: %v", err)
	}
}

// TestTakeFirstNRemovesInOrder checks the non-fungible take(n) primitive:
// it removes exactly the first n ids in the container's ordering, distinct
// from TakeNonFungibles's caller-specified id set.
func TestTakeFirstNRemovesInOrder(t *testing.T) {
	res := testResourceAddr()
	c := NewNonFungibleContainer(res)
	ids := []NonFungibleLocalId{
		{Kind: NFLocalIDInteger, Integer: 3},
		{Kind: NFLocalIDInteger, Integer: 1},
		{Kind: NFLocalIDInteger, Integer: 2},
	}
	for _, id := range ids {
		c.insertID(id)
	}

	taken, err := c.TakeFirstN(2)
	if err != nil {
		t.Fatalf("take first n: %v", err)
	}
	got := taken.NonFungibleIds()
	if len(got) != 2 || got[0].Integer != 1 || got[1].Integer != 2 {
		t.Fatalf("expected the two lowest-ordered ids, got %v", got)
	}
	remaining := c.NonFungibleIds()
	if len(remaining) != 1 || remaining[0].Integer != 3 {
		t.Fatalf("expected id 3 left behind, got %v", remaining)
	}

	if _, err := c.TakeFirstN(5); err == nil {
		t.Fatalf("expected TakeFirstN beyond the container's size to fail")
	}
}

func TestWorktopEmptyAssertion(t *testing.T) {
	res := testResourceAddr()
	w := NewWorktop()
	c := NewFungibleContainer(res, 18)
	c.amount = mustAmount(t, "5")
	if err := w.Put(NewBucket(NodeId{}, c)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if w.IsEmpty() {
		t.Fatalf("expected worktop non-empty")
	}
	if err := w.AssertContains(res, mustAmount(t, "5")); err != nil {
		t.Fatalf("assert contains: %v", err)
	}
	if _, err := w.TakeAll(res); err != nil {
		t.Fatalf("take all: %v", err)
	}
	if !w.IsEmpty() {
		t.Fatalf("expected worktop empty after drain")
	}
}

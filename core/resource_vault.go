package core

// VaultOperation names the four operations a Vault's freeze bitfield can
// individually block, per §4.C/§5.
type VaultOperation uint8

const (
	VaultWithdraw VaultOperation = 1 << iota
	VaultDeposit
	VaultBurn
	VaultRecall
)

// Vault is the persistent, store-backed holder of resources: it survives
// across transactions (unlike a Bucket) and can be selectively frozen
// against individual operations by its owning component's auth rules.
type Vault struct {
	id        NodeId
	container *Container
	frozen    VaultOperation // bitmask of currently-blocked operations
	manager   *ResourceManager
}

func NewVault(id NodeId, c *Container) *Vault {
	return &Vault{id: id, container: c}
}

// SetManager attaches the resource manager whose total-supply counter
// Burn should update. A vault with no manager attached still burns its own
// balance but does not affect any tracked supply.
func (v *Vault) SetManager(m *ResourceManager) { v.manager = m }

func (v *Vault) Id() NodeId       { return v.id }
func (v *Vault) Resource() NodeId { return v.container.Resource }
func (v *Vault) Amount() Amount   { return v.container.Amount() }

func (v *Vault) IsFrozen(op VaultOperation) bool { return v.frozen&op != 0 }

// Freeze blocks the named operations; Unfreeze lifts them. Both are
// idempotent, matching the original's "freeze flags OR in, AND out" model.
func (v *Vault) Freeze(ops VaultOperation)   { v.frozen |= ops }
func (v *Vault) Unfreeze(ops VaultOperation) { v.frozen &^= ops }

// Deposit merges bucket's contents into the vault.
func (v *Vault) Deposit(bucket *Bucket) error {
	if v.IsFrozen(VaultDeposit) {
		return ApplicationErr(ErrFrozen)
	}
	return v.container.Put(bucket.container)
}

// Withdraw removes amount from the vault into a new Bucket.
func (v *Vault) Withdraw(amount Amount) (*Bucket, error) {
	if v.IsFrozen(VaultWithdraw) {
		return nil, ApplicationErr(ErrFrozen)
	}
	c, err := v.container.Take(amount)
	if err != nil {
		return nil, err
	}
	return &Bucket{container: c}, nil
}

// WithdrawNonFungibles removes the named ids from the vault into a new Bucket.
func (v *Vault) WithdrawNonFungibles(ids []NonFungibleLocalId) (*Bucket, error) {
	if v.IsFrozen(VaultWithdraw) {
		return nil, ApplicationErr(ErrFrozen)
	}
	c, err := v.container.TakeNonFungibles(ids)
	if err != nil {
		return nil, err
	}
	return &Bucket{container: c}, nil
}

// Burn destroys amount from the vault outright and, when a manager is
// attached, records it against total supply (ResourceManager.BurnBucket is
// the bucket counterpart).
func (v *Vault) Burn(amount Amount) error {
	if v.IsFrozen(VaultBurn) {
		return ApplicationErr(ErrFrozen)
	}
	if _, err := v.container.Take(amount); err != nil {
		return err
	}
	if v.manager != nil {
		return v.manager.RecordBurn(amount)
	}
	return nil
}

// VaultEvent is one event raised by a vault operation. A Recall raises two
// (Kind "Withdraw", then Kind "Recall"), preserved deliberately per the "ambiguity to preserve" design note: a
// recall is, mechanically, a privileged withdraw, and the original emits a
// Withdraw event ahead of the Recall event rather than suppressing it.
type VaultEvent struct {
	Kind   string // "Withdraw" or "Recall"
	Amount Amount
}

// Recall is a privileged withdraw performed by the resource's recall
// authority rather than the vault's owner, bypassing the normal withdraw
// freeze (but not VaultRecall itself). It returns both events it raises,
// in emission order, so callers that log events see the same duplicate
// Withdraw the original implementation produces.
func (v *Vault) Recall(amount Amount) (*Bucket, []VaultEvent, error) {
	if v.IsFrozen(VaultRecall) {
		return nil, nil, ApplicationErr(ErrFrozen)
	}
	c, err := v.container.Take(amount)
	if err != nil {
		return nil, nil, err
	}
	events := []VaultEvent{
		{Kind: "Withdraw", Amount: amount}, // spurious: Recall internally reuses withdraw's emission path
		{Kind: "Recall", Amount: amount},
	}
	return &Bucket{container: c}, events, nil
}

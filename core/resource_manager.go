package core

// ResourceManager tracks one resource address's total supply across every
// container that ever holds it. Mint and Burn are the only two primitives
// allowed to change it, the mints-minus-burns term of §3's conservation
// invariant; every other container operation only moves an existing
// quantity around.
type ResourceManager struct {
	Resource     ResourceAddress
	Kind         ResourceKind
	Divisibility int32

	totalSupply Amount
}

// NewResourceManager constructs a manager for resource at zero supply.
func NewResourceManager(resource ResourceAddress, kind ResourceKind, divisibility int32) *ResourceManager {
	return &ResourceManager{Resource: resource, Kind: kind, Divisibility: divisibility}
}

func (m *ResourceManager) TotalSupply() Amount { return m.totalSupply }

// MintFungible creates amount of new supply and returns it as a freshly
// owned Bucket.
func (m *ResourceManager) MintFungible(amount Amount) (*Bucket, error) {
	if m.Kind != ResourceFungible {
		return nil, ApplicationErr(ErrInvalidTakeAmount)
	}
	if amount.DecimalPlaces() > m.Divisibility {
		return nil, ApplicationErr(ErrInvalidTakeAmount)
	}
	sum, err := m.totalSupply.Add(amount)
	if err != nil {
		return nil, ApplicationErr(err)
	}
	m.totalSupply = sum
	c := &Container{Resource: m.Resource, Kind: ResourceFungible, Divisibility: m.Divisibility, amount: amount}
	return &Bucket{container: c}, nil
}

// MintNonFungible returns a bucket holding ids and adds len(ids) to total
// supply. Supply is tracked as a count only, not per id: an id minted
// before is not detected, and a duplicate within ids is stored once but
// still counted.
func (m *ResourceManager) MintNonFungible(ids []NonFungibleLocalId) (*Bucket, error) {
	if m.Kind != ResourceNonFungible {
		return nil, ApplicationErr(ErrInvalidTakeAmount)
	}
	c := &Container{Resource: m.Resource, Kind: ResourceNonFungible}
	for _, id := range ids {
		c.insertID(id)
	}
	sum, err := m.totalSupply.Add(NewAmountFromInt64(int64(len(ids))))
	if err != nil {
		return nil, ApplicationErr(err)
	}
	m.totalSupply = sum
	return &Bucket{container: c}, nil
}

// BurnBucket destroys bucket's entire contents, decrementing total supply
// by exactly what it held. The counterpart to Mint; Vault.Burn instead
// destroys in place and calls RecordBurn directly, never materializing a
// bucket.
func (m *ResourceManager) BurnBucket(b *Bucket) error {
	amount := b.Amount()
	if _, err := b.container.TakeAll(); err != nil {
		return err
	}
	return m.RecordBurn(amount)
}

// RecordBurn decrements total supply by amount without touching any
// container, used by Vault.Burn which already removed the balance itself.
func (m *ResourceManager) RecordBurn(amount Amount) error {
	sum, err := m.totalSupply.Sub(amount)
	if err != nil {
		return ApplicationErr(err)
	}
	m.totalSupply = sum
	return nil
}

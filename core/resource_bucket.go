package core

// Bucket is a transient, owned holder of resources: created by a take
// operation, consumed by a deposit or burn, and never persisted directly
// in the substate store (it lives only in a call frame's heap, per §3/§5).
type Bucket struct {
	id        NodeId
	container *Container
}

func NewBucket(id NodeId, c *Container) *Bucket {
	return &Bucket{id: id, container: c}
}

func (b *Bucket) Id() NodeId       { return b.id }
func (b *Bucket) Resource() NodeId { return b.container.Resource }
func (b *Bucket) IsEmpty() bool    { return b.container.IsEmpty() }
func (b *Bucket) Amount() Amount   { return b.container.Amount() }

// Put merges other's contents into b and drops other, per the Bucket.Put
// operation of §4.C.
func (b *Bucket) Put(other *Bucket) error {
	if err := b.container.Put(other.container); err != nil {
		return err
	}
	other.container = &Container{Resource: other.container.Resource, Kind: other.container.Kind}
	return nil
}

// Take removes amount from b, returning a new Bucket holding it.
func (b *Bucket) Take(amount Amount) (*Bucket, error) {
	c, err := b.container.Take(amount)
	if err != nil {
		return nil, err
	}
	return &Bucket{container: c}, nil
}

// TakeAll drains b entirely into a freshly returned Bucket, leaving b empty.
func (b *Bucket) TakeAll() (*Bucket, error) {
	c, err := b.container.TakeAll()
	if err != nil {
		return nil, err
	}
	return &Bucket{container: c}, nil
}

// TakeNonFungibles removes the named ids from b into a new Bucket.
func (b *Bucket) TakeNonFungibles(ids []NonFungibleLocalId) (*Bucket, error) {
	c, err := b.container.TakeNonFungibles(ids)
	if err != nil {
		return nil, err
	}
	return &Bucket{container: c}, nil
}

// TakeFirstN removes the first n non-fungible ids in the bucket's ordering
// into a new Bucket.
func (b *Bucket) TakeFirstN(n int) (*Bucket, error) {
	c, err := b.container.TakeFirstN(n)
	if err != nil {
		return nil, err
	}
	return &Bucket{container: c}, nil
}

func (b *Bucket) NonFungibleIds() []NonFungibleLocalId { return b.container.NonFungibleIds() }

// Drop consumes an empty bucket, freeing its node. Dropping a non-empty
// bucket is an application error: resources may only be destroyed via an
// explicit Burn, never silently by garbage collection (§8 "linearity").
func (b *Bucket) Drop() error {
	if !b.IsEmpty() {
		return ApplicationErr(ErrDropNonEmptyBucket)
	}
	return nil
}

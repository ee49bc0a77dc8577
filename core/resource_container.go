package core

import (
	"bytes"
	"sort"
)

// ResourceKind distinguishes the two resource flavors §4.C names: fungible
// amounts versus a set of individually tracked non-fungible units.
type ResourceKind byte

const (
	ResourceFungible ResourceKind = iota
	ResourceNonFungible
)

// ResourceAddress is the global NodeId of the resource's defining node
// (an EntityResource node), the same address a Bucket/Vault/Proof carries
// to identify which resource they hold.
type ResourceAddress = NodeId

// Container is the shared quantity representation Bucket and Vault both
// embed: a fungible amount or a set of non-fungible local ids, never both.
// It enforces §4.C's divisibility and conservation invariants on every
// mutation.
type Container struct {
	Resource     ResourceAddress
	Kind         ResourceKind
	Divisibility int32 // fungible only; 0..18

	amount      Amount               // fungible only
	ids         []NonFungibleLocalId // non-fungible only, kept sorted+deduped
	sourceLocks int                  // outstanding proofs locked against this container
}

// lockSource increments the container's outstanding-proof refcount, called
// when a proof is created or cloned over this container.
func (c *Container) lockSource() { c.sourceLocks++ }

// unlockSource decrements the refcount, called when a proof over this
// container is dropped.
func (c *Container) unlockSource() {
	if c.sourceLocks > 0 {
		c.sourceLocks--
	}
}

// checkUnlocked refuses any operation that would remove resources from the
// container while a proof still locks it (§4.C: a container cannot be
// withdrawn from while any source lock is held).
func (c *Container) checkUnlocked() error {
	if c.sourceLocks > 0 {
		return ApplicationErr(ErrSourceLocked)
	}
	return nil
}

// NewFungibleContainer builds an empty fungible container for resource r at
// the given divisibility (0 = whole units only, 18 = full Amount precision).
func NewFungibleContainer(r ResourceAddress, divisibility int32) *Container {
	return &Container{Resource: r, Kind: ResourceFungible, Divisibility: divisibility}
}

// NewNonFungibleContainer builds an empty non-fungible container for resource r.
func NewNonFungibleContainer(r ResourceAddress) *Container {
	return &Container{Resource: r, Kind: ResourceNonFungible}
}

func (c *Container) IsEmpty() bool {
	if c.Kind == ResourceFungible {
		return c.amount.IsZero()
	}
	return len(c.ids) == 0
}

func (c *Container) Amount() Amount {
	if c.Kind == ResourceFungible {
		return c.amount
	}
	return NewAmountFromInt64(int64(len(c.ids)))
}

func (c *Container) NonFungibleIds() []NonFungibleLocalId {
	out := make([]NonFungibleLocalId, len(c.ids))
	copy(out, c.ids)
	return out
}

// Put merges other into c. Both must be the same resource and kind;
// conservation (§8 "resource conservation") requires the combined quantity
// equal the sum of the two inputs exactly, with no rounding.
func (c *Container) Put(other *Container) error {
	if other == nil || other.IsEmpty() {
		return nil
	}
	if c.Resource != other.Resource || c.Kind != other.Kind {
		return ApplicationErr(ErrInvalidTakeAmount)
	}
	if c.Kind == ResourceFungible {
		sum, err := c.amount.Add(other.amount)
		if err != nil {
			return ApplicationErr(err)
		}
		c.amount = sum
		return nil
	}
	for _, id := range other.ids {
		c.insertID(id)
	}
	other.ids = nil
	return nil
}

// Take removes amount from c (fungible), returning a freshly allocated
// container holding exactly that amount. Linearity (§8 "linearity") demands
// c.Amount()+result.Amount() == original c.Amount() with nothing created or
// destroyed.
func (c *Container) Take(amount Amount) (*Container, error) {
	if err := c.checkUnlocked(); err != nil {
		return nil, err
	}
	if c.Kind != ResourceFungible {
		return nil, ApplicationErr(ErrInvalidTakeAmount)
	}
	if amount.DecimalPlaces() > c.Divisibility {
		return nil, ApplicationErr(ErrInvalidTakeAmount)
	}
	if c.amount.Cmp(amount) < 0 {
		return nil, ApplicationErr(ErrInsufficientBalance)
	}
	remaining, err := c.amount.Sub(amount)
	if err != nil {
		return nil, ApplicationErr(err)
	}
	c.amount = remaining
	return &Container{Resource: c.Resource, Kind: ResourceFungible, Divisibility: c.Divisibility, amount: amount}, nil
}

// TakeAll empties c into a new container, a zero-cost move of the entire
// balance (used by ResourceManager.BurnBucket and worktop draining).
func (c *Container) TakeAll() (*Container, error) {
	if err := c.checkUnlocked(); err != nil {
		return nil, err
	}
	out := &Container{Resource: c.Resource, Kind: c.Kind, Divisibility: c.Divisibility}
	if c.Kind == ResourceFungible {
		out.amount = c.amount
		c.amount = Amount{}
		return out, nil
	}
	out.ids = c.ids
	c.ids = nil
	return out, nil
}

// TakeNonFungibles removes exactly the named ids from c into a new container
// (the take_ids operation).
func (c *Container) TakeNonFungibles(ids []NonFungibleLocalId) (*Container, error) {
	if err := c.checkUnlocked(); err != nil {
		return nil, err
	}
	if c.Kind != ResourceNonFungible {
		return nil, ApplicationErr(ErrInvalidTakeAmount)
	}
	for _, id := range ids {
		if c.indexOfID(id) < 0 {
			return nil, ApplicationErr(ErrNonFungibleIDNotFound)
		}
	}
	out := &Container{Resource: c.Resource, Kind: ResourceNonFungible}
	for _, id := range ids {
		i := c.indexOfID(id)
		if i < 0 {
			return nil, ApplicationErr(ErrNonFungibleIDNotFound)
		}
		c.ids = append(c.ids[:i], c.ids[i+1:]...)
		out.insertID(id)
	}
	return out, nil
}

// TakeFirstN removes the first n ids in the container's ordering into a new
// container (the take(n) operation, distinct from TakeNonFungibles's
// caller-specified id set).
func (c *Container) TakeFirstN(n int) (*Container, error) {
	if err := c.checkUnlocked(); err != nil {
		return nil, err
	}
	if c.Kind != ResourceNonFungible {
		return nil, ApplicationErr(ErrInvalidTakeAmount)
	}
	if n < 0 || n > len(c.ids) {
		return nil, ApplicationErr(ErrInsufficientBalance)
	}
	out := &Container{Resource: c.Resource, Kind: ResourceNonFungible}
	out.ids = append(out.ids, c.ids[:n]...)
	c.ids = c.ids[n:]
	return out, nil
}

func (c *Container) insertID(id NonFungibleLocalId) {
	i := c.indexOfID(id)
	if i >= 0 {
		return
	}
	idBytes := id.bytes()
	pos := sort.Search(len(c.ids), func(j int) bool {
		return bytes.Compare(c.ids[j].bytes(), idBytes) >= 0
	})
	c.ids = append(c.ids, NonFungibleLocalId{})
	copy(c.ids[pos+1:], c.ids[pos:])
	c.ids[pos] = id
}

func (c *Container) indexOfID(id NonFungibleLocalId) int {
	needle := id.bytes()
	for i, existing := range c.ids {
		if bytes.Equal(existing.bytes(), needle) {
			return i
		}
	}
	return -1
}

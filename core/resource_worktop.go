package core

// Worktop is the transaction processor's implicit, per-transaction bucket
// pool: instructions take resources from it and put leftovers back into it,
// and the processor asserts it is empty at the end of every successful
// transaction (§4.C, §7's worktop-empty assertion).
type Worktop struct {
	buckets map[NodeId]*Container
}

func NewWorktop() *Worktop {
	return &Worktop{buckets: make(map[NodeId]*Container)}
}

// Put merges bucket's contents into the worktop's pool for its resource,
// consuming the bucket.
func (w *Worktop) Put(bucket *Bucket) error {
	c, ok := w.buckets[bucket.Resource()]
	if !ok {
		w.buckets[bucket.Resource()] = bucket.container
		return nil
	}
	return c.Put(bucket.container)
}

// Take removes amount of resource from the worktop into a new Bucket.
func (w *Worktop) Take(resource NodeId, amount Amount) (*Bucket, error) {
	c, ok := w.buckets[resource]
	if !ok {
		return nil, ApplicationErr(ErrInsufficientBalance)
	}
	taken, err := c.Take(amount)
	if err != nil {
		return nil, err
	}
	return &Bucket{container: taken}, nil
}

// TakeAll drains the entire balance of resource off the worktop.
func (w *Worktop) TakeAll(resource NodeId) (*Bucket, error) {
	c, ok := w.buckets[resource]
	if !ok {
		return &Bucket{container: &Container{Resource: resource, Kind: ResourceFungible}}, nil
	}
	taken, err := c.TakeAll()
	if err != nil {
		return nil, err
	}
	return &Bucket{container: taken}, nil
}

// TakeNonFungibles removes the named ids of resource off the worktop.
func (w *Worktop) TakeNonFungibles(resource NodeId, ids []NonFungibleLocalId) (*Bucket, error) {
	c, ok := w.buckets[resource]
	if !ok {
		return nil, ApplicationErr(ErrNonFungibleIDNotFound)
	}
	taken, err := c.TakeNonFungibles(ids)
	if err != nil {
		return nil, err
	}
	return &Bucket{container: taken}, nil
}

// AssertContains checks the worktop holds at least amount of resource,
// without removing anything (the "assert_worktop_contains" instruction).
func (w *Worktop) AssertContains(resource NodeId, amount Amount) error {
	c, ok := w.buckets[resource]
	if !ok || c.Amount().Cmp(amount) < 0 {
		return ApplicationErr(ErrAssertionFailed)
	}
	return nil
}

// IsEmpty reports whether every resource pool on the worktop is empty. The
// transaction processor rejects any transaction that leaves the worktop
// non-empty at its end.
func (w *Worktop) IsEmpty() bool {
	for _, c := range w.buckets {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Drain empties the worktop, returning one Bucket per resource still
// holding a balance. Used by the processor to sweep leftovers into an
// implicit account deposit in dialects that allow it; CORE leaves that
// policy to the caller and only provides the drain primitive.
func (w *Worktop) Drain() []*Bucket {
	var out []*Bucket
	for _, c := range w.buckets {
		if c.IsEmpty() {
			continue
		}
		taken, err := c.TakeAll()
		if err != nil {
			continue
		}
		out = append(out, &Bucket{container: taken})
	}
	return out
}

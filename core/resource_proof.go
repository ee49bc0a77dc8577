package core

// ProofSource identifies which vault or bucket a Proof's backing amount was
// locked against, so releasing the proof can decrement the right source's
// lock count. container is the actual backing Container instance; it is
// nil for virtual proofs (e.g. package self-authentication), which carry
// no real source to lock.
type ProofSource struct {
	SourceId  NodeId
	IsVault   bool
	container *Container
}

// Proof is a non-consuming capability asserting the holder controls at
// least some amount of a resource, without removing it from its source.
// Locking a source increments its lock refcount; Drop decrements it. A
// locked amount can never be withdrawn out from under an outstanding proof.
type Proof struct {
	id       NodeId
	Resource NodeId
	amount   Amount
	ids      []NonFungibleLocalId
	source   ProofSource
	dropped  bool
}

// NewFungibleProof returns a Proof over amount backed by source; it does not
// touch source's lock count itself. The caller is responsible for having already incremented source's lock
// count (the kernel primitive that creates a proof and the source-lock
// bookkeeping are performed together under one kernel call).
func NewFungibleProof(id NodeId, resource NodeId, amount Amount, source ProofSource) *Proof {
	return &Proof{id: id, Resource: resource, amount: amount, source: source}
}

func NewNonFungibleProof(id NodeId, resource NodeId, ids []NonFungibleLocalId, source ProofSource) *Proof {
	return &Proof{id: id, Resource: resource, ids: append([]NonFungibleLocalId(nil), ids...), source: source}
}

func (p *Proof) Id() NodeId     { return p.id }
func (p *Proof) Amount() Amount { return p.amount }
func (p *Proof) Source() ProofSource { return p.source }

// Check asserts the proof is for the expected resource. It is a read-only
// assertion: per original_source/scrypto/src/resource/bucket_ref.rs, it has
// no side effect on the source's lock count.
func (p *Proof) Check(expected NodeId) error {
	if p.Resource != expected {
		return ApplicationErr(ErrUnauthorized)
	}
	return nil
}

// Clone produces a second Proof over the same locked amount, incrementing
// the source container's lock refcount so neither proof's backing amount
// can be withdrawn while either is outstanding.
func (p *Proof) Clone(newId NodeId) *Proof {
	if p.source.container != nil {
		p.source.container.lockSource()
	}
	return &Proof{id: newId, Resource: p.Resource, amount: p.amount, ids: append([]NonFungibleLocalId(nil), p.ids...), source: p.source}
}

// Drop releases the proof, decrementing its source container's lock
// refcount exactly once. Idempotent against double-drop.
func (p *Proof) Drop() {
	if p.dropped {
		return
	}
	p.dropped = true
	if p.source.container != nil {
		p.source.container.unlockSource()
	}
}

func (p *Proof) IsDropped() bool { return p.dropped }

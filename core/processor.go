package core

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

var processorLog = logrus.WithField("subsystem", "processor")

// InstructionKind enumerates the manifest instruction vocabulary the
// transaction processor understands, grounded on
// original_source/radix-engine-tests/tests/common_transactions.rs's
// instruction set.
type InstructionKind byte

const (
	InstrTakeFromWorktop InstructionKind = iota
	InstrTakeAllFromWorktop
	InstrReturnToWorktop
	InstrAssertWorktopContains
	InstrCallMethod
	InstrCallFunction
	InstrLockFee
	InstrLockContingentFee
	InstrPublishPackage
	InstrMintResource
	InstrBurnResource
	InstrWithdrawFromVault
	InstrDepositToVault
	InstrCreateProofFromBucket
	InstrCreateProofFromVault
	InstrCloneProof
	InstrDropProof
	InstrPopFromAuthZone
	InstrPushToAuthZone
	InstrDropAuthZone
	InstrAllocateAddress
)

// Instruction is one ordered step of a transaction manifest.
type Instruction struct {
	Kind     InstructionKind
	Resource NodeId
	Amount   Amount
	Ids      []NonFungibleLocalId

	// CallMethod/CallFunction fields. Module selects which substate module
	// the call's authorization check is resolved against (ModuleObject for
	// ordinary methods).
	Package   NodeId
	Blueprint string
	Function  string
	Module    ModuleId
	Receiver  NodeId
	IsGlobal  bool
	Args      Value

	// TakeFromWorktop/ReturnToWorktop/CreateProofFromBucket bucket handle, a
	// processor-local id the manifest uses to refer to a bucket across
	// instructions.
	BucketRef uint32

	// CreateProofFromBucket/CreateProofFromVault/CloneProof/DropProof/
	// PopFromAuthZone/PushToAuthZone proof handle.
	ProofRef       uint32
	SourceProofRef uint32 // CloneProof's source handle

	// PublishPackage code payload.
	Code []byte

	// AllocateAddress entity type to mint.
	Entity EntityType
}

// Outcome classifies how a transaction finished, per §7.
type Outcome byte

const (
	OutcomeCommitSuccess Outcome = iota
	OutcomeCommitFailure
	OutcomeReject
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitSuccess:
		return "CommitSuccess"
	case OutcomeCommitFailure:
		return "CommitFailure"
	case OutcomeReject:
		return "Reject"
	default:
		return "Unknown"
	}
}

// Receipt is the transaction processor's result: the outcome, any returned
// values from the final instruction, the fee summary, and the error (if
// any) that produced a non-success outcome.
type Receipt struct {
	Outcome     Outcome
	ReturnValue Value
	FeeSummary  FeeSummary
	Events      []EmittedEvent
	Logs        []LogLine
	Err         error
}

// TransactionProcessor drives one ordered instruction list under one fee
// reserve and worktop, the way contracts.go's InvokeWithReceipt drives one
// contract call under one VMContext/gas budget, generalized to a multi-step
// manifest.
type TransactionProcessor struct {
	kernel  *Kernel
	host    *HostContext
	worktop *Worktop
	fees    *FeeReserve
	buckets map[uint32]*Bucket
	proofs  map[uint32]*Proof
	vaults  map[NodeId]*Vault
	managers map[NodeId]*ResourceManager
}

// NewTransactionProcessor wires a fresh kernel, host context, worktop, and
// fee reserve together for one transaction.
func NewTransactionProcessor(store SubstateStore, costUnitLimit uint64, costUnitPrice Amount, tipPercentage int64, systemLoan uint64) *TransactionProcessor {
	kernel := NewKernel(store)
	fees := NewFeeReserve(costUnitLimit, costUnitPrice, tipPercentage, systemLoan)
	worktop := NewWorktop()
	host := &HostContext{
		Kernel:     kernel,
		FeeReserve: fees,
		Auth:       NewAuthModule(),
		Worktop:    worktop,
		Registry:   NewBlueprintRegistry(),
	}
	return &TransactionProcessor{
		kernel:   kernel,
		host:     host,
		worktop:  worktop,
		fees:     fees,
		buckets:  make(map[uint32]*Bucket),
		proofs:   make(map[uint32]*Proof),
		vaults:   make(map[NodeId]*Vault),
		managers: make(map[NodeId]*ResourceManager),
	}
}

// Host exposes the processor's HostContext so callers can register
// blueprint functions and access rules before running a manifest.
func (p *TransactionProcessor) Host() *HostContext { return p.host }

// SetVault makes a persistent vault addressable by id within this
// transaction, so a manifest's withdraw-from-vault/deposit-to-vault/
// create-proof-from-vault instructions can reach it. In a full
// implementation a vault would be loaded lazily from the kernel's node
// table; CORE's processor keeps a transaction-scoped table instead.
func (p *TransactionProcessor) SetVault(id NodeId, v *Vault) {
	p.vaults[id] = v
}

// resourceManager returns the manager tracking resource's total supply,
// creating one on first reference.
func (p *TransactionProcessor) resourceManager(resource NodeId, kind ResourceKind) *ResourceManager {
	if m, ok := p.managers[resource]; ok {
		return m
	}
	m := NewResourceManager(resource, kind, DecimalScale)
	p.managers[resource] = m
	return m
}

// transactionHash derives a deterministic content hash of the instruction
// list, seeding the kernel's node-id allocator so re-running the identical
// manifest yields the identical sequence of allocated ids (§1, §9).
func transactionHash(instructions []Instruction) [32]byte {
	var buf bytes.Buffer
	for _, in := range instructions {
		fmt.Fprintf(&buf, "%d|%x|%s|%x|%s|%s|%d|%x|%v|%s|%d|%d|%x|%d;",
			in.Kind, in.Resource, in.Amount.String(), in.Ids, in.Package.Hex(), in.Blueprint,
			in.Module, in.Receiver, in.IsGlobal, in.Function, in.BucketRef, in.ProofRef, in.Code, in.Entity)
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf.Bytes()))
	return out
}

// Run executes instructions in order, asserts the worktop is empty at the
// end, and produces a Receipt. Every run is charged the transaction base
// fee up front. Reject is returned (rather than CommitFailure) for any
// error encountered before the fee loan has been repaid, per §8's
// loan-rule property, and for rejection-category errors at any point;
// otherwise a failure settles as CommitFailure with fees still charged.
func (p *TransactionProcessor) Run(instructions []Instruction) *Receipt {
	p.kernel.SeedAllocator(transactionHash(instructions))
	p.fees.Consume(CostReasonTxBaseFee, 0)

	// The manifest itself runs inside an implicit, non-barrier root auth
	// zone: proofs created at the top level (outside any CallMethod/
	// CallFunction) and pushed via push-to-auth-zone live here, visible to
	// every top-level call that follows, the way a transaction manifest's
	// own auth zone works in original_source.
	rootZone := p.host.Auth.zones.Push(false)
	defer func() {
		for _, proof := range rootZone.proofs {
			proof.Drop()
		}
		p.host.Auth.zones.Pop()
	}()

	var last Value
	var outcomeErr error

	for _, instr := range instructions {
		v, err := p.runOne(instr)
		if err != nil {
			outcomeErr = err
			break
		}
		last = v
	}

	if outcomeErr == nil && !p.worktop.IsEmpty() {
		outcomeErr = RejectErr(ErrAssertionFailed)
	}

	if outcomeErr != nil {
		outcome := OutcomeCommitFailure
		if !p.fees.LoanRepaid() || IsRejection(outcomeErr) {
			outcome = OutcomeReject
		}
		processorLog.Warnf("transaction finished with outcome=%s err=%v", outcome, outcomeErr)
		summary := p.fees.Finalize(outcome != OutcomeReject)
		return &Receipt{Outcome: outcome, FeeSummary: summary, Events: p.host.Events(), Logs: p.host.Logs(), Err: outcomeErr}
	}

	if err := p.kernel.Commit(); err != nil {
		summary := p.fees.Finalize(false)
		return &Receipt{Outcome: OutcomeReject, FeeSummary: summary, Err: SystemErr(err)}
	}

	summary := p.fees.Finalize(true)
	processorLog.Infof("transaction committed: cost_units=%d", summary.TotalCostUnitsConsumed)
	return &Receipt{Outcome: OutcomeCommitSuccess, ReturnValue: last, FeeSummary: summary, Events: p.host.Events(), Logs: p.host.Logs()}
}

func (p *TransactionProcessor) runOne(instr Instruction) (Value, error) {
	switch instr.Kind {
	case InstrLockFee:
		p.fees.LockFee(instr.Receiver, instr.Amount)
		return Value{}, nil

	case InstrLockContingentFee:
		p.fees.LockContingentFee(instr.Receiver, instr.Amount)
		return Value{}, nil

	case InstrTakeFromWorktop:
		b, err := p.worktop.Take(instr.Resource, instr.Amount)
		if err != nil {
			return Value{}, err
		}
		p.buckets[instr.BucketRef] = b
		return Value{}, nil

	case InstrTakeAllFromWorktop:
		b, err := p.worktop.TakeAll(instr.Resource)
		if err != nil {
			return Value{}, err
		}
		p.buckets[instr.BucketRef] = b
		return Value{}, nil

	case InstrReturnToWorktop:
		b, ok := p.buckets[instr.BucketRef]
		if !ok {
			return Value{}, ApplicationErr(ErrNonFungibleIDNotFound)
		}
		delete(p.buckets, instr.BucketRef)
		return Value{}, p.worktop.Put(b)

	case InstrAssertWorktopContains:
		return Value{}, p.worktop.AssertContains(instr.Resource, instr.Amount)

	case InstrPublishPackage:
		id, err := p.host.PublishPackage(instr.Code)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindCustomAddress, Address: id}, nil

	case InstrMintResource:
		mgr := p.resourceManager(instr.Resource, resourceKindOf(instr))
		var bucket *Bucket
		var err error
		if mgr.Kind == ResourceNonFungible {
			bucket, err = mgr.MintNonFungible(instr.Ids)
		} else {
			bucket, err = mgr.MintFungible(instr.Amount)
		}
		if err != nil {
			return Value{}, err
		}
		p.host.EmitEvent("MintResource", []byte(instr.Amount.String()))
		return Value{}, p.worktop.Put(bucket)

	case InstrBurnResource:
		mgr := p.resourceManager(instr.Resource, resourceKindOf(instr))
		var bucket *Bucket
		var err error
		if mgr.Kind == ResourceNonFungible {
			bucket, err = p.worktop.TakeNonFungibles(instr.Resource, instr.Ids)
		} else {
			bucket, err = p.worktop.Take(instr.Resource, instr.Amount)
		}
		if err != nil {
			return Value{}, err
		}
		if err := mgr.BurnBucket(bucket); err != nil {
			return Value{}, err
		}
		p.host.EmitEvent("BurnResource", []byte(instr.Amount.String()))
		return Value{}, nil

	case InstrWithdrawFromVault:
		vault, ok := p.vaults[instr.Receiver]
		if !ok {
			return Value{}, KernelErr(ErrNodeNotFound)
		}
		var bucket *Bucket
		var err error
		if len(instr.Ids) > 0 {
			bucket, err = vault.WithdrawNonFungibles(instr.Ids)
		} else {
			bucket, err = vault.Withdraw(instr.Amount)
		}
		if err != nil {
			return Value{}, err
		}
		p.buckets[instr.BucketRef] = bucket
		return Value{}, nil

	case InstrDepositToVault:
		vault, ok := p.vaults[instr.Receiver]
		if !ok {
			return Value{}, KernelErr(ErrNodeNotFound)
		}
		bucket, ok := p.buckets[instr.BucketRef]
		if !ok {
			return Value{}, ApplicationErr(ErrNonFungibleIDNotFound)
		}
		delete(p.buckets, instr.BucketRef)
		return Value{}, vault.Deposit(bucket)

	case InstrCreateProofFromBucket:
		bucket, ok := p.buckets[instr.BucketRef]
		if !ok {
			return Value{}, ApplicationErr(ErrNonFungibleIDNotFound)
		}
		p.proofs[instr.ProofRef] = proofFromContainer(bucket.container, ProofSource{SourceId: bucket.id, IsVault: false})
		return Value{}, nil

	case InstrCreateProofFromVault:
		vault, ok := p.vaults[instr.Receiver]
		if !ok {
			return Value{}, KernelErr(ErrNodeNotFound)
		}
		p.proofs[instr.ProofRef] = proofFromContainer(vault.container, ProofSource{SourceId: vault.id, IsVault: true})
		return Value{}, nil

	case InstrCloneProof:
		src, ok := p.proofs[instr.SourceProofRef]
		if !ok {
			return Value{}, ApplicationErr(ErrUnauthorized)
		}
		p.proofs[instr.ProofRef] = src.Clone(NodeId{})
		return Value{}, nil

	case InstrDropProof:
		if proof, ok := p.proofs[instr.ProofRef]; ok {
			proof.Drop()
			delete(p.proofs, instr.ProofRef)
		}
		return Value{}, nil

	case InstrPopFromAuthZone:
		zone := p.host.Auth.zones.Current()
		if zone == nil || len(zone.proofs) == 0 {
			return Value{}, ApplicationErr(ErrUnauthorized)
		}
		proof := zone.proofs[len(zone.proofs)-1]
		zone.proofs = zone.proofs[:len(zone.proofs)-1]
		p.proofs[instr.ProofRef] = proof
		return Value{}, nil

	case InstrPushToAuthZone:
		proof, ok := p.proofs[instr.ProofRef]
		if !ok {
			return Value{}, ApplicationErr(ErrUnauthorized)
		}
		delete(p.proofs, instr.ProofRef)
		p.host.Auth.PushProof(proof)
		return Value{}, nil

	case InstrDropAuthZone:
		if zone := p.host.Auth.zones.Current(); zone != nil {
			for _, proof := range zone.proofs {
				proof.Drop()
			}
			zone.proofs = nil
		}
		return Value{}, nil

	case InstrAllocateAddress:
		id, err := p.kernel.AllocateNodeId(instr.Entity)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindCustomAddress, Address: id}, nil

	case InstrCallFunction:
		key := MethodKey{Package: instr.Package, Blueprint: instr.Blueprint, Module: instr.Module, Ident: instr.Function}
		if err := p.host.Auth.AuthorizeCall(key); err != nil {
			return Value{}, err
		}
		actor := Actor{Kind: ActorFunction, Package: instr.Package, Blueprint: instr.Blueprint}
		p.kernel.PushFrame(actor, nil)
		p.host.Auth.OnExecutionStart(actor)
		out, err := p.host.Registry.Dispatch(p.host, instr.Package, instr.Blueprint, instr.Function, instr.Args)
		p.host.Auth.OnExecutionFinish()
		p.kernel.PopFrame()
		return out, err

	case InstrCallMethod:
		key := MethodKey{Package: instr.Package, Blueprint: instr.Blueprint, Module: instr.Module, Ident: instr.Function}
		if err := p.host.Auth.AuthorizeCall(key); err != nil {
			return Value{}, err
		}
		actor := Actor{Kind: ActorMethod, Package: instr.Package, Blueprint: instr.Blueprint, Receiver: instr.Receiver, ReceiverIsGlobal: instr.IsGlobal}
		p.kernel.PushFrame(actor, []NodeId{instr.Receiver})
		p.host.Auth.OnExecutionStart(actor)
		out, err := p.host.Registry.Dispatch(p.host, instr.Package, instr.Blueprint, instr.Function, instr.Args)
		p.host.Auth.OnExecutionFinish()
		p.kernel.PopFrame()
		return out, err

	default:
		return Value{}, SystemErr(ErrTypeMismatch)
	}
}

// resourceKindOf infers a mint/burn instruction's resource kind from
// whether it carries non-fungible ids.
func resourceKindOf(instr Instruction) ResourceKind {
	if len(instr.Ids) > 0 {
		return ResourceNonFungible
	}
	return ResourceFungible
}

// proofFromContainer locks source and builds a Proof over its current
// balance, the create-proof-from-bucket/create-proof-from-vault primitive
// of §4.C/§4.H.
func proofFromContainer(c *Container, source ProofSource) *Proof {
	c.lockSource()
	source.container = c
	if c.Kind == ResourceNonFungible {
		return NewNonFungibleProof(NodeId{}, c.Resource, c.NonFungibleIds(), source)
	}
	return NewFungibleProof(NodeId{}, c.Resource, c.Amount(), source)
}

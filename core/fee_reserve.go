package core

import (
	"github.com/sirupsen/logrus"
)

var feeLog = logrus.WithField("subsystem", "fees")

// CostReason categorizes what a cost-unit charge paid for, so a receipt can
// break down spending the way a real fee summary does.
type CostReason byte

const (
	CostReasonTxBaseFee CostReason = iota
	CostReasonInvoke
	CostReasonRuntimeExecution
	CostReasonStateRead
	CostReasonStateWrite
	CostReasonEventEmission
	CostReasonRoyalty
)

// defaultCostTable prices each reason in cost units, mirroring gas_table.go's
// map[key]uint64 shape and DefaultGasCost fallback.
var defaultCostTable = map[CostReason]uint64{
	CostReasonTxBaseFee:        50_000,
	CostReasonInvoke:           1_000,
	CostReasonRuntimeExecution: 1,
	CostReasonStateRead:        500,
	CostReasonStateWrite:       2_000,
	CostReasonEventEmission:    200,
	CostReasonRoyalty:          0,
}

// DefaultReasonCost is charged for any reason missing from the table,
// logged once, matching gas_table.go's DefaultGasCost policy.
const DefaultReasonCost uint64 = 10_000

var loggedMissingReasons = map[CostReason]bool{}

func costOf(reason CostReason) uint64 {
	if cost, ok := defaultCostTable[reason]; ok {
		return cost
	}
	if !loggedMissingReasons[reason] {
		feeLog.Warnf("fee_reserve: missing cost for reason %d, charging default", reason)
		loggedMissingReasons[reason] = true
	}
	return DefaultReasonCost
}

// lockedFeeSource is one lock_fee/lock_contingent_fee call against a vault,
// recorded in call order: settlement drains vaults in this order and the
// first one receives any refund (§4.D, confirmed against fee.rs).
type lockedFeeSource struct {
	vault       NodeId
	locked      Amount
	contingent  bool
}

// FeeReserve is the per-transaction cost meter: it tracks the system loan,
// accumulates cost-unit consumption by reason, and holds the locked-fee
// vaults that will settle the bill at finalize time.
type FeeReserve struct {
	costUnitLimit uint64
	costUnitPrice Amount
	tipPercentage int64 // whole-percent tip on top of costUnitPrice
	systemLoan    uint64

	consumedUnits  uint64
	consumedByTag  map[CostReason]uint64
	loanRepaid     bool
	lockedNonContingent Amount // running sum of non-contingent locks seen so far
	lockedSources  []lockedFeeSource
}

// NewFeeReserve constructs a reserve with the given limit, per-unit price,
// tip percentage, and system loan (the cost-unit allowance extended before
// any fee has actually been locked, per §4.D / §8's loan-rule property).
func NewFeeReserve(costUnitLimit uint64, costUnitPrice Amount, tipPercentage int64, systemLoan uint64) *FeeReserve {
	return &FeeReserve{
		costUnitLimit: costUnitLimit,
		costUnitPrice: costUnitPrice,
		tipPercentage: tipPercentage,
		systemLoan:    systemLoan,
		consumedByTag: make(map[CostReason]uint64),
	}
}

// Consume charges units cost-units for reason. It never itself rejects: the
// loan-rule property (§8) says a transaction may consume beyond its
// declared limit as long as it stays within the system loan and eventually
// repays it via a locked fee; exceeding both the limit and the loan is
// reported by the caller via OutOfCost() after the call, so the kernel can
// decide reject-vs-commit-failure based on whether the loan was ever repaid.
func (r *FeeReserve) Consume(reason CostReason, units uint64) {
	if units == 0 {
		units = costOf(reason)
	}
	r.consumedUnits += units
	r.consumedByTag[reason] += units
}

// OutOfCost reports whether consumption has exceeded both the declared
// limit and the outstanding system loan.
func (r *FeeReserve) OutOfCost() bool {
	allowance := r.costUnitLimit
	if !r.loanRepaid {
		allowance += r.systemLoan
	}
	return r.consumedUnits > allowance
}

// LoanRepaid reports whether a locked fee has covered the system loan yet.
// Per §8's loan-rule property: state mutations before the loan is repaid
// must be discarded on failure (Reject), while mutations after repayment
// settle as CommitFailure with fees still charged.
func (r *FeeReserve) LoanRepaid() bool { return r.loanRepaid }

// loanPrice is the cost-unit value of the outstanding system loan, the
// aggregate non-contingent lock amount required before it counts as repaid.
func (r *FeeReserve) loanPrice() Amount {
	return r.costUnitPrice.Mul(NewAmountFromInt64(int64(r.systemLoan)))
}

// LockFee records a non-contingent fee lock against vault: committed
// regardless of the transaction's outcome. The loan is marked repaid once
// the aggregate of every non-contingent lock seen so far covers its price
// (§4.D); a single small lock_fee call does not by itself repay a larger
// loan.
func (r *FeeReserve) LockFee(vault NodeId, amount Amount) {
	r.lockedSources = append(r.lockedSources, lockedFeeSource{vault: vault, locked: amount})
	sum, _ := r.lockedNonContingent.Add(amount)
	r.lockedNonContingent = sum
	if !r.loanRepaid && r.lockedNonContingent.Cmp(r.loanPrice()) >= 0 {
		r.loanRepaid = true
	}
}

// LockContingentFee records a contingent fee lock: only charged if the
// transaction as a whole commits successfully.
func (r *FeeReserve) LockContingentFee(vault NodeId, amount Amount) {
	r.lockedSources = append(r.lockedSources, lockedFeeSource{vault: vault, locked: amount, contingent: true})
}

// FeeSummary is the result of finalizing a FeeReserve: how much was spent
// overall, the per-reason breakdown, and the per-vault settlement (how much
// of each vault's lock was actually drained, and who gets the refund).
type FeeSummary struct {
	TotalCostUnitsConsumed uint64
	TotalPaid              Amount
	ByReason               map[CostReason]uint64
	VaultDrains            map[NodeId]Amount // vault -> amount drained
	RefundVault            NodeId
	RefundAmount           Amount
}

// Finalize settles the reserve. committed tells it whether the transaction
// as a whole is being committed (contingent locks apply) or not (only
// non-contingent locks apply). Settlement drains locked vaults strictly in
// lock_fee call order; the first vault in that order receives the refund,
// per original_source/radix-engine/tests/fee.rs.
func (r *FeeReserve) Finalize(committed bool) FeeSummary {
	totalPrice := r.costUnitPrice.MulFraction(100+r.tipPercentage, 100, ToNearestEven)
	owed := totalPrice.Mul(NewAmountFromInt64(int64(r.consumedUnits)))

	drains := make(map[NodeId]Amount)
	var firstVault NodeId
	var firstLocked Amount
	haveFirst := false
	remaining := owed

	for _, src := range r.lockedSources {
		if src.contingent && !committed {
			continue
		}
		if !haveFirst {
			firstVault = src.vault
			firstLocked = src.locked
			haveFirst = true
		}
		take := src.locked
		if take.Cmp(remaining) > 0 {
			take = remaining
		}
		prev, ok := drains[src.vault]
		if !ok {
			prev = Amount{}
		}
		sum, _ := prev.Add(take)
		drains[src.vault] = sum
		remaining, _ = remaining.Sub(take)
		if remaining.IsZero() || remaining.IsNegative() {
			break
		}
	}

	refund := Amount{}
	if haveFirst {
		spentFromFirst := drains[firstVault]
		leftoverLock, _ := firstLocked.Sub(spentFromFirst)
		if leftoverLock.Cmp(Amount{}) > 0 {
			refund = leftoverLock
		}
	}

	byReason := make(map[CostReason]uint64, len(r.consumedByTag))
	for k, v := range r.consumedByTag {
		byReason[k] = v
	}

	return FeeSummary{
		TotalCostUnitsConsumed: r.consumedUnits,
		TotalPaid:              owed,
		ByReason:               byReason,
		VaultDrains:            drains,
		RefundVault:            firstVault,
		RefundAmount:           refund,
	}
}

// OrderedLockedVaults exposes lock_fee call order for inspection.
func (r *FeeReserve) OrderedLockedVaults() []NodeId {
	ids := make([]NodeId, 0, len(r.lockedSources))
	for _, s := range r.lockedSources {
		ids = append(ids, s.vault)
	}
	return ids
}

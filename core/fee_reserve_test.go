package core

import "testing"

func vaultID(n byte) NodeId {
	id := NodeId{}
	id[0] = byte(EntityInternalVault)
	id[1] = n
	return id
}

// TestFeeMonotonicity is the §8 property: consuming more cost units never
// decreases the total owed at finalize.
func TestFeeMonotonicity(t *testing.T) {
	price := mustAmount(t, "0.000001")
	r := NewFeeReserve(1_000_000, price, 0, 10_000)
	r.Consume(CostReasonInvoke, 100)
	before := r.Finalize(true).TotalPaid

	r2 := NewFeeReserve(1_000_000, price, 0, 10_000)
	r2.Consume(CostReasonInvoke, 100)
	r2.Consume(CostReasonStateWrite, 50)
	after := r2.Finalize(true).TotalPaid

	if after.Cmp(before) < 0 {
		t.Fatalf("expected monotonic fee growth: before=%s after=%s", before, after)
	}
}

// TestLoanRule models §8's loan-rule property: consumption within the
// system loan succeeds even with no fee locked yet, and OutOfCost triggers
// only once both the limit and the loan are exhausted.
func TestLoanRule(t *testing.T) {
	price := mustAmount(t, "0.01")
	r := NewFeeReserve(100, price, 0, 50)
	r.Consume(CostReasonInvoke, 120) // within limit(100)+loan(50)=150
	if r.OutOfCost() {
		t.Fatalf("expected consumption within limit+loan to not be out of cost")
	}
	r.Consume(CostReasonInvoke, 40) // total 160 > 150
	if !r.OutOfCost() {
		t.Fatalf("expected consumption beyond limit+loan to be out of cost")
	}
	if r.LoanRepaid() {
		t.Fatalf("expected loan not repaid before any lock_fee call")
	}
}

// TestFailedTransferStillPaysFee models scenario S2: a non-contingent
// lock_fee settles even when the transaction as a whole did not commit.
func TestFailedTransferStillPaysFee(t *testing.T) {
	price := mustAmount(t, "1")
	r := NewFeeReserve(1000, price, 0, 0)
	v := vaultID(1)
	r.LockFee(v, mustAmount(t, "500"))
	r.Consume(CostReasonInvoke, 100)

	summary := r.Finalize(false) // transaction failed (CommitFailure), not committed
	if summary.VaultDrains[v].IsZero() {
		t.Fatalf("expected non-contingent lock to still be drained on failure")
	}
}

// TestRejectNoFeeLock models scenario S3: if lock_fee is never called, the
// loan is never repaid, so a kernel error before repayment must be a
// Reject, not a commit-failure.
func TestRejectNoFeeLock(t *testing.T) {
	r := NewFeeReserve(100, mustAmount(t, "1"), 0, 50)
	if r.LoanRepaid() {
		t.Fatalf("expected loan unrepaid with no lock_fee call")
	}
}

// TestContingentFeeSuccess models scenario S6: a contingent lock settles
// only when the transaction commits.
func TestContingentFeeSuccess(t *testing.T) {
	price := mustAmount(t, "1")
	v := vaultID(2)

	rCommitted := NewFeeReserve(1000, price, 0, 0)
	rCommitted.LockContingentFee(v, mustAmount(t, "200"))
	rCommitted.Consume(CostReasonInvoke, 50)
	summary := rCommitted.Finalize(true)
	if summary.VaultDrains[v].IsZero() {
		t.Fatalf("expected contingent lock to settle on commit")
	}

	rFailed := NewFeeReserve(1000, price, 0, 0)
	rFailed.LockContingentFee(v, mustAmount(t, "200"))
	rFailed.Consume(CostReasonInvoke, 50)
	summary2 := rFailed.Finalize(false)
	if !summary2.VaultDrains[v].IsZero() {
		t.Fatalf("expected contingent lock to be skipped when not committed")
	}
}

// TestSettlementRefundsFirstVault pins the original's settlement-order
// behavior: vaults drain in lock_fee call order and the first vault gets
// any leftover refund.
func TestSettlementRefundsFirstVault(t *testing.T) {
	price := mustAmount(t, "1")
	r := NewFeeReserve(1000, price, 0, 0)
	v1, v2 := vaultID(1), vaultID(2)
	r.LockFee(v1, mustAmount(t, "1000"))
	r.LockFee(v2, mustAmount(t, "1000"))
	r.Consume(CostReasonInvoke, 10) // owed = 10

	summary := r.Finalize(true)
	if summary.VaultDrains[v1].Cmp(mustAmount(t, "10")) != 0 {
		t.Fatalf("expected first vault to be drained for the full owed amount, got %s", summary.VaultDrains[v1])
	}
	if amt, ok := summary.VaultDrains[v2]; ok && !amt.IsZero() {
		t.Fatalf("expected second vault untouched, got %s", amt)
	}
	if summary.RefundVault != v1 {
		t.Fatalf("expected refund to go to first locked vault")
	}
}

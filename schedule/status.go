/*
status.go - Payment status resolution for a (commitment, period) cell

PURPOSE:
  Given the resolved term and the payment index, determines whether a
  period was paid, pre-registered, pending, or overdue, what amount to
  show, and whether payment landed on time.

STATUS COMPONENTS:
  HasRecord:  a payment row exists for (commitment, period)
  IsPaid:     the record carries an actual payment date. A record with an
              amount but no date is pre-registered: captured in advance,
              not yet counted as paid.
  Amount:     the recorded amount when present; nil means the caller falls
              back to the term's projected per-period amount
  DueDate:    due day of month inside the target period (clamped)
  PaidOnTime: payment date <= due date, only meaningful when paid

OVERDUE:
  Overdue is a derived display state, never stored. A period is overdue
  iff a term resolves for it, it is not paid, its due date has passed as
  of the given clock, AND the period itself is current or past. A future
  month is never overdue just because its due day number already passed
  in the present month.

SEE ALSO:
  - term.go: the governing term
  - cell.go: folds term + status into the per-cell state machine
*/
package schedule

import "time"

// =============================================================================
// PAYMENT STATUS
// =============================================================================

// PaymentStatus is the settlement view of one (commitment, period) pair.
type PaymentStatus struct {
	HasRecord  bool
	IsPaid     bool
	Amount     *Money
	DueDate    time.Time
	PaidOnTime bool
	Payment    *Payment
}

// ResolvePaymentStatus looks up the payment for (commitmentID, target) and
// derives the settlement facts. A nil payment index or missing record
// degrades to the zero status with only DueDate populated.
func ResolvePaymentStatus(commitmentID CommitmentID, target Period, dueDay int, payments *PaymentIndex) PaymentStatus {
	status := PaymentStatus{DueDate: target.DueDate(dueDay)}

	if payments == nil {
		return status
	}
	record := payments.Lookup(commitmentID, target)
	if record == nil {
		return status
	}

	status.HasRecord = true
	status.Payment = record
	status.Amount = record.Amount
	status.IsPaid = record.PaymentDate != nil
	if status.IsPaid {
		status.PaidOnTime = !record.PaymentDate.After(status.DueDate)
	}
	return status
}

// Overdue reports whether an unpaid due period has lapsed as of the clock.
// Paid periods and future periods are never overdue.
func (s PaymentStatus) Overdue(target Period, asOf time.Time) bool {
	if s.IsPaid {
		return false
	}
	if target.After(PeriodOf(asOf)) {
		return false
	}
	return asOf.After(s.DueDate)
}

// =============================================================================
// PAYMENT INDEX - (commitment, period) keyed lookup
// =============================================================================

type paymentKey struct {
	CommitmentID CommitmentID
	Period       string
}

// PaymentIndex provides O(1) payment lookup by (commitment, period). It is
// built once per snapshot; at most one payment exists per key, mirroring
// the store's uniqueness constraint.
type PaymentIndex struct {
	byKey        map[paymentKey]*Payment
	byCommitment map[CommitmentID][]*Payment
}

// NewPaymentIndex builds an index over a payment slice. Later duplicates of
// a (commitment, period) key are ignored: the store constraint makes them
// impossible, and resolution must not amplify bad data.
func NewPaymentIndex(payments []Payment) *PaymentIndex {
	idx := &PaymentIndex{
		byKey:        make(map[paymentKey]*Payment, len(payments)),
		byCommitment: make(map[CommitmentID][]*Payment),
	}
	for i := range payments {
		p := &payments[i]
		k := paymentKey{CommitmentID: p.CommitmentID, Period: p.Period.Key()}
		if _, ok := idx.byKey[k]; ok {
			continue
		}
		idx.byKey[k] = p
		idx.byCommitment[p.CommitmentID] = append(idx.byCommitment[p.CommitmentID], p)
	}
	return idx
}

// Lookup returns the payment for (commitment, period), or nil.
func (idx *PaymentIndex) Lookup(commitmentID CommitmentID, period Period) *Payment {
	return idx.byKey[paymentKey{CommitmentID: commitmentID, Period: period.Key()}]
}

// ByCommitment returns all indexed payments for a commitment.
func (idx *PaymentIndex) ByCommitment(commitmentID CommitmentID) []*Payment {
	return idx.byCommitment[commitmentID]
}

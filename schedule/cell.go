/*
cell.go - Per (commitment, period) cell state machine

PURPOSE:
  Folds term resolution and payment status into the single display state a
  grid cell (or list row, or export column) renders. The stored states per
  period are NoTerm -> Unpaid -> PreRegistered -> Paid; Overdue and Pending
  are display labels derived from the clock on every read, and Orphan flags
  a payment whose period no term governs.

STATE RULES:
  NoTerm:        no term resolves and no payment exists (the gap);
                 rendered as an empty cell, never an error
  Orphan:        a payment exists but no term resolves, e.g. after a
                 retroactive term edit; flagged visibly, excluded from
                 normal totals - it signals a data inconsistency
  Paid:          payment record with an actual payment date
  PreRegistered: payment record without a date; an intentional advance
                 entry, so it is NOT dimmed as "future" and NOT overdue
                 even when its period lies ahead
  Overdue:       term resolves, unpaid, due date passed, period not in
                 the future
  Pending:       term resolves, unpaid, not (yet) overdue

SEE ALSO:
  - snapshot.go: evaluates cells against a consistent data snapshot
  - aggregate.go: folds cells into month totals
*/
package schedule

import "time"

// =============================================================================
// CELL STATE
// =============================================================================

type CellState string

const (
	CellNoTerm        CellState = "no_term"
	CellPending       CellState = "pending"
	CellPreRegistered CellState = "pre_registered"
	CellPaid          CellState = "paid"
	CellOverdue       CellState = "overdue"
	CellOrphan        CellState = "orphan"
)

// Cell is the fully resolved state of one (commitment, period) pair.
type Cell struct {
	CommitmentID CommitmentID
	Period       Period
	State        CellState

	// Term is the governing term, nil for NoTerm and Orphan cells.
	Term *Term

	// Status carries the settlement facts (due date, paid-on-time, the
	// payment record itself).
	Status PaymentStatus

	// Amount is what the cell displays: the recorded amount when present,
	// else the term's projected per-period amount. Zero-valued for NoTerm.
	Amount Money

	// Upcoming marks cells in future periods that should render dimmed.
	// Pre-registered advance entries are deliberately excluded.
	Upcoming bool
}

// ResolveCell computes the cell state for one commitment at one period.
// terms is the commitment's full term history; payments the snapshot-wide
// index; asOf the clock that derives Overdue/Upcoming.
func ResolveCell(commitmentID CommitmentID, terms []Term, payments *PaymentIndex, target Period, asOf time.Time) Cell {
	cell := Cell{CommitmentID: commitmentID, Period: target}

	term := ResolveTerm(terms, target)
	dueDay := 1
	if term != nil {
		dueDay = term.DueDay
	}
	status := ResolvePaymentStatus(commitmentID, target, dueDay, payments)
	cell.Status = status

	if term == nil {
		if status.HasRecord {
			cell.State = CellOrphan
			if status.Amount != nil {
				cell.Amount = *status.Amount
			}
			return cell
		}
		cell.State = CellNoTerm
		return cell
	}

	cell.Term = term
	cell.Amount = term.ProjectedAmount()
	if status.Amount != nil {
		cell.Amount = *status.Amount
	}

	switch {
	case status.IsPaid:
		cell.State = CellPaid
	case status.HasRecord:
		cell.State = CellPreRegistered
	case status.Overdue(target, asOf):
		cell.State = CellOverdue
	default:
		cell.State = CellPending
		cell.Upcoming = target.After(PeriodOf(asOf))
	}

	return cell
}

/*
aggregate.go - Month totals

PURPOSE:
  Folds the cells of one period into the five footer buckets. The fold is a
  restatement of per-cell state, never a second opinion: a cell counted as
  Paid here is exactly a cell in the paid state there.

BUCKETS:
  Committed - projected amounts of all expense cells with a governing term
  Paid      - recorded amounts of paid expense cells (fallback projected)
  Pending   - unpaid, not-yet-overdue expense cells (incl. pre-registered)
  Overdue   - unpaid expense cells past their due date
  Income    - projected amounts of income cells with a governing term

INVARIANTS:
  Committed = Paid + Pending + Overdue whenever recorded amounts match the
  projections; orphan payments and archived commitments contribute to no
  bucket.

SEE ALSO:
  - cell.go: the per-cell states this fold restates
  - snapshot.go: MonthTotals is evaluated over a snapshot
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTH TOTALS
// =============================================================================

// MonthTotals is the footer row for one period.
type MonthTotals struct {
	Period    Period          `json:"period"`
	Committed decimal.Decimal `json:"committed"`
	Paid      decimal.Decimal `json:"paid"`
	Pending   decimal.Decimal `json:"pending"`
	Overdue   decimal.Decimal `json:"overdue"`
	Income    decimal.Decimal `json:"income"`

	// Orphans counts excluded orphan-payment cells so callers can flag the
	// month without re-walking it.
	Orphans int `json:"orphans,omitempty"`
}

// MonthTotals folds all active commitments for one period.
func (s *Snapshot) MonthTotals(target Period, asOf time.Time) MonthTotals {
	totals := MonthTotals{
		Period:    target,
		Committed: decimal.Zero,
		Paid:      decimal.Zero,
		Pending:   decimal.Zero,
		Overdue:   decimal.Zero,
		Income:    decimal.Zero,
	}
	for _, c := range s.commitments {
		if c.Archived {
			continue
		}
		cell := s.Cell(c.ID, target, asOf)
		switch cell.State {
		case CellNoTerm:
			continue
		case CellOrphan:
			totals.Orphans++
			continue
		}

		projected := cell.Amount.Value
		if cell.Term != nil {
			projected = cell.Term.ProjectedAmount().Value
		}

		if c.Flow == FlowIncome {
			totals.Income = totals.Income.Add(projected)
			continue
		}

		// Committed is gross projection: payment state never changes it.
		totals.Committed = totals.Committed.Add(projected)
		switch cell.State {
		case CellPaid:
			totals.Paid = totals.Paid.Add(cell.Amount.Value)
		case CellOverdue:
			totals.Overdue = totals.Overdue.Add(cell.Amount.Value)
		default:
			// Pending and pre-registered both await settlement.
			totals.Pending = totals.Pending.Add(cell.Amount.Value)
		}
	}
	return totals
}

// TotalsRange evaluates month totals for every period in [from, to].
func (s *Snapshot) TotalsRange(from, to Period, asOf time.Time) []MonthTotals {
	if to.Before(from) {
		return nil
	}
	out := make([]MonthTotals, 0, MonthsBetween(from, to)+1)
	for p := from; p.BeforeOrEqual(to); p = p.Next() {
		out = append(out, s.MonthTotals(p, asOf))
	}
	return out
}

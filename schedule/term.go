/*
term.go - Term resolution: which term governs a period

PURPOSE:
  Answers the single question every render surface needs answered first:
  "for commitment X in month Y, which term version applies, if any?"
  This is the one source of truth for that rule; nothing else in the
  system re-derives it.

RESOLUTION RULES:
  1. The period must fall inside the term's [EffectiveFrom, EffectiveUntil]
     window, inclusive on both ends (nil until = open-ended).
  2. If several terms match (should not happen under the non-overlap
     invariant, but data can drift), the highest version wins.
  3. If the term has a finite installment count, the installment index
     (months since EffectiveFrom) must be in [0, count). The count is a
     HARDER constraint than the date window: a period nominally inside the
     window but past the last installment resolves to no term. This is how
     a disagreement between an end date and an installment count settles.
  4. Non-monthly frequencies additionally require the index to align:
     BIMONTHLY wants index % 2 == 0, QUARTERLY % 3, SEMIANNUALLY % 6,
     ANNUALLY % 12, ONCE exactly index 0. Off-cycle months inside the
     window resolve to no term for that month.

  A nil result is the "gap" state. It is distinct from an orphan payment
  (payment present, no governing term) and from an archived commitment.

SEE ALSO:
  - period.go: window and index arithmetic
  - status.go: consumes the resolved term for payment status
*/
package schedule

import "github.com/shopspring/decimal"

// =============================================================================
// TERM RESOLVER
// =============================================================================

// ResolveTerm returns the term governing the target period, or nil when no
// term applies (the gap state). The input slice does not need to be sorted.
func ResolveTerm(terms []Term, target Period) *Term {
	var match *Term
	for i := range terms {
		t := &terms[i]
		if !target.Within(t.EffectiveFrom, t.EffectiveUntil) {
			continue
		}
		if match == nil || t.Version > match.Version {
			match = t
		}
	}
	if match == nil {
		return nil
	}

	index := MonthsBetween(match.EffectiveFrom, target)

	// Installment count cuts off the window regardless of EffectiveUntil.
	if match.InstallmentsCount != nil {
		if index < 0 || index >= *match.InstallmentsCount {
			return nil
		}
	}

	if !match.Frequency.Aligned(index) {
		return nil
	}

	return match
}

// InstallmentIndex returns the zero-based installment number of a period
// within the term (months since EffectiveFrom). Negative for periods before
// the term starts.
func (t Term) InstallmentIndex(target Period) int {
	return MonthsBetween(t.EffectiveFrom, target)
}

// ProjectedAmount is the per-period amount the term puts on a due period.
// With DividedAmount and more than one installment, the term's total is
// split evenly across the installments; otherwise the full amount repeats
// every due period.
func (t Term) ProjectedAmount() Money {
	if t.DividedAmount && t.InstallmentsCount != nil && *t.InstallmentsCount > 1 {
		return t.Amount.Div(decimal.NewFromInt(int64(*t.InstallmentsCount)))
	}
	return t.Amount
}

// Overlaps reports whether two effect windows intersect. Open ends (nil
// EffectiveUntil) extend forever. Stores use this to keep term versions of
// one commitment disjoint.
func (t Term) Overlaps(other Term) bool {
	if t.EffectiveUntil != nil && other.EffectiveFrom.After(*t.EffectiveUntil) {
		return false
	}
	if other.EffectiveUntil != nil && t.EffectiveFrom.After(*other.EffectiveUntil) {
		return false
	}
	return true
}

// LastInstallmentPeriod returns the final due period implied by the
// installment count and frequency, and whether one exists. This is the
// value the store writes back into EffectiveUntil when a counted term is
// saved, keeping the stored window consistent with the count.
func (t Term) LastInstallmentPeriod() (Period, bool) {
	if t.InstallmentsCount == nil || *t.InstallmentsCount < 1 {
		return Period{}, false
	}
	if t.Frequency == FreqOnce {
		return t.EffectiveFrom, true
	}
	stride := t.Frequency.IntervalMonths()
	if stride < 1 {
		stride = 1
	}
	// Installment indexes run 0, stride, 2*stride, ... but the count caps
	// the raw month index, not the number of due periods. The last covered
	// month is therefore count-1 months after the start.
	return t.EffectiveFrom.AddMonths(*t.InstallmentsCount - 1), true
}

/*
snapshot.go - Consistent in-memory view for resolution

PURPOSE:
  Resolution is a pure fold over commitments, terms, and payments. The
  Snapshot is the copy-on-read boundary that makes it one: it takes the
  three record sets once, indexes them, and no mutation touches them while
  cells and totals are computed. Every read surface builds its answers
  from one Snapshot per request/render.

STRUCTURE:
  - commitments, ordered as loaded, plus an ID map
  - terms grouped per commitment (resolution sorts by version internally)
  - payments indexed by (commitment, period)

  Recomputation is cheap - commitment count x visible months, typically a
  few thousand cell evaluations - so there is no memoization beyond the
  index itself.

SEE ALSO:
  - cell.go: per-cell evaluation
  - aggregate.go: month totals over a snapshot
  - store.go: LoadSnapshot bridges stores to snapshots
*/
package schedule

import (
	"context"
	"time"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

type Snapshot struct {
	commitments []Commitment
	byID        map[CommitmentID]*Commitment
	terms       map[CommitmentID][]Term
	payments    *PaymentIndex
}

// NewSnapshot builds a snapshot from record slices. The inputs are copied;
// callers may mutate their slices afterwards without affecting resolution.
func NewSnapshot(commitments []Commitment, terms []Term, payments []Payment) *Snapshot {
	s := &Snapshot{
		commitments: make([]Commitment, len(commitments)),
		byID:        make(map[CommitmentID]*Commitment, len(commitments)),
		terms:       make(map[CommitmentID][]Term),
	}
	copy(s.commitments, commitments)
	for i := range s.commitments {
		c := &s.commitments[i]
		s.byID[c.ID] = c
	}
	for _, t := range terms {
		s.terms[t.CommitmentID] = append(s.terms[t.CommitmentID], t)
	}

	copied := make([]Payment, len(payments))
	copy(copied, payments)
	s.payments = NewPaymentIndex(copied)
	return s
}

// Commitments returns all commitments in the snapshot.
func (s *Snapshot) Commitments() []Commitment { return s.commitments }

// ActiveCommitments returns the non-archived commitments.
func (s *Snapshot) ActiveCommitments() []Commitment {
	var active []Commitment
	for _, c := range s.commitments {
		if !c.Archived {
			active = append(active, c)
		}
	}
	return active
}

// Commitment returns a commitment by ID, or nil.
func (s *Snapshot) Commitment(id CommitmentID) *Commitment { return s.byID[id] }

// TermsFor returns the full term history of a commitment.
func (s *Snapshot) TermsFor(id CommitmentID) []Term { return s.terms[id] }

// Payments exposes the payment index.
func (s *Snapshot) Payments() *PaymentIndex { return s.payments }

// ResolveTermFor resolves the governing term of (commitment, period).
func (s *Snapshot) ResolveTermFor(id CommitmentID, target Period) *Term {
	return ResolveTerm(s.terms[id], target)
}

// Cell evaluates the state of one (commitment, period) pair.
func (s *Snapshot) Cell(id CommitmentID, target Period, asOf time.Time) Cell {
	return ResolveCell(id, s.terms[id], s.payments, target, asOf)
}

// Row evaluates one commitment across a contiguous period range, inclusive.
// This is a grid row / export line.
func (s *Snapshot) Row(id CommitmentID, from, to Period, asOf time.Time) []Cell {
	if to.Before(from) {
		return nil
	}
	cells := make([]Cell, 0, MonthsBetween(from, to)+1)
	for p := from; p.BeforeOrEqual(to); p = p.Next() {
		cells = append(cells, s.Cell(id, p, asOf))
	}
	return cells
}

// Grid evaluates every active commitment across a period range. The outer
// slice is ordered like the snapshot's commitments.
func (s *Snapshot) Grid(from, to Period, asOf time.Time) [][]Cell {
	active := s.ActiveCommitments()
	rows := make([][]Cell, 0, len(active))
	for _, c := range active {
		rows = append(rows, s.Row(c.ID, from, to, asOf))
	}
	return rows
}

// Anomalies returns all orphan-payment cells in a period range: payments
// whose period no term governs. These indicate retroactive term edits or
// imports gone wrong and must surface visibly instead of summing silently.
func (s *Snapshot) Anomalies(from, to Period, asOf time.Time) []Cell {
	var orphans []Cell
	for _, c := range s.commitments {
		for _, p := range s.payments.ByCommitment(c.ID) {
			if p.Period.Before(from) || p.Period.After(to) {
				continue
			}
			cell := s.Cell(c.ID, p.Period, asOf)
			if cell.State == CellOrphan {
				orphans = append(orphans, cell)
			}
		}
	}
	return orphans
}

// =============================================================================
// STORE BRIDGE
// =============================================================================

// SnapshotSource is the read surface a snapshot is loaded from.
type SnapshotSource interface {
	ListCommitments(ctx context.Context, includeArchived bool) ([]Commitment, error)
	ListTerms(ctx context.Context) ([]Term, error)
	ListPayments(ctx context.Context) ([]Payment, error)
}

// LoadSnapshot reads all three record sets from a store and builds the
// snapshot. This is the only suspension point around resolution; everything
// after it is synchronous and pure.
func LoadSnapshot(ctx context.Context, src SnapshotSource) (*Snapshot, error) {
	commitments, err := src.ListCommitments(ctx, true)
	if err != nil {
		return nil, err
	}
	terms, err := src.ListTerms(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := src.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(commitments, terms, payments), nil
}

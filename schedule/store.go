/*
store.go - Persistence interfaces

PURPOSE:
  The engine is persistence-agnostic. These interfaces are satisfied by
  store/memory (tests, dry runs) and store/sqlite (the server). All write
  paths enforce the same invariants regardless of backend:

  - at most one payment per (commitment, period)
  - term versions for one commitment never overlap in effect
  - closed terms are immutable

SEE ALSO:
  - snapshot.go: LoadSnapshot reads through SnapshotSource
  - store/memory.go, ../store/sqlite: implementations
*/
package schedule

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

type CommitmentStore interface {
	CreateCommitment(ctx context.Context, c *Commitment) error
	GetCommitment(ctx context.Context, id CommitmentID) (*Commitment, error)
	UpdateCommitment(ctx context.Context, c *Commitment) error
	// ArchiveCommitment hides a commitment from grids and totals without
	// destroying its history.
	ArchiveCommitment(ctx context.Context, id CommitmentID, archived bool) error
	ListCommitments(ctx context.Context, includeArchived bool) ([]Commitment, error)
}

type TermStore interface {
	// CreateTerm appends a new term version. An open previous version of the
	// same commitment is closed at the period before the new version's
	// EffectiveFrom. Overlapping a closed window fails with ErrTermOverlap.
	CreateTerm(ctx context.Context, t *Term) error
	GetTerm(ctx context.Context, id TermID) (*Term, error)
	// CloseTerm sets EffectiveUntil on an open term. Closing an already
	// closed term fails with ErrTermClosed.
	CloseTerm(ctx context.Context, id TermID, until Period) error
	ListTermsFor(ctx context.Context, id CommitmentID) ([]Term, error)
	ListTerms(ctx context.Context) ([]Term, error)
}

type PaymentStore interface {
	// CreatePayment records a payment. A second record for the same
	// (commitment, period) fails with ErrDuplicatePeriodPayment.
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	// UpdatePayment settles or amends a record, e.g. filling PaymentDate on
	// a pre-registered payment.
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, id PaymentID) error
	ListPaymentsFor(ctx context.Context, id CommitmentID) ([]Payment, error)
	ListPayments(ctx context.Context) ([]Payment, error)
}

// Store is the full persistence surface the server runs on.
type Store interface {
	CommitmentStore
	TermStore
	PaymentStore
	Close() error
}

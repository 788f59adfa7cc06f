/*
Package schedule provides the commitment schedule resolution engine.

PURPOSE:
  This package contains the pure computation core of the ledger: given an
  in-memory snapshot of commitments, their versioned terms, and recorded
  payments, it answers "what is the state of commitment X in month Y?" and
  folds those answers into monthly totals. Every render surface (grid,
  list, KPI cards, exports) consumes this one engine instead of carrying
  its own copy of the rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: an amount with a currency, decimal-backed
  - Commitment: a recurring or one-off financial obligation
  - Term: a versioned, time-bounded set of conditions for a commitment
  - Payment: a record that one period of one commitment was settled

DESIGN PRINCIPLES:
  1. Purity: resolution and aggregation are side-effect free and take an
     explicit "as of" clock; derived states are never persisted
  2. Precision: uses decimal.Decimal to avoid floating-point errors
  3. Degradation: malformed input degrades to a defined fallback (gap,
     due day 1, zero amount) rather than an error
  4. History: terms are closed, never deleted; payments are never
     overwritten by projections

SEE ALSO:
  - period.go: canonical month keys and window arithmetic
  - term.go: which term governs a period
  - status.go: paid/pending/overdue resolution
  - aggregate.go: monthly totals
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Amount with currency
// =============================================================================

type Currency string

const (
	CurrencyARS Currency = "ARS"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewMoney(value float64, currency Currency) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewMoneyFromInt(value int, currency Currency) Money {
	return Money{Value: decimal.NewFromInt(int64(value)), Currency: currency}
}

// MustParseDecimal parses a decimal string, degrading to zero on failure.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Zero() Money                 { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(b Money) Money           { return Money{Value: m.Value.Add(b.Value), Currency: m.Currency} }
func (m Money) Sub(b Money) Money           { return Money{Value: m.Value.Sub(b.Value), Currency: m.Currency} }
func (m Money) Div(s decimal.Decimal) Money { return Money{Value: m.Value.Div(s), Currency: m.Currency} }
func (m Money) Neg() Money                  { return Money{Value: m.Value.Neg(), Currency: m.Currency} }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CommitmentID string
type TermID string
type PaymentID string

// =============================================================================
// COMMITMENT - A recurring or one-off financial obligation
// =============================================================================

// Flow is the direction of money for a commitment.
type Flow string

const (
	FlowExpense Flow = "expense"
	FlowIncome  Flow = "income"
)

// Commitment is an obligation (rent, salary, subscription) whose conditions
// live in versioned terms. Identity is immutable; metadata is mutable;
// archiving hides it from active views without losing history.
type Commitment struct {
	ID         CommitmentID
	Name       string
	Flow       Flow
	Important  bool
	CategoryID string
	PairedWith *CommitmentID // optional link to a counterpart commitment
	Notes      string
	Archived   bool
	CreatedAt  time.Time
}

// =============================================================================
// FREQUENCY - How often a term produces a due period
// =============================================================================

type Frequency string

const (
	FreqMonthly      Frequency = "MONTHLY"
	FreqBimonthly    Frequency = "BIMONTHLY"
	FreqQuarterly    Frequency = "QUARTERLY"
	FreqSemiannually Frequency = "SEMIANNUALLY"
	FreqAnnually     Frequency = "ANNUALLY"
	FreqOnce         Frequency = "ONCE"
)

// IntervalMonths returns the month stride between due periods. ONCE returns
// 0: it has no stride, only the start period itself is due.
func (f Frequency) IntervalMonths() int {
	switch f {
	case FreqMonthly:
		return 1
	case FreqBimonthly:
		return 2
	case FreqQuarterly:
		return 3
	case FreqSemiannually:
		return 6
	case FreqAnnually:
		return 12
	default:
		return 0
	}
}

// Aligned reports whether the installment index (months since the term
// start) lands on a due period for this frequency.
func (f Frequency) Aligned(index int) bool {
	if f == FreqOnce {
		return index == 0
	}
	interval := f.IntervalMonths()
	if interval <= 1 {
		// Unknown frequencies degrade to monthly: every period is due.
		return true
	}
	return index%interval == 0
}

// Valid reports whether the frequency is one of the known values.
func (f Frequency) Valid() bool {
	switch f {
	case FreqMonthly, FreqBimonthly, FreqQuarterly, FreqSemiannually, FreqAnnually, FreqOnce:
		return true
	}
	return false
}

// =============================================================================
// TERM - Versioned conditions attached to a commitment
// =============================================================================

// Term is one version of a commitment's conditions. Within a commitment,
// term windows must not overlap and versions are totally ordered. Terms are
// closed (end-dated), never deleted, so history stays reconstructible; once
// superseded a term is immutable except for the count-derived EffectiveUntil
// recompute tied to InstallmentsCount and Frequency.
type Term struct {
	ID           TermID
	CommitmentID CommitmentID
	Version      int
	Amount       Money
	Frequency    Frequency
	DueDay       int // day of month a due period's payment falls due

	// InstallmentsCount caps the number of due periods; nil means an
	// open-ended recurrence. DividedAmount splits Amount across the
	// installments instead of repeating it each period.
	InstallmentsCount *int
	DividedAmount     bool

	// Validity window. EffectiveUntil == nil means open-ended; the month of
	// EffectiveUntil is itself still covered.
	EffectiveFrom  Period
	EffectiveUntil *Period

	CreatedAt time.Time
}

// Open reports whether the term is still active as of a date: no end period,
// or an end period whose month has not yet finished.
func (t Term) Open(asOf time.Time) bool {
	return t.EffectiveUntil == nil || t.EffectiveUntil.AfterOrEqual(PeriodOf(asOf))
}

// =============================================================================
// PAYMENT - One period settled (or pre-registered) for a commitment
// =============================================================================

// Payment records that a specific period of a commitment was settled. At
// most one payment exists per (commitment, period). A payment with no
// PaymentDate is a pre-registered entry: captured, not yet counted as paid.
// Payments are edited to correct amount or date, never silently overwritten
// by projection logic.
type Payment struct {
	ID           PaymentID
	CommitmentID CommitmentID
	Period       Period

	// PaymentDate is when the payment actually happened; it may precede or
	// follow the period it discharges. Nil = pre-registered, unsettled.
	PaymentDate *time.Time

	// Amount is the recorded amount, which may differ from the term's
	// projected per-period amount. Nil = no amount captured yet; display
	// falls back to the projection.
	Amount *Money

	// FX snapshot at recording time, for foreign-currency payments.
	ExchangeRate *decimal.Decimal

	CreatedAt time.Time
}

// Settled reports whether the payment counts as paid.
func (p Payment) Settled() bool { return p.PaymentDate != nil }

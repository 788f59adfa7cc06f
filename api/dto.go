/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ../schedule/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finansheet/commitment-engine/schedule"
)

// =============================================================================
// COMMITMENTS
// =============================================================================

// CommitmentDTO represents a commitment in API responses.
type CommitmentDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Flow       string  `json:"flow"`
	Important  bool    `json:"important"`
	CategoryID string  `json:"category_id,omitempty"`
	PairedWith *string `json:"paired_with,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	Archived   bool    `json:"archived"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// CreateCommitmentRequest is the request to create a commitment.
type CreateCommitmentRequest struct {
	Name       string  `json:"name"`
	Flow       string  `json:"flow"`
	Important  bool    `json:"important"`
	CategoryID string  `json:"category_id"`
	PairedWith *string `json:"paired_with"`
	Notes      string  `json:"notes"`
}

// UpdateCommitmentRequest is the request to update commitment metadata.
type UpdateCommitmentRequest struct {
	Name       string  `json:"name"`
	Important  bool    `json:"important"`
	CategoryID string  `json:"category_id"`
	PairedWith *string `json:"paired_with"`
	Notes      string  `json:"notes"`
}

// =============================================================================
// TERMS
// =============================================================================

// TermDTO represents one term version in API responses.
type TermDTO struct {
	ID                string          `json:"id"`
	CommitmentID      string          `json:"commitment_id"`
	Version           int             `json:"version"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Frequency         string          `json:"frequency"`
	DueDay            int             `json:"due_day"`
	InstallmentsCount *int            `json:"installments_count,omitempty"`
	DividedAmount     bool            `json:"divided_amount"`
	EffectiveFrom     string          `json:"effective_from"`
	EffectiveUntil    *string         `json:"effective_until,omitempty"`
	CreatedAt         string          `json:"created_at,omitempty"`
}

// CreateTermRequest is the request to append a new term version.
type CreateTermRequest struct {
	Amount            string  `json:"amount"`
	Currency          string  `json:"currency"`
	Frequency         string  `json:"frequency"`
	DueDay            int     `json:"due_day"`
	InstallmentsCount *int    `json:"installments_count"`
	DividedAmount     bool    `json:"divided_amount"`
	EffectiveFrom     string  `json:"effective_from"`
	EffectiveUntil    *string `json:"effective_until"`
}

// CloseTermRequest ends an open term at a given period (inclusive).
type CloseTermRequest struct {
	Until string `json:"until"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a payment record in API responses.
type PaymentDTO struct {
	ID           string  `json:"id"`
	CommitmentID string  `json:"commitment_id"`
	Period       string  `json:"period"`
	PaymentDate  *string `json:"payment_date,omitempty"`
	Amount       *string `json:"amount,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	ExchangeRate *string `json:"exchange_rate,omitempty"`
	Settled      bool    `json:"settled"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// CreatePaymentRequest records or pre-registers a payment. Leaving
// payment_date empty pre-registers: the record exists but does not count
// as paid until a date is set.
type CreatePaymentRequest struct {
	CommitmentID string  `json:"commitment_id"`
	Period       string  `json:"period"`
	PaymentDate  *string `json:"payment_date"`
	Amount       *string `json:"amount"`
	Currency     *string `json:"currency"`
	ExchangeRate *string `json:"exchange_rate"`
}

// UpdatePaymentRequest amends an existing record, typically settling a
// pre-registered payment by filling payment_date.
type UpdatePaymentRequest struct {
	Period       *string `json:"period"`
	PaymentDate  *string `json:"payment_date"`
	Amount       *string `json:"amount"`
	Currency     *string `json:"currency"`
	ExchangeRate *string `json:"exchange_rate"`
}

// =============================================================================
// GRID / TOTALS
// =============================================================================

// CellDTO is one (commitment, period) cell of the grid.
type CellDTO struct {
	CommitmentID string          `json:"commitment_id"`
	Period       string          `json:"period"`
	State        string          `json:"state"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency,omitempty"`
	DueDate      *string         `json:"due_date,omitempty"`
	PaymentID    *string         `json:"payment_id,omitempty"`
	Upcoming     bool            `json:"upcoming,omitempty"`
}

// RowDTO is one commitment's cells across the requested range.
type RowDTO struct {
	Commitment CommitmentDTO `json:"commitment"`
	Cells      []CellDTO     `json:"cells"`
}

// MonthTotalsDTO is the footer row for one period.
type MonthTotalsDTO struct {
	Period    string          `json:"period"`
	Committed decimal.Decimal `json:"committed"`
	Paid      decimal.Decimal `json:"paid"`
	Pending   decimal.Decimal `json:"pending"`
	Overdue   decimal.Decimal `json:"overdue"`
	Income    decimal.Decimal `json:"income"`
	Orphans   int             `json:"orphans,omitempty"`
}

// GridResponse is the full grid payload: one row per active commitment
// plus per-month totals.
type GridResponse struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	AsOf   string           `json:"as_of"`
	Rows   []RowDTO         `json:"rows"`
	Totals []MonthTotalsDTO `json:"totals"`
}

// MonthResponse is the single-month payload.
type MonthResponse struct {
	Totals MonthTotalsDTO `json:"totals"`
	Cells  []CellDTO      `json:"cells"`
}

// AnomalyDTO flags a payment whose period no term governs.
type AnomalyDTO struct {
	CommitmentID string `json:"commitment_id"`
	Commitment   string `json:"commitment_name,omitempty"`
	Period       string `json:"period"`
	PaymentID    string `json:"payment_id"`
	Amount       string `json:"amount,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCommitmentDTO(c schedule.Commitment) CommitmentDTO {
	dto := CommitmentDTO{
		ID:         string(c.ID),
		Name:       c.Name,
		Flow:       string(c.Flow),
		Important:  c.Important,
		CategoryID: c.CategoryID,
		Notes:      c.Notes,
		Archived:   c.Archived,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
	if c.PairedWith != nil {
		s := string(*c.PairedWith)
		dto.PairedWith = &s
	}
	return dto
}

func toTermDTO(t schedule.Term) TermDTO {
	dto := TermDTO{
		ID:                string(t.ID),
		CommitmentID:      string(t.CommitmentID),
		Version:           t.Version,
		Amount:            t.Amount.Value,
		Currency:          string(t.Amount.Currency),
		Frequency:         string(t.Frequency),
		DueDay:            t.DueDay,
		InstallmentsCount: t.InstallmentsCount,
		DividedAmount:     t.DividedAmount,
		EffectiveFrom:     t.EffectiveFrom.String(),
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
	}
	if t.EffectiveUntil != nil {
		s := t.EffectiveUntil.String()
		dto.EffectiveUntil = &s
	}
	return dto
}

func toPaymentDTO(p schedule.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:           string(p.ID),
		CommitmentID: string(p.CommitmentID),
		Period:       p.Period.String(),
		Settled:      p.Settled(),
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
	if p.PaymentDate != nil {
		s := p.PaymentDate.Format("2006-01-02")
		dto.PaymentDate = &s
	}
	if p.Amount != nil {
		v := p.Amount.Value.String()
		c := string(p.Amount.Currency)
		dto.Amount = &v
		dto.Currency = &c
	}
	if p.ExchangeRate != nil {
		r := p.ExchangeRate.String()
		dto.ExchangeRate = &r
	}
	return dto
}

func toCellDTO(c schedule.Cell) CellDTO {
	dto := CellDTO{
		CommitmentID: string(c.CommitmentID),
		Period:       c.Period.String(),
		State:        string(c.State),
		Amount:       c.Amount.Value,
		Currency:     string(c.Amount.Currency),
		Upcoming:     c.Upcoming,
	}
	if !c.Status.DueDate.IsZero() {
		s := c.Status.DueDate.Format("2006-01-02")
		dto.DueDate = &s
	}
	if c.Status.Payment != nil {
		id := string(c.Status.Payment.ID)
		dto.PaymentID = &id
	}
	return dto
}

func toMonthTotalsDTO(t schedule.MonthTotals) MonthTotalsDTO {
	return MonthTotalsDTO{
		Period:    t.Period.String(),
		Committed: t.Committed,
		Paid:      t.Paid,
		Pending:   t.Pending,
		Overdue:   t.Overdue,
		Income:    t.Income,
		Orphans:   t.Orphans,
	}
}

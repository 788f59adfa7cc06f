/*
handlers.go - HTTP API handlers for the commitment ledger

PURPOSE:
  Exposes the schedule engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Commitments:
    GET    /api/commitments                 List commitments
    POST   /api/commitments                 Create commitment
    GET    /api/commitments/{id}            Get commitment
    PUT    /api/commitments/{id}            Update metadata
    POST   /api/commitments/{id}/archive    Hide from grid, keep history
    POST   /api/commitments/{id}/restore    Undo archive
    GET    /api/commitments/{id}/terms      Term history
    POST   /api/commitments/{id}/terms      Append term version
    GET    /api/commitments/{id}/payments   Payment history

  Terms:
    GET    /api/terms/{id}                  Get term
    POST   /api/terms/{id}/close            End-date an open term

  Payments:
    POST   /api/payments                    Record or pre-register a payment
    GET    /api/payments/{id}               Get payment
    PUT    /api/payments/{id}               Amend or settle
    DELETE /api/payments/{id}               Remove a record

  Views:
    GET    /api/grid?from=&to=&as_of=       Grid rows + per-month totals
    GET    /api/months/{year}/{month}       One month's totals and cells
    GET    /api/anomalies?from=&to=         Orphan payments
    GET    /api/export/csv?year=            Year schedule as CSV

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Load a snapshot / call the store
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate period payment, overlapping term)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: CSV rendering
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finansheet/commitment-engine/internal/logging"
	"github.com/finansheet/commitment-engine/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store schedule.Store
	Log   *logrus.Logger

	// now is swapped in tests to pin "today".
	now func() time.Time
}

// NewHandler creates a new handler with the given store.
func NewHandler(store schedule.Store, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Store: store,
		Log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// COMMITMENT ENDPOINTS
// =============================================================================

// ListCommitments returns all commitments.
// GET /api/commitments?include_archived=true
func (h *Handler) ListCommitments(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	commitments, err := h.Store.ListCommitments(r.Context(), includeArchived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commitments", err)
		return
	}

	dtos := make([]CommitmentDTO, 0, len(commitments))
	for _, c := range commitments {
		dtos = append(dtos, toCommitmentDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCommitment creates a new commitment.
// POST /api/commitments
func (h *Handler) CreateCommitment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	flow := schedule.Flow(req.Flow)
	if flow == "" {
		flow = schedule.FlowExpense
	}
	if flow != schedule.FlowExpense && flow != schedule.FlowIncome {
		writeError(w, http.StatusBadRequest, "Flow must be expense or income", nil)
		return
	}

	c := schedule.Commitment{
		Name:       req.Name,
		Flow:       flow,
		Important:  req.Important,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	}
	if req.PairedWith != nil {
		id := schedule.CommitmentID(*req.PairedWith)
		c.PairedWith = &id
	}

	if err := h.Store.CreateCommitment(r.Context(), &c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create commitment", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		logging.FieldCommitment: c.ID,
	}).Info("commitment created")
	writeJSON(w, http.StatusCreated, toCommitmentDTO(c))
}

// GetCommitment returns one commitment.
// GET /api/commitments/{id}
func (h *Handler) GetCommitment(w http.ResponseWriter, r *http.Request) {
	id := schedule.CommitmentID(chi.URLParam(r, "id"))

	c, err := h.Store.GetCommitment(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitmentDTO(*c))
}

// UpdateCommitment updates mutable metadata.
// PUT /api/commitments/{id}
func (h *Handler) UpdateCommitment(w http.ResponseWriter, r *http.Request) {
	id := schedule.CommitmentID(chi.URLParam(r, "id"))

	var req UpdateCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	c, err := h.Store.GetCommitment(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get commitment", err)
		return
	}

	c.Name = req.Name
	c.Important = req.Important
	c.CategoryID = req.CategoryID
	c.Notes = req.Notes
	c.PairedWith = nil
	if req.PairedWith != nil {
		pid := schedule.CommitmentID(*req.PairedWith)
		c.PairedWith = &pid
	}

	if err := h.Store.UpdateCommitment(r.Context(), c); err != nil {
		writeStoreError(w, "Failed to update commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitmentDTO(*c))
}

// ArchiveCommitment hides a commitment from active views.
// POST /api/commitments/{id}/archive
func (h *Handler) ArchiveCommitment(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// RestoreCommitment brings an archived commitment back.
// POST /api/commitments/{id}/restore
func (h *Handler) RestoreCommitment(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	id := schedule.CommitmentID(chi.URLParam(r, "id"))

	if err := h.Store.ArchiveCommitment(r.Context(), id, archived); err != nil {
		writeStoreError(w, "Failed to archive commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       string(id),
		"archived": archived,
	})
}

// =============================================================================
// TERM ENDPOINTS
// =============================================================================

// ListTerms returns the full term history of a commitment.
// GET /api/commitments/{id}/terms
func (h *Handler) ListTerms(w http.ResponseWriter, r *http.Request) {
	id := schedule.CommitmentID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetCommitment(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to get commitment", err)
		return
	}
	terms, err := h.Store.ListTermsFor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list terms", err)
		return
	}

	dtos := make([]TermDTO, 0, len(terms))
	for _, t := range terms {
		dtos = append(dtos, toTermDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTerm appends a new term version to a commitment.
// POST /api/commitments/{id}/terms
func (h *Handler) CreateTerm(w http.ResponseWriter, r *http.Request) {
	id := schedule.CommitmentID(chi.URLParam(r, "id"))

	var req CreateTermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	freq := schedule.Frequency(req.Frequency)
	if !freq.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid frequency", schedule.ErrInvalidFrequency)
		return
	}
	from, err := schedule.ParsePeriod(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from (use YYYY-MM)", err)
		return
	}
	if req.InstallmentsCount != nil && *req.InstallmentsCount < 1 {
		writeError(w, http.StatusBadRequest, "Installments count must be positive", nil)
		return
	}

	currency := schedule.Currency(req.Currency)
	if currency == "" {
		currency = schedule.CurrencyARS
	}

	t := schedule.Term{
		CommitmentID:      id,
		Amount:            schedule.Money{Value: amount, Currency: currency},
		Frequency:         freq,
		DueDay:            req.DueDay,
		InstallmentsCount: req.InstallmentsCount,
		DividedAmount:     req.DividedAmount,
		EffectiveFrom:     from,
	}
	if req.EffectiveUntil != nil {
		until, err := schedule.ParsePeriod(*req.EffectiveUntil)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_until (use YYYY-MM)", err)
			return
		}
		if until.Before(from) {
			writeError(w, http.StatusBadRequest, "effective_until precedes effective_from", nil)
			return
		}
		t.EffectiveUntil = &until
	}

	if err := h.Store.CreateTerm(r.Context(), &t); err != nil {
		writeStoreError(w, "Failed to create term", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		logging.FieldCommitment: t.CommitmentID,
		logging.FieldTerm:       t.ID,
	}).Info("term created")
	writeJSON(w, http.StatusCreated, toTermDTO(t))
}

// GetTerm returns one term.
// GET /api/terms/{id}
func (h *Handler) GetTerm(w http.ResponseWriter, r *http.Request) {
	id := schedule.TermID(chi.URLParam(r, "id"))

	t, err := h.Store.GetTerm(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get term", err)
		return
	}
	writeJSON(w, http.StatusOK, toTermDTO(*t))
}

// CloseTerm end-dates an open term.
// POST /api/terms/{id}/close
func (h *Handler) CloseTerm(w http.ResponseWriter, r *http.Request) {
	id := schedule.TermID(chi.URLParam(r, "id"))

	var req CloseTermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	until, err := schedule.ParsePeriod(req.Until)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid until (use YYYY-MM)", err)
		return
	}

	if err := h.Store.CloseTerm(r.Context(), id, until); err != nil {
		writeStoreError(w, "Failed to close term", err)
		return
	}

	t, err := h.Store.GetTerm(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get term", err)
		return
	}
	writeJSON(w, http.StatusOK, toTermDTO(*t))
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

// ListPayments returns a commitment's payment history.
// GET /api/commitments/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := schedule.CommitmentID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetCommitment(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to get commitment", err)
		return
	}
	payments, err := h.Store.ListPaymentsFor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayment records or pre-registers a payment.
// POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := schedule.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	p := schedule.Payment{
		CommitmentID: schedule.CommitmentID(req.CommitmentID),
		Period:       period,
	}
	if err := applyPaymentFields(&p, req.PaymentDate, req.Amount, req.Currency, req.ExchangeRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment fields", err)
		return
	}

	if err := h.Store.CreatePayment(r.Context(), &p); err != nil {
		writeStoreError(w, "Failed to create payment", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		logging.FieldCommitment: p.CommitmentID,
		logging.FieldPayment:    p.ID,
		logging.FieldPeriod:     p.Period.String(),
	}).Info("payment recorded")
	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

// GetPayment returns one payment.
// GET /api/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := schedule.PaymentID(chi.URLParam(r, "id"))

	p, err := h.Store.GetPayment(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*p))
}

// UpdatePayment amends or settles a payment record.
// PUT /api/payments/{id}
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := schedule.PaymentID(chi.URLParam(r, "id"))

	var req UpdatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Store.GetPayment(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get payment", err)
		return
	}

	if req.Period != nil {
		period, err := schedule.ParsePeriod(*req.Period)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
			return
		}
		p.Period = period
	}
	if err := applyPaymentFields(p, req.PaymentDate, req.Amount, req.Currency, req.ExchangeRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment fields", err)
		return
	}

	if err := h.Store.UpdatePayment(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to update payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*p))
}

// DeletePayment removes a payment record.
// DELETE /api/payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := schedule.PaymentID(chi.URLParam(r, "id"))

	if err := h.Store.DeletePayment(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "deleted": true})
}

// applyPaymentFields parses the optional payment fields shared between
// create and update.
func applyPaymentFields(p *schedule.Payment, date, amount, currency, rate *string) error {
	if date != nil {
		if *date == "" {
			p.PaymentDate = nil
		} else {
			ts, err := time.ParseInLocation("2006-01-02", *date, time.UTC)
			if err != nil {
				return err
			}
			p.PaymentDate = &ts
		}
	}
	if amount != nil {
		if *amount == "" {
			p.Amount = nil
		} else {
			v, err := decimal.NewFromString(*amount)
			if err != nil {
				return err
			}
			cur := schedule.CurrencyARS
			if currency != nil && *currency != "" {
				cur = schedule.Currency(*currency)
			} else if p.Amount != nil {
				cur = p.Amount.Currency
			}
			p.Amount = &schedule.Money{Value: v, Currency: cur}
		}
	}
	if rate != nil {
		if *rate == "" {
			p.ExchangeRate = nil
		} else {
			r, err := decimal.NewFromString(*rate)
			if err != nil {
				return err
			}
			p.ExchangeRate = &r
		}
	}
	return nil
}

// =============================================================================
// VIEW ENDPOINTS
// =============================================================================

// GetGrid returns the grid for a period range: one row per active
// commitment plus per-month totals.
// GET /api/grid?from=2024-01&to=2024-12&as_of=2024-06-15
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	asOf := h.asOf(r)

	from, to, err := parseRange(r, asOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period range (use YYYY-MM)", err)
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to precedes from", nil)
		return
	}
	if schedule.MonthsBetween(from, to) > 120 {
		writeError(w, http.StatusBadRequest, "Range too wide (max 120 months)", nil)
		return
	}

	snap, err := schedule.LoadSnapshot(r.Context(), h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}

	resp := GridResponse{
		From: from.String(),
		To:   to.String(),
		AsOf: asOf.Format("2006-01-02"),
	}
	for _, c := range snap.ActiveCommitments() {
		row := RowDTO{Commitment: toCommitmentDTO(c)}
		for _, cell := range snap.Row(c.ID, from, to, asOf) {
			row.Cells = append(row.Cells, toCellDTO(cell))
		}
		resp.Rows = append(resp.Rows, row)
	}
	for _, t := range snap.TotalsRange(from, to, asOf) {
		resp.Totals = append(resp.Totals, toMonthTotalsDTO(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMonth returns one month's totals and cells.
// GET /api/months/{year}/{month}
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	target := schedule.NewPeriod(year, time.Month(month))
	asOf := h.asOf(r)

	snap, err := schedule.LoadSnapshot(r.Context(), h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}

	resp := MonthResponse{
		Totals: toMonthTotalsDTO(snap.MonthTotals(target, asOf)),
	}
	for _, c := range snap.ActiveCommitments() {
		cell := snap.Cell(c.ID, target, asOf)
		if cell.State == schedule.CellNoTerm {
			continue
		}
		resp.Cells = append(resp.Cells, toCellDTO(cell))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAnomalies lists orphan payments: records whose period no term governs.
// GET /api/anomalies?from=2024-01&to=2024-12
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	asOf := h.asOf(r)

	from, to, err := parseRange(r, asOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period range (use YYYY-MM)", err)
		return
	}

	snap, err := schedule.LoadSnapshot(r.Context(), h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}

	dtos := make([]AnomalyDTO, 0)
	for _, cell := range snap.Anomalies(from, to, asOf) {
		dto := AnomalyDTO{
			CommitmentID: string(cell.CommitmentID),
			Period:       cell.Period.String(),
			Amount:       cell.Amount.Value.String(),
		}
		if c := snap.Commitment(cell.CommitmentID); c != nil {
			dto.Commitment = c.Name
		}
		if cell.Status.Payment != nil {
			dto.PaymentID = string(cell.Status.Payment.ID)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// asOf resolves the evaluation date: ?as_of=YYYY-MM-DD or today.
func (h *Handler) asOf(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if ts, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
			return ts
		}
	}
	return h.now()
}

// parseRange reads from/to query params, defaulting to the current
// calendar year of asOf.
func parseRange(r *http.Request, asOf time.Time) (schedule.Period, schedule.Period, error) {
	from := schedule.NewPeriod(asOf.Year(), time.January)
	to := schedule.NewPeriod(asOf.Year(), time.December)

	if raw := r.URL.Query().Get("from"); raw != "" {
		p, err := schedule.ParsePeriod(raw)
		if err != nil {
			return from, to, err
		}
		from = p
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		p, err := schedule.ParsePeriod(raw)
		if err != nil {
			return from, to, err
		}
		to = p
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps domain errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, schedule.ErrDuplicatePeriodPayment),
		errors.Is(err, schedule.ErrTermOverlap),
		errors.Is(err, schedule.ErrTermClosed):
		writeError(w, http.StatusConflict, message, err)
	case schedule.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

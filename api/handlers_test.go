/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Commitment, term, and payment endpoints end to end
- Error status mapping (404 missing, 409 duplicate period, 400 bad input)
- Grid and month views with a pinned clock
- CSV export shape
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finansheet/commitment-engine/internal/logging"
	"github.com/finansheet/commitment-engine/schedule/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	h := NewHandler(store.NewMemory(), logging.New())
	// Pin the clock so overdue/upcoming derivation is deterministic.
	h.now = func() time.Time {
		return time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	}
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createCommitment(t *testing.T, router http.Handler, name, flow string) CommitmentDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/commitments", CreateCommitmentRequest{
		Name: name,
		Flow: flow,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CommitmentDTO](t, rec)
}

func createTerm(t *testing.T, router http.Handler, commitmentID string, req CreateTermRequest) TermDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/commitments/"+commitmentID+"/terms", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[TermDTO](t, rec)
}

func strPtr(s string) *string { return &s }

// =============================================================================
// COMMITMENT ENDPOINTS
// =============================================================================

func TestCommitment_CreateAndGet(t *testing.T) {
	_, router := newTestServer(t)

	created := createCommitment(t, router, "Rent", "expense")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "expense", created.Flow)

	rec := doJSON(t, router, http.MethodGet, "/api/commitments/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[CommitmentDTO](t, rec)
	assert.Equal(t, "Rent", got.Name)
}

func TestCommitment_CreateRejectsBadFlow(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/commitments", CreateCommitmentRequest{
		Name: "Weird",
		Flow: "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitment_GetMissingIs404(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/api/commitments/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommitment_ArchiveHidesFromList(t *testing.T) {
	_, router := newTestServer(t)
	c := createCommitment(t, router, "Old gym", "expense")

	rec := doJSON(t, router, http.MethodPost, "/api/commitments/"+c.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/commitments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]CommitmentDTO](t, rec))

	rec = doJSON(t, router, http.MethodGet, "/api/commitments?include_archived=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]CommitmentDTO](t, rec), 1)

	rec = doJSON(t, router, http.MethodPost, "/api/commitments/"+c.ID+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/commitments", nil)
	assert.Len(t, decode[[]CommitmentDTO](t, rec), 1)
}

// =============================================================================
// TERM ENDPOINTS
// =============================================================================

func TestTerm_CreateAndVersioning(t *testing.T) {
	_, router := newTestServer(t)
	c := createCommitment(t, router, "Rent", "expense")

	v1 := createTerm(t, router, c.ID, CreateTermRequest{
		Amount:        "40000",
		Frequency:     "MONTHLY",
		DueDay:        10,
		EffectiveFrom: "2024-01",
	})
	assert.Equal(t, 1, v1.Version)

	v2 := createTerm(t, router, c.ID, CreateTermRequest{
		Amount:        "55000",
		Frequency:     "MONTHLY",
		DueDay:        10,
		EffectiveFrom: "2024-07",
	})
	assert.Equal(t, 2, v2.Version)

	// v1 got end-dated by the handoff
	rec := doJSON(t, router, http.MethodGet, "/api/terms/"+v1.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[TermDTO](t, rec)
	require.NotNil(t, got.EffectiveUntil)
	assert.Equal(t, "2024-06", *got.EffectiveUntil)
}

func TestTerm_CreateRejectsBadInput(t *testing.T) {
	_, router := newTestServer(t)
	c := createCommitment(t, router, "Rent", "expense")

	cases := []CreateTermRequest{
		{Amount: "abc", Frequency: "MONTHLY", EffectiveFrom: "2024-01"},
		{Amount: "100", Frequency: "FORTNIGHTLY", EffectiveFrom: "2024-01"},
		{Amount: "100", Frequency: "MONTHLY", EffectiveFrom: "not-a-period"},
		{Amount: "100", Frequency: "MONTHLY", EffectiveFrom: "2024-06", EffectiveUntil: strPtr("2024-01")},
	}
	for i, req := range cases {
		rec := doJSON(t, router, http.MethodPost, "/api/commitments/"+c.ID+"/terms", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d: %s", i, rec.Body.String())
	}
}

func TestTerm_CloseAndCloseAgainConflicts(t *testing.T) {
	_, router := newTestServer(t)
	c := createCommitment(t, router, "Gym", "expense")
	term := createTerm(t, router, c.ID, CreateTermRequest{
		Amount:        "9000",
		Frequency:     "MONTHLY",
		DueDay:        1,
		EffectiveFrom: "2024-01",
	})

	rec := doJSON(t, router, http.MethodPost, "/api/terms/"+term.ID+"/close", CloseTermRequest{Until: "2024-08"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[TermDTO](t, rec)
	require.NotNil(t, got.EffectiveUntil)
	assert.Equal(t, "2024-08", *got.EffectiveUntil)

	rec = doJSON(t, router, http.MethodPost, "/api/terms/"+term.ID+"/close", CloseTermRequest{Until: "2024-09"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

func TestPayment_CreateAndDuplicateConflicts(t *testing.T) {
	_, router := newTestServer(t)
	c := createCommitment(t, router, "Rent", "expense")

	rec := doJSON(t, router, http.MethodPost, "/api/payments", CreatePaymentRequest{
		CommitmentID: c.ID,
		Period:       "2024-05",
		PaymentDate:  strPtr("2024-05-09"),
		Amount:       strPtr("50000"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[PaymentDTO](t, rec)
	assert.True(t, created.Settled)

	rec = doJSON(t, router, http.MethodPost, "/api/payments", CreatePaymentRequest{
		CommitmentID: c.ID,
		Period:       "2024-05",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPayment_SettlePreRegistered(t *testing.T) {
	_, router := newTestServer(t)
	c := createCommitment(t, router, "Loan", "expense")

	rec := doJSON(t, router, http.MethodPost, "/api/payments", CreatePaymentRequest{
		CommitmentID: c.ID,
		Period:       "2024-09",
		Amount:       strPtr("10000"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[PaymentDTO](t, rec)
	assert.False(t, p.Settled, "no date means pre-registered")

	rec = doJSON(t, router, http.MethodPut, "/api/payments/"+p.ID, UpdatePaymentRequest{
		PaymentDate: strPtr("2024-09-05"),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[PaymentDTO](t, rec)
	assert.True(t, updated.Settled)
	require.NotNil(t, updated.Amount)
	assert.Equal(t, "10000", *updated.Amount, "amount survives settlement")
}

func TestPayment_DeleteThenGetIs404(t *testing.T) {
	_, router := newTestServer(t)
	c := createCommitment(t, router, "Rent", "expense")

	rec := doJSON(t, router, http.MethodPost, "/api/payments", CreatePaymentRequest{
		CommitmentID: c.ID,
		Period:       "2024-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[PaymentDTO](t, rec)

	rec = doJSON(t, router, http.MethodDelete, "/api/payments/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/payments/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// VIEW ENDPOINTS
// =============================================================================

func TestGrid_RowsStatesAndTotals(t *testing.T) {
	// GIVEN: A rent expense (overdue in May, paid in March) and a salary
	// income, clock pinned to 2024-06-15
	_, router := newTestServer(t)
	rent := createCommitment(t, router, "Rent", "expense")
	createTerm(t, router, rent.ID, CreateTermRequest{
		Amount:        "50000",
		Frequency:     "MONTHLY",
		DueDay:        10,
		EffectiveFrom: "2024-01",
	})
	salary := createCommitment(t, router, "Salary", "income")
	createTerm(t, router, salary.ID, CreateTermRequest{
		Amount:        "80000",
		Frequency:     "MONTHLY",
		DueDay:        1,
		EffectiveFrom: "2024-01",
	})
	rec := doJSON(t, router, http.MethodPost, "/api/payments", CreatePaymentRequest{
		CommitmentID: rent.ID,
		Period:       "2024-03",
		PaymentDate:  strPtr("2024-03-09"),
		Amount:       strPtr("50000"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: Fetching the year grid
	rec = doJSON(t, router, http.MethodGet, "/api/grid?from=2024-01&to=2024-12", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	grid := decode[GridResponse](t, rec)

	// THEN: Two rows of twelve cells each, with per-cell states
	require.Len(t, grid.Rows, 2)
	require.Len(t, grid.Rows[0].Cells, 12)

	var rentRow RowDTO
	for _, row := range grid.Rows {
		if row.Commitment.ID == rent.ID {
			rentRow = row
		}
	}
	require.NotEmpty(t, rentRow.Commitment.ID)
	assert.Equal(t, "paid", rentRow.Cells[2].State)    // March
	assert.Equal(t, "overdue", rentRow.Cells[4].State) // May
	assert.Equal(t, "pending", rentRow.Cells[6].State) // July
	assert.True(t, rentRow.Cells[6].Upcoming)

	// AND: May totals put the expense in committed+overdue, income apart
	require.Len(t, grid.Totals, 12)
	may := grid.Totals[4]
	assert.Equal(t, "2024-05", may.Period)
	assert.True(t, may.Committed.IntPart() == 50000)
	assert.True(t, may.Overdue.IntPart() == 50000)
	assert.True(t, may.Income.IntPart() == 80000)
	assert.True(t, may.Paid.IsZero())
	assert.True(t, may.Pending.IsZero())
}

func TestGrid_AsOfOverridesClock(t *testing.T) {
	_, router := newTestServer(t)
	rent := createCommitment(t, router, "Rent", "expense")
	createTerm(t, router, rent.ID, CreateTermRequest{
		Amount:        "50000",
		Frequency:     "MONTHLY",
		DueDay:        10,
		EffectiveFrom: "2024-01",
	})

	// Evaluated from January 5th, May is a plain future month
	rec := doJSON(t, router, http.MethodGet, "/api/grid?from=2024-05&to=2024-05&as_of=2024-01-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decode[GridResponse](t, rec)
	require.Len(t, grid.Rows, 1)
	assert.Equal(t, "pending", grid.Rows[0].Cells[0].State)
	assert.True(t, grid.Rows[0].Cells[0].Upcoming)
}

func TestGrid_RejectsInvalidRange(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/api/grid?from=2024-06&to=2024-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/grid?from=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonth_TotalsAndCells(t *testing.T) {
	_, router := newTestServer(t)
	rent := createCommitment(t, router, "Rent", "expense")
	createTerm(t, router, rent.ID, CreateTermRequest{
		Amount:        "50000",
		Frequency:     "MONTHLY",
		DueDay:        10,
		EffectiveFrom: "2024-01",
	})

	rec := doJSON(t, router, http.MethodGet, "/api/months/2024/5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	month := decode[MonthResponse](t, rec)

	assert.Equal(t, "2024-05", month.Totals.Period)
	assert.True(t, month.Totals.Overdue.IntPart() == 50000)
	require.Len(t, month.Cells, 1)
	assert.Equal(t, "overdue", month.Cells[0].State)
}

func TestAnomalies_SurfaceOrphanPayments(t *testing.T) {
	_, router := newTestServer(t)
	rent := createCommitment(t, router, "Rent", "expense")
	createTerm(t, router, rent.ID, CreateTermRequest{
		Amount:        "50000",
		Frequency:     "MONTHLY",
		DueDay:        10,
		EffectiveFrom: "2024-06",
	})

	// A payment before the term's window: orphan
	rec := doJSON(t, router, http.MethodPost, "/api/payments", CreatePaymentRequest{
		CommitmentID: rent.ID,
		Period:       "2024-02",
		PaymentDate:  strPtr("2024-02-04"),
		Amount:       strPtr("48000"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/anomalies?from=2024-01&to=2024-12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anomalies := decode[[]AnomalyDTO](t, rec)

	require.Len(t, anomalies, 1)
	assert.Equal(t, "2024-02", anomalies[0].Period)
	assert.Equal(t, "Rent", anomalies[0].Commitment)
	assert.Equal(t, "48000", anomalies[0].Amount)
}

func TestExportCSV_YearSchedule(t *testing.T) {
	_, router := newTestServer(t)
	rent := createCommitment(t, router, "Rent", "expense")
	createTerm(t, router, rent.ID, CreateTermRequest{
		Amount:        "50000",
		Frequency:     "QUARTERLY",
		DueDay:        10,
		EffectiveFrom: "2024-01",
	})

	rec := doJSON(t, router, http.MethodGet, "/api/export/csv?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	// Header plus the four due quarters; off-cycle months are skipped
	require.Len(t, lines, 5, rec.Body.String())
	assert.Contains(t, lines[0], "commitment")
	assert.Contains(t, lines[1], "Rent")
	assert.Contains(t, lines[1], "2024-01")
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

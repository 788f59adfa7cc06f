package schedule_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/finansheet/commitment-engine/schedule"
)

// =============================================================================
// CELL STATE MACHINE
// =============================================================================

func TestResolveCell_NoTermIsEmptyNotError(t *testing.T) {
	// GIVEN: No term covers the period and no payment exists (the gap)
	cell := schedule.ResolveCell("c-1", nil, indexOf(), period("2024-05"), date("2024-05-15"))

	assert.Equal(t, schedule.CellNoTerm, cell.State)
	assert.Nil(t, cell.Term)
	assert.True(t, cell.Amount.Value.IsZero())
}

func TestResolveCell_OrphanPayment(t *testing.T) {
	// GIVEN: A payment in a month no term governs (retroactive term edit)
	term := monthlyTerm("2024-06", 50000)
	payments := indexOf(schedule.Payment{
		ID:           "p-1",
		CommitmentID: "c-1",
		Period:       period("2024-03"),
		PaymentDate:  datePtr("2024-03-05"),
		Amount:       moneyPtr(48000),
	})

	// WHEN: Resolving the orphaned month
	cell := schedule.ResolveCell("c-1", []schedule.Term{term}, payments, period("2024-03"), date("2024-07-01"))

	// THEN: The cell flags the inconsistency and keeps the recorded amount
	assert.Equal(t, schedule.CellOrphan, cell.State)
	assert.Nil(t, cell.Term)
	assert.True(t, cell.Amount.Value.Equal(decimal.NewFromInt(48000)))
}

func TestResolveCell_Paid(t *testing.T) {
	term := monthlyTerm("2024-01", 50000)
	payments := indexOf(schedule.Payment{
		ID:           "p-1",
		CommitmentID: "c-1",
		Period:       period("2024-03"),
		PaymentDate:  datePtr("2024-03-09"),
		Amount:       moneyPtr(51000),
	})

	cell := schedule.ResolveCell("c-1", []schedule.Term{term}, payments, period("2024-03"), date("2024-04-01"))

	assert.Equal(t, schedule.CellPaid, cell.State)
	// Recorded amount beats the projection
	assert.True(t, cell.Amount.Value.Equal(decimal.NewFromInt(51000)))
	assert.True(t, cell.Status.PaidOnTime)
}

func TestResolveCell_PreRegisteredFutureIsNotDimmedOrOverdue(t *testing.T) {
	// GIVEN: An advance entry for a future month, amount set, no date
	term := monthlyTerm("2024-01", 50000)
	payments := indexOf(schedule.Payment{
		ID:           "p-1",
		CommitmentID: "c-1",
		Period:       period("2024-09"),
		Amount:       moneyPtr(10000),
	})

	// WHEN: Resolving well before the period arrives
	cell := schedule.ResolveCell("c-1", []schedule.Term{term}, payments, period("2024-09"), date("2024-05-15"))

	// THEN: Pre-registered, not upcoming-dimmed, not overdue, not paid
	assert.Equal(t, schedule.CellPreRegistered, cell.State)
	assert.False(t, cell.Upcoming)
	assert.True(t, cell.Amount.Value.Equal(decimal.NewFromInt(10000)))
}

func TestResolveCell_OverdueDerivedFromClock(t *testing.T) {
	term := monthlyTerm("2024-01", 50000) // due day 10

	// Same cell, three clocks: pending, still pending on due day, overdue after
	cell := schedule.ResolveCell("c-1", []schedule.Term{term}, indexOf(), period("2024-05"), date("2024-05-01"))
	assert.Equal(t, schedule.CellPending, cell.State)

	cell = schedule.ResolveCell("c-1", []schedule.Term{term}, indexOf(), period("2024-05"), date("2024-05-10"))
	assert.Equal(t, schedule.CellPending, cell.State)

	cell = schedule.ResolveCell("c-1", []schedule.Term{term}, indexOf(), period("2024-05"), date("2024-05-11"))
	assert.Equal(t, schedule.CellOverdue, cell.State)
}

func TestResolveCell_FutureUnpaidIsUpcomingPending(t *testing.T) {
	term := monthlyTerm("2024-01", 50000)

	cell := schedule.ResolveCell("c-1", []schedule.Term{term}, indexOf(), period("2024-11"), date("2024-05-15"))

	assert.Equal(t, schedule.CellPending, cell.State)
	assert.True(t, cell.Upcoming)
}

func TestResolveCell_DividedInstallmentProjection(t *testing.T) {
	term := monthlyTerm("2024-01", 120000)
	term.InstallmentsCount = intPtr(12)
	term.DividedAmount = true

	cell := schedule.ResolveCell("c-1", []schedule.Term{term}, indexOf(), period("2024-04"), date("2024-04-01"))

	assert.Equal(t, schedule.CellPending, cell.State)
	assert.True(t, cell.Amount.Value.Equal(decimal.NewFromInt(10000)),
		"expected per-installment amount, got %s", cell.Amount.Value)
}

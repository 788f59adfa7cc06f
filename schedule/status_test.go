package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finansheet/commitment-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(key string) time.Time {
	ts, err := time.ParseInLocation("2006-01-02", key, time.UTC)
	if err != nil {
		panic(err)
	}
	return ts
}

func datePtr(key string) *time.Time {
	ts := date(key)
	return &ts
}

func moneyPtr(value int) *schedule.Money {
	m := ars(value)
	return &m
}

func indexOf(payments ...schedule.Payment) *schedule.PaymentIndex {
	return schedule.NewPaymentIndex(payments)
}

// =============================================================================
// PAYMENT STATUS
// =============================================================================

func TestResolvePaymentStatus_NoRecord(t *testing.T) {
	status := schedule.ResolvePaymentStatus("c-1", period("2024-05"), 10, indexOf())

	assert.False(t, status.HasRecord)
	assert.False(t, status.IsPaid)
	assert.Nil(t, status.Amount)
	assert.Equal(t, "2024-05-10", status.DueDate.Format("2006-01-02"))
}

func TestResolvePaymentStatus_NilIndexDegrades(t *testing.T) {
	status := schedule.ResolvePaymentStatus("c-1", period("2024-05"), 10, nil)
	assert.False(t, status.HasRecord)
	assert.Equal(t, "2024-05-10", status.DueDate.Format("2006-01-02"))
}

func TestResolvePaymentStatus_PreRegistered(t *testing.T) {
	// GIVEN: A payment record with an amount but no payment date
	payments := indexOf(schedule.Payment{
		ID:           "p-1",
		CommitmentID: "c-1",
		Period:       period("2024-05"),
		Amount:       moneyPtr(10000),
	})

	// WHEN: Resolving the period's status
	status := schedule.ResolvePaymentStatus("c-1", period("2024-05"), 10, payments)

	// THEN: The record exists but does not count as paid
	assert.True(t, status.HasRecord)
	assert.False(t, status.IsPaid)
	require.NotNil(t, status.Amount)
	assert.True(t, status.Amount.Value.IntPart() == 10000)
}

func TestResolvePaymentStatus_PaidOnTime(t *testing.T) {
	payments := indexOf(schedule.Payment{
		ID:           "p-1",
		CommitmentID: "c-1",
		Period:       period("2024-05"),
		PaymentDate:  datePtr("2024-05-08"),
		Amount:       moneyPtr(50000),
	})

	status := schedule.ResolvePaymentStatus("c-1", period("2024-05"), 10, payments)

	assert.True(t, status.IsPaid)
	assert.True(t, status.PaidOnTime)
}

func TestResolvePaymentStatus_PaidLate(t *testing.T) {
	payments := indexOf(schedule.Payment{
		ID:           "p-1",
		CommitmentID: "c-1",
		Period:       period("2024-05"),
		PaymentDate:  datePtr("2024-05-20"),
	})

	status := schedule.ResolvePaymentStatus("c-1", period("2024-05"), 10, payments)

	assert.True(t, status.IsPaid)
	assert.False(t, status.PaidOnTime)
}

// =============================================================================
// OVERDUE DERIVATION
// =============================================================================

func TestOverdue_UnpaidPastDueDate(t *testing.T) {
	status := schedule.ResolvePaymentStatus("c-1", period("2024-05"), 10, indexOf())

	assert.False(t, status.Overdue(period("2024-05"), date("2024-05-10")),
		"the due day itself is not yet overdue")
	assert.True(t, status.Overdue(period("2024-05"), date("2024-05-11")))
	assert.True(t, status.Overdue(period("2024-05"), date("2024-09-01")))
}

func TestOverdue_FuturePeriodNever(t *testing.T) {
	// A future month is not overdue even though its due day number has
	// already passed in the current month.
	status := schedule.ResolvePaymentStatus("c-1", period("2024-08"), 5, indexOf())
	assert.False(t, status.Overdue(period("2024-08"), date("2024-06-20")))
}

func TestOverdue_PaidNever(t *testing.T) {
	payments := indexOf(schedule.Payment{
		ID:           "p-1",
		CommitmentID: "c-1",
		Period:       period("2024-05"),
		PaymentDate:  datePtr("2024-07-01"), // paid late, but paid
	})
	status := schedule.ResolvePaymentStatus("c-1", period("2024-05"), 10, payments)
	assert.False(t, status.Overdue(period("2024-05"), date("2024-09-01")))
}

// =============================================================================
// PAYMENT INDEX
// =============================================================================

func TestPaymentIndex_LookupAndByCommitment(t *testing.T) {
	payments := indexOf(
		schedule.Payment{ID: "p-1", CommitmentID: "c-1", Period: period("2024-01")},
		schedule.Payment{ID: "p-2", CommitmentID: "c-1", Period: period("2024-02")},
		schedule.Payment{ID: "p-3", CommitmentID: "c-2", Period: period("2024-01")},
	)

	got := payments.Lookup("c-1", period("2024-02"))
	require.NotNil(t, got)
	assert.Equal(t, schedule.PaymentID("p-2"), got.ID)

	assert.Nil(t, payments.Lookup("c-1", period("2024-03")))
	assert.Len(t, payments.ByCommitment("c-1"), 2)
	assert.Len(t, payments.ByCommitment("c-3"), 0)
}

func TestPaymentIndex_IgnoresLaterDuplicates(t *testing.T) {
	payments := indexOf(
		schedule.Payment{ID: "p-1", CommitmentID: "c-1", Period: period("2024-01")},
		schedule.Payment{ID: "p-dup", CommitmentID: "c-1", Period: period("2024-01")},
	)

	got := payments.Lookup("c-1", period("2024-01"))
	require.NotNil(t, got)
	assert.Equal(t, schedule.PaymentID("p-1"), got.ID, "first record wins")
	assert.Len(t, payments.ByCommitment("c-1"), 1)
}

// Package store provides Store implementations backed by process memory.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finansheet/commitment-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	commitments map[schedule.CommitmentID]schedule.Commitment
	terms       map[schedule.TermID]schedule.Term
	payments    map[schedule.PaymentID]schedule.Payment

	// periodIndex enforces one payment per (commitment, period), the same
	// guarantee the sqlite store gets from its unique index.
	periodIndex map[periodKey]schedule.PaymentID
}

type periodKey struct {
	CommitmentID schedule.CommitmentID
	Period       string
}

func NewMemory() *Memory {
	return &Memory{
		commitments: make(map[schedule.CommitmentID]schedule.Commitment),
		terms:       make(map[schedule.TermID]schedule.Term),
		payments:    make(map[schedule.PaymentID]schedule.Payment),
		periodIndex: make(map[periodKey]schedule.PaymentID),
	}
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// COMMITMENTS
// =============================================================================

func (m *Memory) CreateCommitment(_ context.Context, c *schedule.Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = schedule.CommitmentID(uuid.NewString())
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.commitments[c.ID] = *c
	return nil
}

func (m *Memory) GetCommitment(_ context.Context, id schedule.CommitmentID) (*schedule.Commitment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.commitments[id]
	if !ok {
		return nil, schedule.ErrCommitmentNotFound
	}
	return &c, nil
}

func (m *Memory) UpdateCommitment(_ context.Context, c *schedule.Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.commitments[c.ID]; !ok {
		return schedule.ErrCommitmentNotFound
	}
	m.commitments[c.ID] = *c
	return nil
}

func (m *Memory) ArchiveCommitment(_ context.Context, id schedule.CommitmentID, archived bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commitments[id]
	if !ok {
		return schedule.ErrCommitmentNotFound
	}
	c.Archived = archived
	m.commitments[id] = c
	return nil
}

func (m *Memory) ListCommitments(_ context.Context, includeArchived bool) ([]schedule.Commitment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schedule.Commitment, 0, len(m.commitments))
	for _, c := range m.commitments {
		if !includeArchived && c.Archived {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// TERMS
// =============================================================================

func (m *Memory) CreateTerm(_ context.Context, t *schedule.Term) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.commitments[t.CommitmentID]; !ok {
		return schedule.ErrCommitmentNotFound
	}
	if t.ID == "" {
		t.ID = schedule.TermID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	normalizeTermWindow(t)

	maxVersion := 0
	var open *schedule.Term
	for id, existing := range m.terms {
		if existing.CommitmentID != t.CommitmentID {
			continue
		}
		if existing.Version > maxVersion {
			maxVersion = existing.Version
		}
		if existing.EffectiveUntil == nil {
			e := m.terms[id]
			open = &e
			continue
		}
		if t.Overlaps(existing) {
			return &schedule.TermOverlapError{
				CommitmentID: t.CommitmentID,
				NewFrom:      t.EffectiveFrom,
				ExistingTerm: existing.ID,
				ExistingFrom: existing.EffectiveFrom,
			}
		}
	}

	// An open predecessor makes room for its successor: close it at the
	// period before the new version starts.
	if open != nil {
		if !open.EffectiveFrom.Before(t.EffectiveFrom) {
			return &schedule.TermOverlapError{
				CommitmentID: t.CommitmentID,
				NewFrom:      t.EffectiveFrom,
				ExistingTerm: open.ID,
				ExistingFrom: open.EffectiveFrom,
			}
		}
		until := t.EffectiveFrom.Previous()
		closed := *open
		closed.EffectiveUntil = &until
		m.terms[open.ID] = closed
	}

	t.Version = maxVersion + 1
	m.terms[t.ID] = *t
	return nil
}

func (m *Memory) GetTerm(_ context.Context, id schedule.TermID) (*schedule.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.terms[id]
	if !ok {
		return nil, schedule.ErrTermNotFound
	}
	return &t, nil
}

func (m *Memory) CloseTerm(_ context.Context, id schedule.TermID, until schedule.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.terms[id]
	if !ok {
		return schedule.ErrTermNotFound
	}
	if t.EffectiveUntil != nil {
		return schedule.ErrTermClosed
	}
	if until.Before(t.EffectiveFrom) {
		until = t.EffectiveFrom
	}
	t.EffectiveUntil = &until
	m.terms[id] = t
	return nil
}

func (m *Memory) ListTermsFor(_ context.Context, id schedule.CommitmentID) ([]schedule.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schedule.Term
	for _, t := range m.terms {
		if t.CommitmentID == id {
			out = append(out, t)
		}
	}
	sortTerms(out)
	return out, nil
}

func (m *Memory) ListTerms(_ context.Context) ([]schedule.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schedule.Term, 0, len(m.terms))
	for _, t := range m.terms {
		out = append(out, t)
	}
	sortTerms(out)
	return out, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) CreatePayment(_ context.Context, p *schedule.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.commitments[p.CommitmentID]; !ok {
		return schedule.ErrCommitmentNotFound
	}
	k := periodKey{CommitmentID: p.CommitmentID, Period: p.Period.Key()}
	if existing, ok := m.periodIndex[k]; ok {
		return &schedule.DuplicatePaymentError{
			CommitmentID: p.CommitmentID,
			Period:       p.Period,
			ExistingID:   existing,
		}
	}
	if p.ID == "" {
		p.ID = schedule.PaymentID(uuid.NewString())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.payments[p.ID] = *p
	m.periodIndex[k] = p.ID
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id schedule.PaymentID) (*schedule.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, schedule.ErrPaymentNotFound
	}
	return &p, nil
}

func (m *Memory) UpdatePayment(_ context.Context, p *schedule.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.payments[p.ID]
	if !ok {
		return schedule.ErrPaymentNotFound
	}
	newKey := periodKey{CommitmentID: p.CommitmentID, Period: p.Period.Key()}
	oldKey := periodKey{CommitmentID: prev.CommitmentID, Period: prev.Period.Key()}
	if newKey != oldKey {
		if existing, taken := m.periodIndex[newKey]; taken {
			return &schedule.DuplicatePaymentError{
				CommitmentID: p.CommitmentID,
				Period:       p.Period,
				ExistingID:   existing,
			}
		}
		delete(m.periodIndex, oldKey)
		m.periodIndex[newKey] = p.ID
	}
	m.payments[p.ID] = *p
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id schedule.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return schedule.ErrPaymentNotFound
	}
	delete(m.payments, id)
	delete(m.periodIndex, periodKey{CommitmentID: p.CommitmentID, Period: p.Period.Key()})
	return nil
}

func (m *Memory) ListPaymentsFor(_ context.Context, id schedule.CommitmentID) ([]schedule.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schedule.Payment
	for _, p := range m.payments {
		if p.CommitmentID == id {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (m *Memory) ListPayments(_ context.Context) ([]schedule.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schedule.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	sortPayments(out)
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// normalizeTermWindow writes the window end implied by a finite installment
// count back into EffectiveUntil, so the stored window always agrees with
// the count.
func normalizeTermWindow(t *schedule.Term) {
	if last, ok := t.LastInstallmentPeriod(); ok {
		if t.EffectiveUntil == nil || last.Before(*t.EffectiveUntil) {
			t.EffectiveUntil = &last
		}
	}
}

func sortTerms(terms []schedule.Term) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].CommitmentID != terms[j].CommitmentID {
			return terms[i].CommitmentID < terms[j].CommitmentID
		}
		return terms[i].Version < terms[j].Version
	})
}

func sortPayments(payments []schedule.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].CommitmentID != payments[j].CommitmentID {
			return payments[i].CommitmentID < payments[j].CommitmentID
		}
		return payments[i].Period.Before(payments[j].Period)
	})
}

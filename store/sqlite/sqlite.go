/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements schedule.Store using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  commitments: Obligations and their metadata (archived flag included)
  terms:       Versioned conditions, closed by end-dating, never deleted
  payments:    One row per settled or pre-registered (commitment, period)

INVARIANTS ENFORCED HERE:
  - idx_unique_period_payment keeps (commitment_id, period) unique; a
    violation maps to schedule.ErrDuplicatePeriodPayment
  - term windows of one commitment never overlap; creating a new version
    end-dates an open predecessor at the period before the new start
  - a finite installment count writes its implied end period back into
    effective_until, so the stored window always agrees with the count

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/finansheet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/finansheet/commitment-engine/schedule"
)

// Store implements schedule.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ schedule.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Commitments (obligations; archived rows stay for history)
	CREATE TABLE IF NOT EXISTS commitments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		flow TEXT NOT NULL,
		important INTEGER NOT NULL DEFAULT 0,
		category_id TEXT NOT NULL DEFAULT '',
		paired_with TEXT,
		notes TEXT NOT NULL DEFAULT '',
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Terms (versioned conditions; end-dated, never deleted)
	CREATE TABLE IF NOT EXISTS terms (
		id TEXT PRIMARY KEY,
		commitment_id TEXT NOT NULL REFERENCES commitments(id),
		version INTEGER NOT NULL,
		amount_value TEXT NOT NULL,
		amount_currency TEXT NOT NULL,
		frequency TEXT NOT NULL,
		due_day INTEGER NOT NULL,
		installments_count INTEGER,
		divided_amount INTEGER NOT NULL DEFAULT 0,
		effective_from TEXT NOT NULL,
		effective_until TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (commitment_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_terms_commitment
		ON terms(commitment_id, effective_from);

	-- Payments (one row per commitment-period)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		commitment_id TEXT NOT NULL REFERENCES commitments(id),
		period TEXT NOT NULL,
		payment_date TEXT,
		amount_value TEXT,
		amount_currency TEXT,
		exchange_rate TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_period_payment
		ON payments(commitment_id, period);
	CREATE INDEX IF NOT EXISTS idx_payments_period
		ON payments(period);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COMMITMENTS
// =============================================================================

func (s *Store) CreateCommitment(ctx context.Context, c *schedule.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = schedule.CommitmentID(uuid.NewString())
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO commitments
		(id, name, flow, important, category_id, paired_with, notes, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Flow,
		boolToInt(c.Important),
		c.CategoryID,
		nullableID(c.PairedWith),
		c.Notes,
		boolToInt(c.Archived),
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert commitment: %w", err)
	}
	return nil
}

func (s *Store) GetCommitment(ctx context.Context, id schedule.CommitmentID) (*schedule.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, flow, important, category_id, paired_with, notes, archived, created_at
		FROM commitments WHERE id = ?
	`, id)
	c, err := scanCommitment(row)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrCommitmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load commitment: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateCommitment(ctx context.Context, c *schedule.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE commitments
		SET name = ?, flow = ?, important = ?, category_id = ?, paired_with = ?, notes = ?, archived = ?
		WHERE id = ?
	`,
		c.Name,
		c.Flow,
		boolToInt(c.Important),
		c.CategoryID,
		nullableID(c.PairedWith),
		c.Notes,
		boolToInt(c.Archived),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update commitment: %w", err)
	}
	return requireAffected(res, schedule.ErrCommitmentNotFound)
}

func (s *Store) ArchiveCommitment(ctx context.Context, id schedule.CommitmentID, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET archived = ? WHERE id = ?`,
		boolToInt(archived), id)
	if err != nil {
		return fmt.Errorf("failed to archive commitment: %w", err)
	}
	return requireAffected(res, schedule.ErrCommitmentNotFound)
}

func (s *Store) ListCommitments(ctx context.Context, includeArchived bool) ([]schedule.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, flow, important, category_id, paired_with, notes, archived, created_at
		FROM commitments
	`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	defer rows.Close()

	var out []schedule.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// =============================================================================
// TERMS
// =============================================================================

func (s *Store) CreateTerm(ctx context.Context, t *schedule.Term) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = schedule.TermID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	normalizeTermWindow(t)

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var exists int
	if err := sqlTx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM commitments WHERE id = ?`, t.CommitmentID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check commitment: %w", err)
	}
	if exists == 0 {
		return schedule.ErrCommitmentNotFound
	}

	existing, err := queryTerms(ctx, sqlTx,
		`SELECT `+termColumns+` FROM terms WHERE commitment_id = ? ORDER BY version`, t.CommitmentID)
	if err != nil {
		return err
	}

	maxVersion := 0
	for _, e := range existing {
		if e.Version > maxVersion {
			maxVersion = e.Version
		}
		if e.EffectiveUntil == nil {
			// The open predecessor gives way: end-date it at the period
			// before the new version starts.
			if !e.EffectiveFrom.Before(t.EffectiveFrom) {
				return &schedule.TermOverlapError{
					CommitmentID: t.CommitmentID,
					NewFrom:      t.EffectiveFrom,
					ExistingTerm: e.ID,
					ExistingFrom: e.EffectiveFrom,
				}
			}
			until := t.EffectiveFrom.Previous()
			if _, err := sqlTx.ExecContext(ctx,
				`UPDATE terms SET effective_until = ? WHERE id = ?`,
				until.Key(), e.ID); err != nil {
				return fmt.Errorf("failed to close previous term: %w", err)
			}
			continue
		}
		if t.Overlaps(e) {
			return &schedule.TermOverlapError{
				CommitmentID: t.CommitmentID,
				NewFrom:      t.EffectiveFrom,
				ExistingTerm: e.ID,
				ExistingFrom: e.EffectiveFrom,
			}
		}
	}
	t.Version = maxVersion + 1

	query := `
		INSERT INTO terms
		(id, commitment_id, version, amount_value, amount_currency, frequency, due_day,
		 installments_count, divided_amount, effective_from, effective_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sqlTx.ExecContext(ctx, query,
		t.ID,
		t.CommitmentID,
		t.Version,
		t.Amount.Value.String(),
		t.Amount.Currency,
		t.Frequency,
		t.DueDay,
		nullableInt(t.InstallmentsCount),
		boolToInt(t.DividedAmount),
		t.EffectiveFrom.Key(),
		nullablePeriod(t.EffectiveUntil),
		t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert term: %w", err)
	}

	return sqlTx.Commit()
}

func (s *Store) GetTerm(ctx context.Context, id schedule.TermID) (*schedule.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+termColumns+` FROM terms WHERE id = ?`, id)
	t, err := scanTerm(row)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrTermNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load term: %w", err)
	}
	return t, nil
}

func (s *Store) CloseTerm(ctx context.Context, id schedule.TermID, until schedule.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+termColumns+` FROM terms WHERE id = ?`, id)
	t, err := scanTerm(row)
	if err == sql.ErrNoRows {
		return schedule.ErrTermNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load term: %w", err)
	}
	if t.EffectiveUntil != nil {
		return schedule.ErrTermClosed
	}
	if until.Before(t.EffectiveFrom) {
		until = t.EffectiveFrom
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE terms SET effective_until = ? WHERE id = ?`, until.Key(), id)
	if err != nil {
		return fmt.Errorf("failed to close term: %w", err)
	}
	return nil
}

func (s *Store) ListTermsFor(ctx context.Context, id schedule.CommitmentID) ([]schedule.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryTerms(ctx, s.db,
		`SELECT `+termColumns+` FROM terms WHERE commitment_id = ? ORDER BY version`, id)
}

func (s *Store) ListTerms(ctx context.Context) ([]schedule.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryTerms(ctx, s.db,
		`SELECT `+termColumns+` FROM terms ORDER BY commitment_id, version`)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) CreatePayment(ctx context.Context, p *schedule.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = schedule.PaymentID(uuid.NewString())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payments
		(id, commitment_id, period, payment_date, amount_value, amount_currency, exchange_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.CommitmentID,
		p.Period.Key(),
		nullableTime(p.PaymentDate),
		nullableAmountValue(p.Amount),
		nullableAmountCurrency(p.Amount),
		nullableDecimal(p.ExchangeRate),
		p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &schedule.DuplicatePaymentError{
				CommitmentID: p.CommitmentID,
				Period:       p.Period,
			}
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id schedule.PaymentID) (*schedule.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *schedule.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET commitment_id = ?, period = ?, payment_date = ?, amount_value = ?, amount_currency = ?, exchange_rate = ?
		WHERE id = ?
	`,
		p.CommitmentID,
		p.Period.Key(),
		nullableTime(p.PaymentDate),
		nullableAmountValue(p.Amount),
		nullableAmountCurrency(p.Amount),
		nullableDecimal(p.ExchangeRate),
		p.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &schedule.DuplicatePaymentError{
				CommitmentID: p.CommitmentID,
				Period:       p.Period,
			}
		}
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return requireAffected(res, schedule.ErrPaymentNotFound)
}

func (s *Store) DeletePayment(ctx context.Context, id schedule.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return requireAffected(res, schedule.ErrPaymentNotFound)
}

func (s *Store) ListPaymentsFor(ctx context.Context, id schedule.CommitmentID) ([]schedule.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryPayments(ctx, s.db,
		`SELECT `+paymentColumns+` FROM payments WHERE commitment_id = ? ORDER BY period`, id)
}

func (s *Store) ListPayments(ctx context.Context) ([]schedule.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryPayments(ctx, s.db,
		`SELECT `+paymentColumns+` FROM payments ORDER BY commitment_id, period`)
}

// =============================================================================
// SCANNING
// =============================================================================

const termColumns = `id, commitment_id, version, amount_value, amount_currency, frequency, due_day,
	installments_count, divided_amount, effective_from, effective_until, created_at`

const paymentColumns = `id, commitment_id, period, payment_date, amount_value, amount_currency,
	exchange_rate, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanCommitment(row rowScanner) (*schedule.Commitment, error) {
	var (
		c          schedule.Commitment
		important  int
		archived   int
		pairedWith sql.NullString
		createdAt  string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Flow, &important, &c.CategoryID,
		&pairedWith, &c.Notes, &archived, &createdAt); err != nil {
		return nil, err
	}
	c.Important = important != 0
	c.Archived = archived != 0
	if pairedWith.Valid {
		id := schedule.CommitmentID(pairedWith.String)
		c.PairedWith = &id
	}
	var err error
	c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	return &c, nil
}

func scanTerm(row rowScanner) (*schedule.Term, error) {
	var (
		t           schedule.Term
		amountValue string
		count       sql.NullInt64
		divided     int
		from        string
		until       sql.NullString
		createdAt   string
	)
	if err := row.Scan(&t.ID, &t.CommitmentID, &t.Version, &amountValue, &t.Amount.Currency,
		&t.Frequency, &t.DueDay, &count, &divided, &from, &until, &createdAt); err != nil {
		return nil, err
	}

	var err error
	t.Amount.Value, err = decimal.NewFromString(amountValue)
	if err != nil {
		return nil, fmt.Errorf("invalid amount_value: %w", err)
	}
	if count.Valid {
		n := int(count.Int64)
		t.InstallmentsCount = &n
	}
	t.DividedAmount = divided != 0
	t.EffectiveFrom, err = schedule.ParsePeriod(from)
	if err != nil {
		return nil, fmt.Errorf("invalid effective_from: %w", err)
	}
	if until.Valid {
		p, err := schedule.ParsePeriod(until.String)
		if err != nil {
			return nil, fmt.Errorf("invalid effective_until: %w", err)
		}
		t.EffectiveUntil = &p
	}
	t.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	return &t, nil
}

func scanPayment(row rowScanner) (*schedule.Payment, error) {
	var (
		p         schedule.Payment
		period    string
		paidAt    sql.NullString
		value     sql.NullString
		currency  sql.NullString
		rate      sql.NullString
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.CommitmentID, &period, &paidAt,
		&value, &currency, &rate, &createdAt); err != nil {
		return nil, err
	}

	var err error
	p.Period, err = schedule.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("invalid period: %w", err)
	}
	if paidAt.Valid {
		ts, err := time.Parse(time.RFC3339, paidAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid payment_date: %w", err)
		}
		p.PaymentDate = &ts
	}
	if value.Valid {
		v, err := decimal.NewFromString(value.String)
		if err != nil {
			return nil, fmt.Errorf("invalid amount_value: %w", err)
		}
		p.Amount = &schedule.Money{Value: v, Currency: schedule.Currency(currency.String)}
	}
	if rate.Valid {
		r, err := decimal.NewFromString(rate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid exchange_rate: %w", err)
		}
		p.ExchangeRate = &r
	}
	p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	return &p, nil
}

func queryTerms(ctx context.Context, q querier, query string, args ...any) ([]schedule.Term, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	defer rows.Close()

	var out []schedule.Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func queryPayments(ctx context.Context, q querier, query string, args ...any) ([]schedule.Payment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []schedule.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// normalizeTermWindow writes the window end implied by a finite installment
// count back into effective_until, so count and window cannot drift apart.
func normalizeTermWindow(t *schedule.Term) {
	if last, ok := t.LastInstallmentPeriod(); ok {
		if t.EffectiveUntil == nil || last.Before(*t.EffectiveUntil) {
			t.EffectiveUntil = &last
		}
	}
}

func requireAffected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableID(id *schedule.CommitmentID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullablePeriod(p *schedule.Period) any {
	if p == nil {
		return nil
	}
	return p.Key()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func nullableAmountValue(m *schedule.Money) any {
	if m == nil {
		return nil
	}
	return m.Value.String()
}

func nullableAmountCurrency(m *schedule.Money) any {
	if m == nil {
		return nil
	}
	return string(m.Currency)
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

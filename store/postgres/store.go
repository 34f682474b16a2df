// Package postgres implements store.Store on PostgreSQL through the grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	loanstore "github.com/xraph/loanbook/store"
)

// compile-time interface check
var _ loanstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// Loans carry a running paid total next to remaining. Payments and principal
// edits are single statements that read and write the loan row under its row
// lock, so concurrent writers never lose an update.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("loanbook/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("loanbook/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Loan Store ====================

func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	m := toLoanModel(l)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return loanbook.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetLoan(ctx context.Context, ownerID string, loanID id.LoanID) (*loan.Loan, error) {
	m := new(loanModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", loanID.String()).
		Where("owner_id = $2", ownerID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, loanbook.ErrLoanNotFound
		}
		return nil, err
	}
	return fromLoanModel(m)
}

func (s *Store) ListLoans(ctx context.Context, ownerID string, opts loan.ListOpts) ([]*loan.Loan, error) {
	var models []loanModel
	q := s.pg.NewSelect(&models).Where("owner_id = $1", ownerID)

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Direction != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("direction = $%d", argIdx), string(opts.Direction))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*loan.Loan, len(models))
	for i := range models {
		l, err := fromLoanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// UpdateLoan applies the non-nil fields of u. A principal change recomputes
// remaining and status from the row's paid total in the same statement.
func (s *Store) UpdateLoan(ctx context.Context, ownerID string, loanID id.LoanID, u loan.Update) (*loan.Loan, error) {
	var principal *int64
	if u.Principal != nil {
		principal = &u.Principal.Amount
	}
	var direction *string
	if u.Direction != nil {
		d := string(*u.Direction)
		direction = &d
	}

	updated, err := loanstore.RetryConflicts(ctx, isConflict, func() (int64, error) {
		var n int64
		err := s.pg.NewRaw(`
			WITH updated AS (
				UPDATE loanbook_loans SET
					person_name = COALESCE($1::TEXT, person_name),
					description = COALESCE($2::TEXT, description),
					direction   = COALESCE($3::TEXT, direction),
					principal   = COALESCE($4::BIGINT, principal),
					remaining   = GREATEST(COALESCE($4::BIGINT, principal) - paid, 0),
					status      = CASE WHEN COALESCE($4::BIGINT, principal) - paid > 0 THEN 'active' ELSE 'settled' END,
					updated_at  = $5
				WHERE id = $6 AND owner_id = $7
				RETURNING id
			)
			SELECT COUNT(*) FROM updated
		`, u.PersonName, u.Description, direction, principal, updatedAt(u.UpdatedAt),
			loanID.String(), ownerID).Scan(ctx, &n)
		return n, err
	})
	if err != nil {
		return nil, conflictError(err)
	}
	if updated == 0 {
		return nil, loanbook.ErrLoanNotFound
	}
	return s.GetLoan(ctx, ownerID, loanID)
}

func (s *Store) DeleteLoan(ctx context.Context, ownerID string, loanID id.LoanID) error {
	res, err := s.pg.NewDelete((*loanModel)(nil)).
		Where("id = $1", loanID.String()).
		Where("owner_id = $2", ownerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return loanbook.ErrLoanNotFound
	}
	return nil
}

// ==================== Payment Store ====================

// RecordPayment decrements the loan and inserts the payment in one statement.
// The loan UPDATE only matches while something is outstanding, and the
// payment row is inserted only if the UPDATE matched.
func (s *Store) RecordPayment(ctx context.Context, ownerID string, p *payment.Payment) (*loan.Loan, error) {
	inserted, err := loanstore.RetryConflicts(ctx, isConflict, func() (int64, error) {
		var n int64
		err := s.pg.NewRaw(`
			WITH applied AS (
				UPDATE loanbook_loans SET
					paid       = paid + $1,
					remaining  = GREATEST(remaining - $1, 0),
					status     = CASE WHEN remaining - $1 > 0 THEN 'active' ELSE 'settled' END,
					updated_at = $2
				WHERE id = $3 AND owner_id = $4 AND remaining > 0
				RETURNING id
			), recorded AS (
				INSERT INTO loanbook_payments (id, loan_id, currency, amount, payment_date, notes, created_at, updated_at)
				SELECT $5, applied.id, $6, $1, $7, $8, $2, $2 FROM applied
				RETURNING id
			)
			SELECT COUNT(*) FROM recorded
		`, p.Amount.Amount, p.CreatedAt, p.LoanID.String(), ownerID,
			p.ID.String(), p.Amount.Currency, p.PaymentDate, p.Notes).Scan(ctx, &n)
		return n, err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, loanbook.ErrAlreadyExists
		}
		return nil, conflictError(err)
	}
	if inserted == 0 {
		if _, err := s.GetLoan(ctx, ownerID, p.LoanID); err != nil {
			return nil, err
		}
		return nil, loanbook.ErrLoanSettled
	}
	return s.GetLoan(ctx, ownerID, p.LoanID)
}

func (s *Store) ListPayments(ctx context.Context, loanID id.LoanID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).Where("loan_id = $1", loanID.String())
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("payment_date DESC, created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func updatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == "23505"
}

// isConflict reports serialization failures, deadlocks and lock timeouts.
func isConflict(err error) bool {
	switch pgCode(err) {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func conflictError(err error) error {
	if isConflict(err) {
		return fmt.Errorf("%w: %w", loanbook.ErrConcurrencyConflict, err)
	}
	return err
}

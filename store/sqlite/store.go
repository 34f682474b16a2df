// Package sqlite implements store.Store on SQLite through the grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	loanstore "github.com/xraph/loanbook/store"
)

// compile-time interface check
var _ loanstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
//
// Applying a payment to its loan is done by triggers on loanbook_payments,
// so the insert and the balance update commit or fail together.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("loanbook/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("loanbook/sqlite: migration failed: %w", err)
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
	_, err := loanstore.RetryConflicts(ctx, isBusy, func() (struct{}, error) {
		_, err := s.sdb.NewInsert(m).Exec(ctx)
		return struct{}{}, err
	})
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return loanbook.ErrAlreadyExists
	}
	return busyError(err)
}

func (s *Store) GetLoan(ctx context.Context, ownerID string, loanID id.LoanID) (*loan.Loan, error) {
	m := new(loanModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", loanID.String()).
		Where("owner_id = ?", ownerID).
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
	q := s.sdb.NewSelect(&models).Where("owner_id = ?", ownerID)
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Direction != "" {
		q = q.Where("direction = ?", string(opts.Direction))
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

// UpdateLoan applies the non-nil fields of u. SET expressions read the
// pre-update row, so a new principal is settled against the stored paid total.
func (s *Store) UpdateLoan(ctx context.Context, ownerID string, loanID id.LoanID, u loan.Update) (*loan.Loan, error) {
	t := u.UpdatedAt
	if t.IsZero() {
		t = now()
	}

	q := s.sdb.NewUpdate((*loanModel)(nil)).Set("updated_at = ?", t)
	if u.PersonName != nil {
		q = q.Set("person_name = ?", *u.PersonName)
	}
	if u.Description != nil {
		q = q.Set("description = ?", *u.Description)
	}
	if u.Direction != nil {
		q = q.Set("direction = ?", string(*u.Direction))
	}
	if u.Principal != nil {
		amount := u.Principal.Amount
		q = q.Set("principal = ?", amount).
			Set("remaining = MAX(? - paid, 0)", amount).
			Set("status = CASE WHEN ? - paid > 0 THEN 'active' ELSE 'settled' END", amount)
	}
	q = q.Where("id = ?", loanID.String()).Where("owner_id = ?", ownerID)

	rows, err := loanstore.RetryConflicts(ctx, isBusy, func() (int64, error) {
		res, err := q.Exec(ctx)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return nil, busyError(err)
	}
	if rows == 0 {
		return nil, loanbook.ErrLoanNotFound
	}
	return s.GetLoan(ctx, ownerID, loanID)
}

func (s *Store) DeleteLoan(ctx context.Context, ownerID string, loanID id.LoanID) error {
	rows, err := loanstore.RetryConflicts(ctx, isBusy, func() (int64, error) {
		res, err := s.sdb.NewDelete((*loanModel)(nil)).
			Where("id = ?", loanID.String()).
			Where("owner_id = ?", ownerID).
			Exec(ctx)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return busyError(err)
	}
	if rows == 0 {
		return loanbook.ErrLoanNotFound
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) RecordPayment(ctx context.Context, ownerID string, p *payment.Payment) (*loan.Loan, error) {
	if _, err := s.GetLoan(ctx, ownerID, p.LoanID); err != nil {
		return nil, err
	}

	m := toPaymentModel(p)
	_, err := loanstore.RetryConflicts(ctx, isBusy, func() (struct{}, error) {
		_, err := s.sdb.NewInsert(m).Exec(ctx)
		return struct{}{}, err
	})
	if err != nil {
		switch {
		case strings.Contains(err.Error(), errMsgLoanSettled):
			return nil, loanbook.ErrLoanSettled
		case strings.Contains(err.Error(), errMsgLoanMissing):
			return nil, loanbook.ErrLoanNotFound
		}
		return nil, busyError(err)
	}
	return s.GetLoan(ctx, ownerID, p.LoanID)
}

func (s *Store) ListPayments(ctx context.Context, loanID id.LoanID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.sdb.NewSelect(&models).Where("loan_id = ?", loanID.String())
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isBusy reports a write that lost the database lock to another connection.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func busyError(err error) error {
	if isBusy(err) {
		return fmt.Errorf("%w: %w", loanbook.ErrConcurrencyConflict, err)
	}
	return err
}

package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the loanbook store (SQLite).
var Migrations = migrate.NewGroup("loanbook")

const (
	errMsgLoanMissing = "loanbook: loan not found"
	errMsgLoanSettled = "loanbook: loan already settled"
)

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_loanbook_loans",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loanbook_loans (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    person_name TEXT NOT NULL,
    currency    TEXT NOT NULL,
    principal   INTEGER NOT NULL CHECK (principal > 0),
    paid        INTEGER NOT NULL DEFAULT 0 CHECK (paid >= 0),
    remaining   INTEGER NOT NULL CHECK (remaining >= 0 AND remaining <= principal),
    direction   TEXT NOT NULL CHECK (direction IN ('owed_to_me', 'i_owe')),
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'settled')),
    created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_loanbook_loans_owner ON loanbook_loans (owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_loanbook_loans_owner_status ON loanbook_loans (owner_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loanbook_loans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loanbook_payments",
			Version: "20240601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS loanbook_payments (
    id           TEXT PRIMARY KEY,
    loan_id      TEXT NOT NULL,
    currency     TEXT NOT NULL,
    amount       INTEGER NOT NULL CHECK (amount > 0),
    payment_date DATETIME NOT NULL,
    notes        TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_loanbook_payments_loan ON loanbook_payments (loan_id, payment_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loanbook_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_loanbook_payment_triggers",
			Version: "20240601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TRIGGER IF NOT EXISTS loanbook_payments_guard
BEFORE INSERT ON loanbook_payments
BEGIN
    SELECT RAISE(ABORT, '`+errMsgLoanMissing+`')
    WHERE NOT EXISTS (SELECT 1 FROM loanbook_loans WHERE id = NEW.loan_id);
    SELECT RAISE(ABORT, '`+errMsgLoanSettled+`')
    WHERE (SELECT remaining FROM loanbook_loans WHERE id = NEW.loan_id) <= 0;
END;

CREATE TRIGGER IF NOT EXISTS loanbook_payments_apply
AFTER INSERT ON loanbook_payments
BEGIN
    UPDATE loanbook_loans SET
        paid       = paid + NEW.amount,
        remaining  = MAX(remaining - NEW.amount, 0),
        status     = CASE WHEN remaining - NEW.amount > 0 THEN 'active' ELSE 'settled' END,
        updated_at = NEW.created_at
    WHERE id = NEW.loan_id;
END;

CREATE TRIGGER IF NOT EXISTS loanbook_loans_cascade
AFTER DELETE ON loanbook_loans
BEGIN
    DELETE FROM loanbook_payments WHERE loan_id = OLD.id;
END;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS loanbook_loans_cascade;
DROP TRIGGER IF EXISTS loanbook_payments_apply;
DROP TRIGGER IF EXISTS loanbook_payments_guard;
`)
				return err
			},
		},
	)
}

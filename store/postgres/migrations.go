package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the loanbook store.
var Migrations = migrate.NewGroup("loanbook")

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
    principal   BIGINT NOT NULL CHECK (principal > 0),
    paid        BIGINT NOT NULL DEFAULT 0 CHECK (paid >= 0),
    remaining   BIGINT NOT NULL CHECK (remaining >= 0 AND remaining <= principal),
    direction   TEXT NOT NULL CHECK (direction IN ('owed_to_me', 'i_owe')),
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'settled')),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT loanbook_loans_remaining_derived CHECK (remaining = GREATEST(principal - paid, 0)),
    CONSTRAINT loanbook_loans_status_derived CHECK ((status = 'settled') = (remaining = 0))
);

CREATE INDEX IF NOT EXISTS idx_loanbook_loans_owner ON loanbook_loans (owner_id, created_at DESC);
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
    loan_id      TEXT NOT NULL REFERENCES loanbook_loans (id) ON DELETE CASCADE,
    currency     TEXT NOT NULL,
    amount       BIGINT NOT NULL CHECK (amount > 0),
    payment_date TIMESTAMPTZ NOT NULL,
    notes        TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loanbook_payments_loan ON loanbook_payments (loan_id, payment_date DESC, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS loanbook_payments`)
				return err
			},
		},
	)
}

// Package plugin provides an extensible plugin system for loanbook.
// Plugins hook into ledger events to add auditing, metrics, notifications
// and the like without touching the engine.
package plugin

import (
	"context"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Loan lifecycle hooks
// ──────────────────────────────────────────────────

// OnLoanCreated is called after a loan is persisted.
type OnLoanCreated interface {
	Plugin
	OnLoanCreated(ctx context.Context, l *loan.Loan) error
}

// OnLoanUpdated is called after a loan edit is persisted.
type OnLoanUpdated interface {
	Plugin
	OnLoanUpdated(ctx context.Context, before, after *loan.Loan) error
}

// OnLoanDeleted is called after a loan and its payments are removed.
type OnLoanDeleted interface {
	Plugin
	OnLoanDeleted(ctx context.Context, ownerID string, loanID id.LoanID) error
}

// OnLoanSettled is called when a loan's remaining balance reaches zero.
type OnLoanSettled interface {
	Plugin
	OnLoanSettled(ctx context.Context, l *loan.Loan) error
}

// OnLoanReopened is called when a principal edit leaves a settled loan
// with an outstanding balance again.
type OnLoanReopened interface {
	Plugin
	OnLoanReopened(ctx context.Context, l *loan.Loan) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called after a payment has been applied.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, p *payment.Payment, l *loan.Loan) error
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed is called when a ledger operation returns an error.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op string, err error) error
}

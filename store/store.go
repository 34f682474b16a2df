package store

import (
	"context"

	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
)

// Store is the unified storage interface for loanbook entities.
type Store interface {
	loan.Store
	payment.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

package loan

import (
	"context"

	"github.com/xraph/loanbook/id"
)

// Store persists loans. Every lookup is scoped to the owner: a loan that
// belongs to someone else is reported exactly like a missing one.
type Store interface {
	CreateLoan(ctx context.Context, l *Loan) error
	GetLoan(ctx context.Context, ownerID string, loanID id.LoanID) (*Loan, error)
	ListLoans(ctx context.Context, ownerID string, opts ListOpts) ([]*Loan, error)
	// UpdateLoan applies u and returns the stored result. When u.Principal is
	// set, remaining becomes max(0, principal - sum(payments)) and status is
	// derived from it in the same atomic step.
	UpdateLoan(ctx context.Context, ownerID string, loanID id.LoanID, u Update) (*Loan, error)
	// DeleteLoan removes the loan together with its payments.
	DeleteLoan(ctx context.Context, ownerID string, loanID id.LoanID) error
}

type ListOpts struct {
	Status    Status
	Direction Direction
	Limit     int
	Offset    int
}

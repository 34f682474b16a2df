package payment

import (
	"context"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
)

// Store persists payments. There is no update or delete: payment history is final.
type Store interface {
	// RecordPayment inserts p and applies it to the owning loan as one atomic
	// unit: remaining = max(0, remaining - amount), status re-derived,
	// updated_at = p.CreatedAt. It returns the loan as stored afterwards.
	// Clamping covers overpayment only. Rejecting a payment against a loan
	// with nothing outstanding is a separate rule: such calls fail with
	// loanbook.ErrLoanSettled and store nothing.
	RecordPayment(ctx context.Context, ownerID string, p *Payment) (*loan.Loan, error)
	// ListPayments returns the payments of a loan, newest payment date first.
	ListPayments(ctx context.Context, loanID id.LoanID, opts ListOpts) ([]*Payment, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}

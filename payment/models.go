package payment

import (
	"time"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/types"
)

// Payment is an immutable record of money moving against a loan.
type Payment struct {
	types.Entity
	ID          id.PaymentID `json:"id"`
	LoanID      id.LoanID    `json:"loanId"`
	Amount      types.Money  `json:"amount"`
	PaymentDate time.Time    `json:"paymentDate"`
	Notes       string       `json:"notes"`
}

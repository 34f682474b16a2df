package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/types"
)

// ==================== Loan models ====================

type loanModel struct {
	grove.BaseModel `grove:"table:loanbook_loans"`

	ID          string    `grove:"id,pk"`
	OwnerID     string    `grove:"owner_id"`
	PersonName  string    `grove:"person_name"`
	Currency    string    `grove:"currency"`
	Principal   int64     `grove:"principal"`
	Paid        int64     `grove:"paid"`
	Remaining   int64     `grove:"remaining"`
	Direction   string    `grove:"direction"`
	Description string    `grove:"description"`
	Status      string    `grove:"status"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toLoanModel(l *loan.Loan) *loanModel {
	return &loanModel{
		ID:          l.ID.String(),
		OwnerID:     l.OwnerID,
		PersonName:  l.PersonName,
		Currency:    l.Principal.Currency,
		Principal:   l.Principal.Amount,
		Paid:        l.Principal.Amount - l.Remaining.Amount,
		Remaining:   l.Remaining.Amount,
		Direction:   string(l.Direction),
		Description: l.Description,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func fromLoanModel(m *loanModel) (*loan.Loan, error) {
	loanID, err := id.ParseLoanID(m.ID)
	if err != nil {
		return nil, err
	}
	return &loan.Loan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:          loanID,
		OwnerID:     m.OwnerID,
		PersonName:  m.PersonName,
		Principal:   types.New(m.Principal, m.Currency),
		Remaining:   types.New(m.Remaining, m.Currency),
		Direction:   loan.Direction(m.Direction),
		Description: m.Description,
		Status:      loan.Status(m.Status),
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:loanbook_payments"`

	ID          string    `grove:"id,pk"`
	LoanID      string    `grove:"loan_id"`
	Currency    string    `grove:"currency"`
	Amount      int64     `grove:"amount"`
	PaymentDate time.Time `grove:"payment_date"`
	Notes       string    `grove:"notes"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		LoanID:      p.LoanID.String(),
		Currency:    p.Amount.Currency,
		Amount:      p.Amount.Amount,
		PaymentDate: p.PaymentDate,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	loanID, err := id.ParseLoanID(m.LoanID)
	if err != nil {
		return nil, err
	}
	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:          payID,
		LoanID:      loanID,
		Amount:      types.New(m.Amount, m.Currency),
		PaymentDate: m.PaymentDate.UTC(),
		Notes:       m.Notes,
	}, nil
}

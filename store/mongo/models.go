package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/types"
)

// ==================== Loan models ====================

// loanModel is the loan document. Payments live in a "payments" array on the
// same document and are only touched through pipeline updates, so the field
// is not mapped here.
type loanModel struct {
	grove.BaseModel `grove:"table:loanbook_loans"`

	ID          string    `grove:"id,pk"       bson:"_id"`
	OwnerID     string    `grove:"owner_id"    bson:"owner_id"`
	PersonName  string    `grove:"person_name" bson:"person_name"`
	Currency    string    `grove:"currency"    bson:"currency"`
	Principal   int64     `grove:"principal"   bson:"principal"`
	Paid        int64     `grove:"paid"        bson:"paid"`
	Remaining   int64     `grove:"remaining"   bson:"remaining"`
	Direction   string    `grove:"direction"   bson:"direction"`
	Description string    `grove:"description" bson:"description"`
	Status      string    `grove:"status"      bson:"status"`
	CreatedAt   time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"  bson:"updated_at"`
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

// paymentModel is an element of a loan document's payments array.
type paymentModel struct {
	ID          string    `bson:"id"`
	LoanID      string    `bson:"loan_id"`
	Currency    string    `bson:"currency"`
	Amount      int64     `bson:"amount"`
	PaymentDate time.Time `bson:"payment_date"`
	Notes       string    `bson:"notes"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
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

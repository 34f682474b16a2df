package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/types"
)

// Amounts arrive in major units as JSON numbers or strings.

type createLoanRequest struct {
	PersonName  string           `json:"personName"`
	Principal   *decimal.Decimal `json:"principal"`
	Direction   loan.Direction   `json:"direction"`
	Description string           `json:"description"`
}

type updateLoanRequest struct {
	PersonName  *string          `json:"personName"`
	Description *string          `json:"description"`
	Direction   *loan.Direction  `json:"direction"`
	Status      *loan.Status     `json:"status"`
	Principal   *decimal.Decimal `json:"principal"`
}

type recordPaymentRequest struct {
	LoanID      string           `json:"loanId"`
	Amount      *decimal.Decimal `json:"amount"`
	PaymentDate paymentDate      `json:"paymentDate"`
	Notes       string           `json:"notes"`
}

// paymentDate accepts "2006-01-02" or RFC 3339. Empty means unset. A bare
// date is a calendar day and carries no time zone.
type paymentDate struct {
	time.Time
	dateOnly bool
}

func (d *paymentDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = paymentDate{}
		return nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		*d = paymentDate{Time: t.UTC(), dateOnly: true}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("paymentDate %q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	*d = paymentDate{Time: t.UTC()}
	return nil
}

func toMoney(field string, v *decimal.Decimal, currency string) (types.Money, error) {
	if v == nil {
		return types.Money{}, loanbook.ValidationError{Field: field, Message: "is required"}
	}
	m, err := types.ParseMoney(*v, currency)
	if err != nil {
		return types.Money{}, loanbook.ValidationError{Field: field, Message: err.Error()}
	}
	return m, nil
}

func (r createLoanRequest) input(currency string) (loanbook.CreateLoanInput, error) {
	principal, err := toMoney("principal", r.Principal, currency)
	if err != nil {
		return loanbook.CreateLoanInput{}, err
	}
	return loanbook.CreateLoanInput{
		PersonName:  r.PersonName,
		Principal:   principal,
		Direction:   r.Direction,
		Description: r.Description,
	}, nil
}

func (r updateLoanRequest) patch(currency string) (loanbook.LoanPatch, error) {
	p := loanbook.LoanPatch{
		PersonName:  r.PersonName,
		Description: r.Description,
		Direction:   r.Direction,
		Status:      r.Status,
	}
	if r.Principal != nil {
		principal, err := toMoney("principal", r.Principal, currency)
		if err != nil {
			return loanbook.LoanPatch{}, err
		}
		p.Principal = &principal
	}
	return p, nil
}

func (r recordPaymentRequest) input(currency string) (loanbook.RecordPaymentInput, error) {
	loanID, err := loanbook.ParseLoanID(r.LoanID)
	if err != nil {
		return loanbook.RecordPaymentInput{}, err
	}
	amount, err := toMoney("amount", r.Amount, currency)
	if err != nil {
		return loanbook.RecordPaymentInput{}, err
	}
	return loanbook.RecordPaymentInput{
		LoanID:      loanID,
		Amount:      amount,
		PaymentDate: r.PaymentDate.Time,
		DateOnly:    r.PaymentDate.dateOnly,
		Notes:       r.Notes,
	}, nil
}

package loan

import (
	"time"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/types"
)

// Direction says which side of the loan the owner is on.
type Direction string

const (
	DirectionOwedToMe Direction = "owed_to_me"
	DirectionIOwe     Direction = "i_owe"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionOwedToMe || d == DirectionIOwe
}

type Status string

const (
	StatusActive  Status = "active"
	StatusSettled Status = "settled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSettled
}

// StatusFor returns the status implied by an outstanding balance.
func StatusFor(remaining types.Money) Status {
	if remaining.IsPositive() {
		return StatusActive
	}
	return StatusSettled
}

type Loan struct {
	types.Entity
	ID          id.LoanID   `json:"id"`
	OwnerID     string      `json:"ownerId"`
	PersonName  string      `json:"personName"`
	Principal   types.Money `json:"principal"`
	Remaining   types.Money `json:"remaining"`
	Direction   Direction   `json:"direction"`
	Description string      `json:"description"`
	Status      Status      `json:"status"`
}

// Paid returns principal minus remaining.
func (l *Loan) Paid() types.Money {
	return l.Principal.Subtract(l.Remaining)
}

// Clone returns a copy of l.
func (l *Loan) Clone() *Loan {
	c := *l
	return &c
}

// Update is a partial modification of a loan. Nil fields are left unchanged.
// Remaining and Status are never written directly: a Principal change makes
// the store recompute both from the payment history.
type Update struct {
	PersonName  *string
	Description *string
	Direction   *Direction
	Principal   *types.Money
	UpdatedAt   time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.PersonName == nil && u.Description == nil && u.Direction == nil && u.Principal == nil
}

package loanbook

import "github.com/xraph/loanbook/id"

// ID is the identifier type for loanbook entities.
type ID = id.ID

// ParseLoanID parses a "loan_" prefixed identifier. Malformed input is
// reported as a validation error.
func ParseLoanID(s string) (id.LoanID, error) {
	lid, err := id.ParseLoanID(s)
	if err != nil {
		return id.Nil, ValidationError{Field: "loanId", Message: "is not a valid loan id"}
	}
	return lid, nil
}

// Package loanbook is a personal ledger for informal loans between people.
//
// A user records money lent to or borrowed from someone, then records
// partial payments until the loan is settled. The Ledger engine keeps each
// loan's remaining balance, status and payment history consistent with one
// another, even when payments for the same loan arrive concurrently, and
// scopes every operation to the owner that created the loan.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/loanbook"
//	    "github.com/xraph/loanbook/store/memory"
//	)
//
//	l := loanbook.New(memory.New(), loanbook.WithCurrency("usd"))
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	ln, err := l.CreateLoan(ctx, ownerID, loanbook.CreateLoanInput{
//	    PersonName: "Bob",
//	    Principal:  types.USD(10000),
//	    Direction:  loan.DirectionOwedToMe,
//	})
//
//	res, err := l.RecordPayment(ctx, ownerID, loanbook.RecordPaymentInput{
//	    LoanID: ln.ID,
//	    Amount: types.USD(3000),
//	})
//	// res.Loan.Remaining == $70.00
//
// # Consistency rules
//
// For every loan, remaining equals max(0, principal minus the sum of its
// payments), and status is settled exactly when remaining is zero. Payments
// larger than the balance settle the loan rather than driving it negative.
// A loan that belongs to another owner is indistinguishable from one that
// does not exist.
//
// # Storage
//
// Stores implement store.Store. Available backends are memory,
// postgres, sqlite and mongo. Each applies a payment and its balance
// change as one atomic step.
//
// # Plugins
//
// Plugins observe ledger events through the hooks in package plugin. The
// audit_hook and observability packages are ready-made plugins.
package loanbook

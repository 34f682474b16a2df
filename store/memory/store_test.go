package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/types"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func seedLoan(t *testing.T, s *Store, owner string, principal int64, created time.Time) *loan.Loan {
	t.Helper()
	l := &loan.Loan{
		Entity:     types.NewEntity(created),
		ID:         id.NewLoanID(),
		OwnerID:    owner,
		PersonName: "Sam",
		Principal:  types.USD(principal),
		Remaining:  types.USD(principal),
		Direction:  loan.DirectionOwedToMe,
		Status:     loan.StatusActive,
	}
	if err := s.CreateLoan(context.Background(), l); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	return l
}

func pay(loanID id.LoanID, amount int64, date time.Time) *payment.Payment {
	return &payment.Payment{
		Entity:      types.NewEntity(date),
		ID:          id.NewPaymentID(),
		LoanID:      loanID,
		Amount:      types.USD(amount),
		PaymentDate: date,
	}
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	s := New()
	l := seedLoan(t, s, "alice", 10000, base)

	got, err := s.RecordPayment(ctx, "alice", pay(l.ID, 2500, base.Add(time.Hour)))
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if got.Remaining.Amount != 7500 || got.Status != loan.StatusActive {
		t.Errorf("after partial payment: remaining=%d status=%s", got.Remaining.Amount, got.Status)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v", got.UpdatedAt)
	}

	got, err = s.RecordPayment(ctx, "alice", pay(l.ID, 9000, base.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if !got.Remaining.IsZero() || got.Status != loan.StatusSettled {
		t.Errorf("after overpayment: remaining=%d status=%s", got.Remaining.Amount, got.Status)
	}

	_, err = s.RecordPayment(ctx, "alice", pay(l.ID, 100, base.Add(3*time.Hour)))
	if !errors.Is(err, loanbook.ErrLoanSettled) {
		t.Errorf("payment on settled loan: err = %v, want ErrLoanSettled", err)
	}

	_, err = s.RecordPayment(ctx, "bob", pay(l.ID, 100, base))
	if !errors.Is(err, loanbook.ErrLoanNotFound) {
		t.Errorf("foreign owner: err = %v, want ErrLoanNotFound", err)
	}
}

func TestUpdateLoanPrincipal(t *testing.T) {
	ctx := context.Background()
	s := New()
	l := seedLoan(t, s, "alice", 10000, base)
	if _, err := s.RecordPayment(ctx, "alice", pay(l.ID, 4000, base)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		principal int64
		remaining int64
		status    loan.Status
	}{
		{"raise", 15000, 11000, loan.StatusActive},
		{"below paid", 3000, 0, loan.StatusSettled},
		{"exactly paid", 4000, 0, loan.StatusSettled},
		{"reopen", 5000, 1000, loan.StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := types.USD(tt.principal)
			got, err := s.UpdateLoan(ctx, "alice", l.ID, loan.Update{Principal: &p, UpdatedAt: base})
			if err != nil {
				t.Fatalf("UpdateLoan: %v", err)
			}
			if got.Remaining.Amount != tt.remaining || got.Status != tt.status {
				t.Errorf("remaining=%d status=%s, want %d %s", got.Remaining.Amount, got.Status, tt.remaining, tt.status)
			}
		})
	}
}

func TestListLoansFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	first := seedLoan(t, s, "alice", 100, base)
	second := seedLoan(t, s, "alice", 200, base.Add(time.Minute))
	seedLoan(t, s, "bob", 300, base)

	loans, err := s.ListLoans(ctx, "alice", loan.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(loans) != 2 || loans[0].ID.String() != second.ID.String() || loans[1].ID.String() != first.ID.String() {
		t.Fatalf("ListLoans returned %d loans in wrong order", len(loans))
	}

	loans, _ = s.ListLoans(ctx, "alice", loan.ListOpts{Limit: 1, Offset: 1})
	if len(loans) != 1 || loans[0].ID.String() != first.ID.String() {
		t.Errorf("paged ListLoans = %v", loans)
	}

	loans, _ = s.ListLoans(ctx, "alice", loan.ListOpts{Status: loan.StatusSettled})
	if len(loans) != 0 {
		t.Errorf("settled filter returned %d loans", len(loans))
	}
}

func TestListPaymentsOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	l := seedLoan(t, s, "alice", 10000, base)

	older := pay(l.ID, 100, base)
	newer := pay(l.ID, 100, base.Add(24*time.Hour))
	sameDayLater := pay(l.ID, 100, base)
	sameDayLater.CreatedAt = base.Add(time.Minute)
	for _, p := range []*payment.Payment{older, newer, sameDayLater} {
		if _, err := s.RecordPayment(ctx, "alice", p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListPayments(ctx, l.ID, payment.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	want := []id.PaymentID{newer.ID, sameDayLater.ID, older.ID}
	for i := range want {
		if got[i].ID.String() != want[i].String() {
			t.Errorf("payments[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestDeleteLoanCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	l := seedLoan(t, s, "alice", 10000, base)
	if _, err := s.RecordPayment(ctx, "alice", pay(l.ID, 100, base)); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteLoan(ctx, "bob", l.ID); !errors.Is(err, loanbook.ErrLoanNotFound) {
		t.Errorf("foreign delete: err = %v", err)
	}
	if err := s.DeleteLoan(ctx, "alice", l.ID); err != nil {
		t.Fatalf("DeleteLoan: %v", err)
	}
	if ps, _ := s.ListPayments(ctx, l.ID, payment.ListOpts{}); len(ps) != 0 {
		t.Errorf("payments survived delete: %d", len(ps))
	}
}

func TestClosedStore(t *testing.T) {
	s := New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, loanbook.ErrStoreClosed) {
		t.Errorf("Ping after Close: err = %v", err)
	}
	if _, err := s.ListLoans(context.Background(), "alice", loan.ListOpts{}); !errors.Is(err, loanbook.ErrStoreClosed) {
		t.Errorf("ListLoans after Close: err = %v", err)
	}
}

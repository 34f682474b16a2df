package loanbook_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/loanbook"
	audithook "github.com/xraph/loanbook/audit_hook"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/store/memory"
	"github.com/xraph/loanbook/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		store := memory.New()

		l := loanbook.New(store,
			loanbook.WithLogger(slog.New(slog.DiscardHandler)),
			loanbook.WithCurrency("usd"),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		ownerID := "user-123"
		ln, err := l.CreateLoan(ctx, ownerID, loanbook.CreateLoanInput{
			PersonName: "Bob",
			Principal:  types.USD(10000),
			Direction:  loan.DirectionOwedToMe,
		})
		if err != nil {
			t.Fatal(err)
		}

		res, err := l.RecordPayment(ctx, ownerID, loanbook.RecordPaymentInput{
			LoanID: ln.ID,
			Amount: types.USD(3000),
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.Loan.Remaining.String() != "$70.00" {
			t.Errorf("expected $70.00 remaining, got %s", res.Loan.Remaining)
		}
	})

	t.Run("AuditPluginExample", func(t *testing.T) {
		var recorded []*audithook.AuditEvent
		recorder := audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
			recorded = append(recorded, evt)
			return nil
		})

		l := loanbook.New(memory.New(),
			loanbook.WithLogger(slog.New(slog.DiscardHandler)),
			loanbook.WithPlugin(audithook.New(recorder)),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		ln, err := l.CreateLoan(ctx, "user-123", loanbook.CreateLoanInput{
			PersonName: "Bob",
			Principal:  types.USD(500),
			Direction:  loan.DirectionIOwe,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.RecordPayment(ctx, "user-123", loanbook.RecordPaymentInput{LoanID: ln.ID, Amount: types.USD(500)}); err != nil {
			t.Fatal(err)
		}

		want := []string{audithook.ActionLoanCreated, audithook.ActionPaymentRecorded, audithook.ActionLoanSettled}
		if len(recorded) != len(want) {
			t.Fatalf("expected %d audit events, got %d", len(want), len(recorded))
		}
		for i, action := range want {
			if recorded[i].Action != action {
				t.Errorf("event %d: got %q, want %q", i, recorded[i].Action, action)
			}
		}
	})
}

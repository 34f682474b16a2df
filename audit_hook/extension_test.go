package audithook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/types"
)

type captured struct {
	events []*AuditEvent
}

func (c *captured) Record(_ context.Context, evt *AuditEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func sampleLoan() *loan.Loan {
	return &loan.Loan{
		ID:         id.NewLoanID(),
		OwnerID:    "owner-1",
		PersonName: "Bob",
		Principal:  types.USD(10000),
		Remaining:  types.USD(7000),
		Direction:  loan.DirectionOwedToMe,
		Status:     loan.StatusActive,
	}
}

func TestPaymentRecordedEvent(t *testing.T) {
	c := &captured{}
	e := New(c)
	l := sampleLoan()
	p := &payment.Payment{
		ID:          id.NewPaymentID(),
		LoanID:      l.ID,
		Amount:      types.USD(3000),
		PaymentDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := e.OnPaymentRecorded(context.Background(), p, l); err != nil {
		t.Fatal(err)
	}
	if len(c.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(c.events))
	}
	evt := c.events[0]
	if evt.Action != ActionPaymentRecorded || evt.ResourceID != p.ID.String() || evt.OwnerID != "owner-1" {
		t.Errorf("unexpected event: %+v", evt)
	}
	if evt.Metadata["amount"] != "$30.00" || evt.Metadata["payment_date"] != "2024-03-01" {
		t.Errorf("unexpected metadata: %v", evt.Metadata)
	}
}

func TestLoanUpdatedChangedFields(t *testing.T) {
	c := &captured{}
	e := New(c)
	before := sampleLoan()
	after := before.Clone()
	after.PersonName = "Robert"
	after.Principal = types.USD(5000)
	after.Remaining = types.USD(2000)

	if err := e.OnLoanUpdated(context.Background(), before, after); err != nil {
		t.Fatal(err)
	}
	changed, ok := c.events[0].Metadata["changed"].([]string)
	if !ok || len(changed) != 2 || changed[0] != "personName" || changed[1] != "principal" {
		t.Errorf("changed fields: %v", c.events[0].Metadata["changed"])
	}
	if c.events[0].Metadata["principal_after"] != "$50.00" {
		t.Errorf("principal_after: %v", c.events[0].Metadata["principal_after"])
	}
}

func TestEnabledActions(t *testing.T) {
	c := &captured{}
	e := New(c, WithDisabledActions(ActionLoanCreated))
	l := sampleLoan()

	_ = e.OnLoanCreated(context.Background(), l)
	_ = e.OnLoanSettled(context.Background(), l)

	if len(c.events) != 1 || c.events[0].Action != ActionLoanSettled {
		t.Errorf("expected only settled event, got %+v", c.events)
	}
}

func TestOperationFailed(t *testing.T) {
	ctx := context.Background()
	storageErr := &loanbook.StorageError{Op: "record payment", Err: errors.New("io")}

	t.Run("default skips rejections", func(t *testing.T) {
		c := &captured{}
		e := New(c)
		_ = e.OnOperationFailed(ctx, "record payment", loanbook.ErrLoanSettled)
		_ = e.OnOperationFailed(ctx, "record payment", storageErr)
		if len(c.events) != 1 || c.events[0].Severity != SeverityError {
			t.Errorf("expected one error event, got %+v", c.events)
		}
	})

	t.Run("with rejections", func(t *testing.T) {
		c := &captured{}
		e := New(c, WithRejections())
		_ = e.OnOperationFailed(ctx, "record payment", loanbook.ErrLoanSettled)
		if len(c.events) != 1 || c.events[0].Severity != SeverityWarning {
			t.Errorf("expected one warning event, got %+v", c.events)
		}
		if c.events[0].Reason == "" {
			t.Error("expected reason to carry the error")
		}
	})
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	failing := RecorderFunc(func(context.Context, *AuditEvent) error { return errors.New("down") })
	e := New(failing, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := e.OnLoanCreated(context.Background(), sampleLoan()); err != nil {
		t.Errorf("recorder failures must not propagate, got %v", err)
	}
}

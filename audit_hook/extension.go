// Package audithook bridges loanbook events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnLoanCreated     = (*Extension)(nil)
	_ plugin.OnLoanUpdated     = (*Extension)(nil)
	_ plugin.OnLoanDeleted     = (*Extension)(nil)
	_ plugin.OnLoanSettled     = (*Extension)(nil)
	_ plugin.OnLoanReopened    = (*Extension)(nil)
	_ plugin.OnPaymentRecorded = (*Extension)(nil)
	_ plugin.OnOperationFailed = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	OwnerID    string         `json:"owner_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges loanbook events to an audit trail backend.
type Extension struct {
	recorder        Recorder
	enabled         map[string]bool // nil = all enabled
	auditRejections bool
	logger          *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Loan lifecycle hooks
// ──────────────────────────────────────────────────

// OnLoanCreated implements plugin.OnLoanCreated.
func (e *Extension) OnLoanCreated(ctx context.Context, l *loan.Loan) error {
	return e.record(ctx, ActionLoanCreated, SeverityInfo, OutcomeSuccess,
		ResourceLoan, l.ID.String(), l.OwnerID, CategoryLending, nil,
		"person_name", l.PersonName,
		"principal", l.Principal.String(),
		"direction", string(l.Direction),
	)
}

// OnLoanUpdated implements plugin.OnLoanUpdated.
func (e *Extension) OnLoanUpdated(ctx context.Context, before, after *loan.Loan) error {
	kv := []any{"changed", changedFields(before, after)}
	if !before.Principal.Equal(after.Principal) {
		kv = append(kv,
			"principal_before", before.Principal.String(),
			"principal_after", after.Principal.String(),
			"remaining_after", after.Remaining.String(),
		)
	}
	return e.record(ctx, ActionLoanUpdated, SeverityInfo, OutcomeSuccess,
		ResourceLoan, after.ID.String(), after.OwnerID, CategoryLending, nil,
		kv...,
	)
}

// OnLoanDeleted implements plugin.OnLoanDeleted.
func (e *Extension) OnLoanDeleted(ctx context.Context, ownerID string, loanID id.LoanID) error {
	return e.record(ctx, ActionLoanDeleted, SeverityWarning, OutcomeSuccess,
		ResourceLoan, loanID.String(), ownerID, CategoryLending, nil,
	)
}

// OnLoanSettled implements plugin.OnLoanSettled.
func (e *Extension) OnLoanSettled(ctx context.Context, l *loan.Loan) error {
	return e.record(ctx, ActionLoanSettled, SeverityInfo, OutcomeSuccess,
		ResourceLoan, l.ID.String(), l.OwnerID, CategoryLending, nil,
		"principal", l.Principal.String(),
	)
}

// OnLoanReopened implements plugin.OnLoanReopened.
func (e *Extension) OnLoanReopened(ctx context.Context, l *loan.Loan) error {
	return e.record(ctx, ActionLoanReopened, SeverityWarning, OutcomeSuccess,
		ResourceLoan, l.ID.String(), l.OwnerID, CategoryLending, nil,
		"remaining", l.Remaining.String(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, p *payment.Payment, l *loan.Loan) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), l.OwnerID, CategoryPayment, nil,
		"loan_id", p.LoanID.String(),
		"amount", p.Amount.String(),
		"payment_date", p.PaymentDate.Format("2006-01-02"),
		"remaining", l.Remaining.String(),
	)
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, op string, opErr error) error {
	storage := errors.Is(opErr, loanbook.ErrStorageFailure)
	if !storage && !e.auditRejections {
		return nil
	}
	severity := SeverityWarning
	if storage {
		severity = SeverityError
	}
	return e.record(ctx, ActionOperationFailed, severity, OutcomeFailure,
		"", "", "", CategorySystem, opErr,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func changedFields(before, after *loan.Loan) []string {
	var changed []string
	if before.PersonName != after.PersonName {
		changed = append(changed, "personName")
	}
	if before.Description != after.Description {
		changed = append(changed, "description")
	}
	if before.Direction != after.Direction {
		changed = append(changed, "direction")
	}
	if !before.Principal.Equal(after.Principal) {
		changed = append(changed, "principal")
	}
	if before.Status != after.Status {
		changed = append(changed, "status")
	}
	return changed
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, ownerID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		OwnerID:    ownerID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

// Package observability provides a metrics plugin for loanbook that counts
// ledger events through a pluggable MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnLoanCreated     = (*MetricsExtension)(nil)
	_ plugin.OnLoanUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnLoanDeleted     = (*MetricsExtension)(nil)
	_ plugin.OnLoanSettled     = (*MetricsExtension)(nil)
	_ plugin.OnLoanReopened    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger event metrics.
// Register it as a loanbook plugin to track lending activity.
type MetricsExtension struct {
	// Loan metrics
	LoanCreated    Counter
	LoanUpdated    Counter
	LoanDeleted    Counter
	LoanSettled    Counter
	LoanReopened   Counter
	PrincipalEdits Counter
	LoanPrincipal  Histogram

	// Payment metrics
	PaymentRecorded Counter
	PaymentAmount   Histogram

	// Error metrics
	StoreErrors    Counter
	RejectedInputs Counter
	NotFound       Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		LoanCreated:    factory.Counter("loanbook.loan.created"),
		LoanUpdated:    factory.Counter("loanbook.loan.updated"),
		LoanDeleted:    factory.Counter("loanbook.loan.deleted"),
		LoanSettled:    factory.Counter("loanbook.loan.settled"),
		LoanReopened:   factory.Counter("loanbook.loan.reopened"),
		PrincipalEdits: factory.Counter("loanbook.loan.principal_edits"),
		LoanPrincipal:  factory.Histogram("loanbook.loan.principal_major"),

		PaymentRecorded: factory.Counter("loanbook.payment.recorded"),
		PaymentAmount:   factory.Histogram("loanbook.payment.amount_major"),

		StoreErrors:    factory.Counter("loanbook.store.errors"),
		RejectedInputs: factory.Counter("loanbook.requests.rejected"),
		NotFound:       factory.Counter("loanbook.requests.not_found"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Loan lifecycle hooks
// ──────────────────────────────────────────────────

// OnLoanCreated implements plugin.OnLoanCreated.
func (m *MetricsExtension) OnLoanCreated(_ context.Context, l *loan.Loan) error {
	m.LoanCreated.Inc()
	m.LoanPrincipal.Observe(l.Principal.Decimal().InexactFloat64())
	return nil
}

// OnLoanUpdated implements plugin.OnLoanUpdated.
func (m *MetricsExtension) OnLoanUpdated(_ context.Context, before, after *loan.Loan) error {
	m.LoanUpdated.Inc()
	if !before.Principal.Equal(after.Principal) {
		m.PrincipalEdits.Inc()
	}
	return nil
}

// OnLoanDeleted implements plugin.OnLoanDeleted.
func (m *MetricsExtension) OnLoanDeleted(_ context.Context, _ string, _ id.LoanID) error {
	m.LoanDeleted.Inc()
	return nil
}

// OnLoanSettled implements plugin.OnLoanSettled.
func (m *MetricsExtension) OnLoanSettled(_ context.Context, _ *loan.Loan) error {
	m.LoanSettled.Inc()
	return nil
}

// OnLoanReopened implements plugin.OnLoanReopened.
func (m *MetricsExtension) OnLoanReopened(_ context.Context, _ *loan.Loan) error {
	m.LoanReopened.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, p *payment.Payment, _ *loan.Loan) error {
	m.PaymentRecorded.Inc()
	m.PaymentAmount.Observe(p.Amount.Decimal().InexactFloat64())
	return nil
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ string, err error) error {
	switch {
	case errors.Is(err, loanbook.ErrStorageFailure):
		m.StoreErrors.Inc()
	case loanbook.IsNotFound(err):
		m.NotFound.Inc()
	case loanbook.IsInvalidInput(err):
		m.RejectedInputs.Inc()
	}
	return nil
}

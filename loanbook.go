package loanbook

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/plugin"
	"github.com/xraph/loanbook/store"
	"github.com/xraph/loanbook/types"
)

// DefaultCurrency is used when no currency option is given.
const DefaultCurrency = "usd"

// Ledger is the loan ledger engine. It owns the rules that keep a loan's
// remaining balance, status and payment history consistent.
type Ledger struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	currency string
	now      func() time.Time
	locks    *keyedMutex

	skipMigrate bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		currency: DefaultCurrency,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds how long a single plugin hook may run.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithCurrency sets the ISO 4217 currency all amounts must be in.
func WithCurrency(code string) Option {
	return func(l *Ledger) {
		if code != "" {
			l.currency = strings.ToLower(code)
		}
	}
}

// WithoutMigrate makes Start leave the schema alone.
func WithoutMigrate() Option {
	return func(l *Ledger) { l.skipMigrate = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = func() time.Time { return now().UTC() }
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if _, err := types.Fraction(l.currency); err != nil {
		return err
	}

	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return errors.Join(ErrMigrationFailed, err)
		}
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("loanbook started",
		"currency", l.currency,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Currency returns the ledger currency code.
func (l *Ledger) Currency() string { return l.currency }

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// ──────────────────────────────────────────────────
// Loans
// ──────────────────────────────────────────────────

// CreateLoanInput describes a new loan.
type CreateLoanInput struct {
	PersonName  string
	Principal   types.Money
	Direction   loan.Direction
	Description string
}

// CreateLoan records a new active loan whose remaining balance equals its principal.
func (l *Ledger) CreateLoan(ctx context.Context, ownerID string, in CreateLoanInput) (*loan.Loan, error) {
	const op = "create loan"

	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	name, err := validatePersonName(in.PersonName)
	if err != nil {
		return nil, err
	}
	if err := l.validateAmount("principal", in.Principal); err != nil {
		return nil, err
	}
	if err := validateDirection(in.Direction); err != nil {
		return nil, err
	}
	desc, err := validateText("description", in.Description, MaxDescriptionLength)
	if err != nil {
		return nil, err
	}

	ln := &loan.Loan{
		Entity:      types.NewEntity(l.now()),
		ID:          id.NewLoanID(),
		OwnerID:     ownerID,
		PersonName:  name,
		Principal:   in.Principal,
		Remaining:   in.Principal,
		Direction:   in.Direction,
		Description: desc,
		Status:      loan.StatusActive,
	}

	if err := l.store.CreateLoan(ctx, ln); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.logger.Info("loan created",
		"loan_id", ln.ID.String(),
		"owner_id", ownerID,
		"principal", ln.Principal.String(),
		"direction", ln.Direction,
	)
	l.plugins.EmitLoanCreated(ctx, ln.Clone())

	return ln, nil
}

// GetLoan returns one of the owner's loans.
func (l *Ledger) GetLoan(ctx context.Context, ownerID string, loanID id.LoanID) (*loan.Loan, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	ln, err := l.store.GetLoan(ctx, ownerID, loanID)
	if err != nil {
		return nil, l.fail(ctx, "get loan", err)
	}
	return ln, nil
}

// ListLoans returns the owner's loans, newest first.
func (l *Ledger) ListLoans(ctx context.Context, ownerID string, opts loan.ListOpts) ([]*loan.Loan, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, ValidationError{Field: "status", Message: "must be active or settled"}
	}
	if opts.Direction != "" {
		if err := validateDirection(opts.Direction); err != nil {
			return nil, err
		}
	}
	loans, err := l.store.ListLoans(ctx, ownerID, opts)
	if err != nil {
		return nil, l.fail(ctx, "list loans", err)
	}
	return loans, nil
}

// LoanPatch is a partial loan edit. Nil fields are left unchanged.
//
// Status may only restate the status implied by the balance. Principal is
// the privileged path: remaining is recomputed from the payment history so
// the loan stays consistent with what has already been paid.
type LoanPatch struct {
	PersonName  *string
	Description *string
	Direction   *loan.Direction
	Status      *loan.Status
	Principal   *types.Money
}

// EditLoan applies patch to one of the owner's loans.
func (l *Ledger) EditLoan(ctx context.Context, ownerID string, loanID id.LoanID, patch LoanPatch) (*loan.Loan, error) {
	const op = "edit loan"

	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	u := loan.Update{UpdatedAt: l.now()}
	if patch.PersonName != nil {
		name, err := validatePersonName(*patch.PersonName)
		if err != nil {
			return nil, err
		}
		u.PersonName = &name
	}
	if patch.Description != nil {
		desc, err := validateText("description", *patch.Description, MaxDescriptionLength)
		if err != nil {
			return nil, err
		}
		u.Description = &desc
	}
	if patch.Direction != nil {
		if err := validateDirection(*patch.Direction); err != nil {
			return nil, err
		}
		d := *patch.Direction
		u.Direction = &d
	}
	if patch.Principal != nil {
		if err := l.validateAmount("principal", *patch.Principal); err != nil {
			return nil, err
		}
		p := *patch.Principal
		u.Principal = &p
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, ValidationError{Field: "status", Message: "must be active or settled"}
	}
	if u.IsEmpty() && patch.Status == nil {
		return nil, ErrEmptyUpdate
	}

	before, after, err := l.applyEdit(ctx, ownerID, loanID, u, patch.Status)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	if after == nil {
		return before, nil
	}

	l.logger.Info("loan updated",
		"loan_id", loanID.String(),
		"owner_id", ownerID,
		"remaining", after.Remaining.String(),
		"status", after.Status,
	)
	l.plugins.EmitLoanUpdated(ctx, before.Clone(), after.Clone())
	l.emitTransition(ctx, before, after)

	return after, nil
}

// applyEdit runs the read-check-write of an edit under the loan lock. A nil
// after means the patch only restated the status and nothing was written.
func (l *Ledger) applyEdit(ctx context.Context, ownerID string, loanID id.LoanID, u loan.Update, status *loan.Status) (before, after *loan.Loan, err error) {
	unlock, err := l.locks.Lock(ctx, loanID.String())
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	before, err = l.store.GetLoan(ctx, ownerID, loanID)
	if err != nil {
		return nil, nil, err
	}

	if status != nil {
		want, err := l.derivedStatus(ctx, before, u.Principal)
		if err != nil {
			return nil, nil, err
		}
		if *status != want {
			return nil, nil, ErrStatusMismatch
		}
	}
	if u.IsEmpty() {
		return before, nil, nil
	}

	after, err = l.store.UpdateLoan(ctx, ownerID, loanID, u)
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// derivedStatus returns the status a loan will have once principal (if
// non-nil) replaces its current principal. Callers hold the loan lock.
func (l *Ledger) derivedStatus(ctx context.Context, current *loan.Loan, principal *types.Money) (loan.Status, error) {
	if principal == nil {
		return loan.StatusFor(current.Remaining), nil
	}
	payments, err := l.store.ListPayments(ctx, current.ID, payment.ListOpts{})
	if err != nil {
		return "", err
	}
	paid := types.Zero(principal.Currency)
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return loan.StatusFor(principal.ClampedSubtract(paid)), nil
}

// DeleteLoan removes one of the owner's loans together with its payments.
func (l *Ledger) DeleteLoan(ctx context.Context, ownerID string, loanID id.LoanID) error {
	const op = "delete loan"

	if err := validateOwner(ownerID); err != nil {
		return err
	}

	unlock, err := l.locks.Lock(ctx, loanID.String())
	if err != nil {
		return err
	}
	err = l.store.DeleteLoan(ctx, ownerID, loanID)
	unlock()
	if err != nil {
		return l.fail(ctx, op, err)
	}

	l.logger.Info("loan deleted",
		"loan_id", loanID.String(),
		"owner_id", ownerID,
	)
	l.plugins.EmitLoanDeleted(ctx, ownerID, loanID)

	return nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// RecordPaymentInput describes a payment against a loan. A zero PaymentDate
// means now. Timestamps are stored in UTC.
//
// DateOnly marks PaymentDate as a calendar day (UTC midnight) with no time
// of day. Such a day counts as in the future only once it is later than the
// current date in every time zone, so a client ahead of UTC can record a
// payment dated its own today.
type RecordPaymentInput struct {
	LoanID      id.LoanID
	Amount      types.Money
	PaymentDate time.Time
	DateOnly    bool
	Notes       string
}

// PaymentResult is the stored payment and the loan after it was applied.
type PaymentResult struct {
	Payment *payment.Payment `json:"payment"`
	Loan    *loan.Loan       `json:"loan"`
}

// RecordPayment applies a payment to one of the owner's loans. Amounts
// larger than the remaining balance are accepted and settle the loan.
// Separately, a loan with nothing outstanding takes no further payments:
// those are rejected with ErrLoanSettled.
func (l *Ledger) RecordPayment(ctx context.Context, ownerID string, in RecordPaymentInput) (*PaymentResult, error) {
	const op = "record payment"

	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if in.LoanID.IsNil() {
		return nil, ValidationError{Field: "loanId", Message: "is required"}
	}
	if err := l.validateAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	paidAt, err := l.validatePaymentDate(in.PaymentDate, in.DateOnly)
	if err != nil {
		return nil, err
	}
	notes, err := validateText("notes", in.Notes, MaxNotesLength)
	if err != nil {
		return nil, err
	}

	p := &payment.Payment{
		Entity:      types.NewEntity(l.now()),
		ID:          id.NewPaymentID(),
		LoanID:      in.LoanID,
		Amount:      in.Amount,
		PaymentDate: paidAt,
		Notes:       notes,
	}

	before, after, err := l.applyPayment(ctx, ownerID, p)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.logger.Info("payment recorded",
		"payment_id", p.ID.String(),
		"loan_id", in.LoanID.String(),
		"owner_id", ownerID,
		"amount", p.Amount.String(),
		"remaining", after.Remaining.String(),
	)
	emitted := *p
	l.plugins.EmitPaymentRecorded(ctx, &emitted, after.Clone())
	l.emitTransition(ctx, before, after)

	return &PaymentResult{Payment: p, Loan: after}, nil
}

// applyPayment stores p under the loan lock and returns the loan before and
// after it was applied.
func (l *Ledger) applyPayment(ctx context.Context, ownerID string, p *payment.Payment) (before, after *loan.Loan, err error) {
	unlock, err := l.locks.Lock(ctx, p.LoanID.String())
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	before, err = l.store.GetLoan(ctx, ownerID, p.LoanID)
	if err != nil {
		return nil, nil, err
	}
	if !before.Remaining.IsPositive() {
		return nil, nil, ErrLoanSettled
	}

	after, err = l.store.RecordPayment(ctx, ownerID, p)
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// ListPayments returns the payments of one of the owner's loans, newest first.
func (l *Ledger) ListPayments(ctx context.Context, ownerID string, loanID id.LoanID, opts payment.ListOpts) ([]*payment.Payment, error) {
	const op = "list payments"

	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if _, err := l.store.GetLoan(ctx, ownerID, loanID); err != nil {
		return nil, l.fail(ctx, op, err)
	}
	payments, err := l.store.ListPayments(ctx, loanID, opts)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	return payments, nil
}

// ──────────────────────────────────────────────────
// Summary
// ──────────────────────────────────────────────────

// Summary aggregates an owner's outstanding balances.
type Summary struct {
	Currency     string      `json:"currency"`
	OwedToMe     types.Money `json:"owedToMe"`
	IOwe         types.Money `json:"iOwe"`
	Net          types.Money `json:"net"`
	ActiveLoans  int         `json:"activeLoans"`
	SettledLoans int         `json:"settledLoans"`
}

// Summary totals the remaining balances of the owner's active loans.
func (l *Ledger) Summary(ctx context.Context, ownerID string) (*Summary, error) {
	loans, err := l.ListLoans(ctx, ownerID, loan.ListOpts{})
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Currency: l.currency,
		OwedToMe: types.Zero(l.currency),
		IOwe:     types.Zero(l.currency),
	}
	for _, ln := range loans {
		if ln.Status == loan.StatusSettled {
			s.SettledLoans++
			continue
		}
		s.ActiveLoans++
		switch ln.Direction {
		case loan.DirectionOwedToMe:
			s.OwedToMe = s.OwedToMe.Add(ln.Remaining)
		case loan.DirectionIOwe:
			s.IOwe = s.IOwe.Add(ln.Remaining)
		}
	}
	s.Net = s.OwedToMe.Subtract(s.IOwe)

	return s, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (l *Ledger) emitTransition(ctx context.Context, before, after *loan.Loan) {
	switch {
	case before.Status == loan.StatusActive && after.Status == loan.StatusSettled:
		l.logger.Info("loan settled", "loan_id", after.ID.String(), "owner_id", after.OwnerID)
		l.plugins.EmitLoanSettled(ctx, after.Clone())
	case before.Status == loan.StatusSettled && after.Status == loan.StatusActive:
		l.logger.Info("loan reopened", "loan_id", after.ID.String(), "owner_id", after.OwnerID)
		l.plugins.EmitLoanReopened(ctx, after.Clone())
	}
}

// fail classifies err for the caller and reports it to plugins.
func (l *Ledger) fail(ctx context.Context, op string, err error) error {
	err = wrapStorage(op, err)
	if errors.Is(err, ErrStorageFailure) {
		l.logger.Error("loanbook operation failed",
			"op", op,
			"error", err,
		)
	} else {
		l.logger.Debug("loanbook operation rejected",
			"op", op,
			"error", err,
		)
	}
	l.plugins.EmitOperationFailed(ctx, op, err)
	return err
}

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting an event never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onLoanCreated     []OnLoanCreated
	onLoanUpdated     []OnLoanUpdated
	onLoanDeleted     []OnLoanDeleted
	onLoanSettled     []OnLoanSettled
	onLoanReopened    []OnLoanReopened
	onPaymentRecorded []OnPaymentRecorded
	onOperationFailed []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnLoanCreated); ok {
		r.onLoanCreated = append(r.onLoanCreated, v)
	}
	if v, ok := p.(OnLoanUpdated); ok {
		r.onLoanUpdated = append(r.onLoanUpdated, v)
	}
	if v, ok := p.(OnLoanDeleted); ok {
		r.onLoanDeleted = append(r.onLoanDeleted, v)
	}
	if v, ok := p.(OnLoanSettled); ok {
		r.onLoanSettled = append(r.onLoanSettled, v)
	}
	if v, ok := p.(OnLoanReopened); ok {
		r.onLoanReopened = append(r.onLoanReopened, v)
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnLoanCreated", reflect.TypeOf((*OnLoanCreated)(nil)).Elem()},
	{"OnLoanUpdated", reflect.TypeOf((*OnLoanUpdated)(nil)).Elem()},
	{"OnLoanDeleted", reflect.TypeOf((*OnLoanDeleted)(nil)).Elem()},
	{"OnLoanSettled", reflect.TypeOf((*OnLoanSettled)(nil)).Elem()},
	{"OnLoanReopened", reflect.TypeOf((*OnLoanReopened)(nil)).Elem()},
	{"OnPaymentRecorded", reflect.TypeOf((*OnPaymentRecorded)(nil)).Elem()},
	{"OnOperationFailed", reflect.TypeOf((*OnOperationFailed)(nil)).Elem()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func() error { return p.OnInit(ctx, ledger) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p.Name(), func() error { return p.OnShutdown(ctx) })
	}
}

// EmitLoanCreated emits a loan created event.
func (r *Registry) EmitLoanCreated(ctx context.Context, l *loan.Loan) {
	r.mu.RLock()
	plugins := r.onLoanCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnLoanCreated", p.Name(), func() error { return p.OnLoanCreated(ctx, l) })
	}
}

// EmitLoanUpdated emits a loan updated event.
func (r *Registry) EmitLoanUpdated(ctx context.Context, before, after *loan.Loan) {
	r.mu.RLock()
	plugins := r.onLoanUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnLoanUpdated", p.Name(), func() error { return p.OnLoanUpdated(ctx, before, after) })
	}
}

// EmitLoanDeleted emits a loan deleted event.
func (r *Registry) EmitLoanDeleted(ctx context.Context, ownerID string, loanID id.LoanID) {
	r.mu.RLock()
	plugins := r.onLoanDeleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnLoanDeleted", p.Name(), func() error { return p.OnLoanDeleted(ctx, ownerID, loanID) })
	}
}

// EmitLoanSettled emits a loan settled event.
func (r *Registry) EmitLoanSettled(ctx context.Context, l *loan.Loan) {
	r.mu.RLock()
	plugins := r.onLoanSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnLoanSettled", p.Name(), func() error { return p.OnLoanSettled(ctx, l) })
	}
}

// EmitLoanReopened emits a loan reopened event.
func (r *Registry) EmitLoanReopened(ctx context.Context, l *loan.Loan) {
	r.mu.RLock()
	plugins := r.onLoanReopened
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnLoanReopened", p.Name(), func() error { return p.OnLoanReopened(ctx, l) })
	}
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, pay *payment.Payment, l *loan.Loan) {
	r.mu.RLock()
	plugins := r.onPaymentRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPaymentRecorded", p.Name(), func() error { return p.OnPaymentRecorded(ctx, pay, l) })
	}
}

// EmitOperationFailed emits an operation failure event.
func (r *Registry) EmitOperationFailed(ctx context.Context, op string, opErr error) {
	r.mu.RLock()
	plugins := r.onOperationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnOperationFailed", p.Name(), func() error { return p.OnOperationFailed(ctx, op, opErr) })
	}
}

func (r *Registry) dispatch(ctx context.Context, hook, name string, fn func() error) {
	if err := r.callWithTimeout(ctx, name, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", name,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

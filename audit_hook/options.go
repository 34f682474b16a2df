package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// If not called, all actions are audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool)
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions skips the given actions.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool)
			for _, action := range allActions() {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// WithRejections also audits requests the ledger refused (bad input,
// unknown loans). By default only storage failures are audited.
func WithRejections() Option {
	return func(e *Extension) {
		e.auditRejections = true
	}
}

// allActions returns all known audit actions.
func allActions() []string {
	return []string{
		ActionLoanCreated,
		ActionLoanUpdated,
		ActionLoanDeleted,
		ActionLoanSettled,
		ActionLoanReopened,
		ActionPaymentRecorded,
		ActionOperationFailed,
	}
}

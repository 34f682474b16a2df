package audithook

// Action constants for audit events.
const (
	// Loan actions
	ActionLoanCreated  = "loan.created"
	ActionLoanUpdated  = "loan.updated"
	ActionLoanDeleted  = "loan.deleted"
	ActionLoanSettled  = "loan.settled"
	ActionLoanReopened = "loan.reopened"

	// Payment actions
	ActionPaymentRecorded = "payment.recorded"

	// Failures
	ActionOperationFailed = "operation.failed"
)

// Resource constants for audit events.
const (
	ResourceLoan    = "loan"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryLending = "lending"
	CategoryPayment = "payment"
	CategorySystem  = "system"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

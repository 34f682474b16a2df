// Package api exposes the loan ledger over HTTP with gin.
//
// Every route requires a bearer token; the owner it names scopes every
// read and write.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
)

// Service is the part of *loanbook.Ledger the handlers use.
type Service interface {
	Currency() string
	CreateLoan(ctx context.Context, ownerID string, in loanbook.CreateLoanInput) (*loan.Loan, error)
	GetLoan(ctx context.Context, ownerID string, loanID id.LoanID) (*loan.Loan, error)
	ListLoans(ctx context.Context, ownerID string, opts loan.ListOpts) ([]*loan.Loan, error)
	EditLoan(ctx context.Context, ownerID string, loanID id.LoanID, patch loanbook.LoanPatch) (*loan.Loan, error)
	DeleteLoan(ctx context.Context, ownerID string, loanID id.LoanID) error
	RecordPayment(ctx context.Context, ownerID string, in loanbook.RecordPaymentInput) (*loanbook.PaymentResult, error)
	ListPayments(ctx context.Context, ownerID string, loanID id.LoanID, opts payment.ListOpts) ([]*payment.Payment, error)
	Summary(ctx context.Context, ownerID string) (*loanbook.Summary, error)
}

var _ Service = (*loanbook.Ledger)(nil)

// Handler serves the loan and payment routes.
type Handler struct {
	svc    Service
	auth   *Authenticator
	logger *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for internal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// New creates a Handler.
func New(svc Service, auth *Authenticator, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		auth:   auth,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r behind the auth middleware.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("", h.auth.Middleware())

	g.GET("/loans", h.listLoans)
	g.POST("/loans", h.createLoan)
	g.GET("/loans/:id", h.getLoan)
	g.PUT("/loans/:id", h.updateLoan)
	g.DELETE("/loans/:id", h.deleteLoan)
	g.GET("/loans/:id/payments", h.listPayments)
	g.POST("/payments", h.recordPayment)
	g.GET("/summary", h.summary)
}

// Engine returns a gin engine with recovery and the routes mounted.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)
	return r
}

func (h *Handler) listLoans(c *gin.Context) {
	opts := loan.ListOpts{
		Status:    loan.Status(c.Query("status")),
		Direction: loan.Direction(c.Query("direction")),
	}
	var err error
	if opts.Limit, err = queryInt(c, "limit"); err != nil {
		h.writeError(c, err)
		return
	}
	if opts.Offset, err = queryInt(c, "offset"); err != nil {
		h.writeError(c, err)
		return
	}

	loans, err := h.svc.ListLoans(c.Request.Context(), ownerFrom(c), opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if loans == nil {
		loans = make([]*loan.Loan, 0)
	}
	c.JSON(http.StatusOK, loans)
}

func (h *Handler) createLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan data"})
		return
	}
	in, err := req.input(h.svc.Currency())
	if err != nil {
		h.writeError(c, err)
		return
	}

	l, err := h.svc.CreateLoan(c.Request.Context(), ownerFrom(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *Handler) getLoan(c *gin.Context) {
	loanID, err := loanbook.ParseLoanID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	l, err := h.svc.GetLoan(c.Request.Context(), ownerFrom(c), loanID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) updateLoan(c *gin.Context) {
	loanID, err := loanbook.ParseLoanID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req updateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan data"})
		return
	}
	patch, err := req.patch(h.svc.Currency())
	if err != nil {
		h.writeError(c, err)
		return
	}

	l, err := h.svc.EditLoan(c.Request.Context(), ownerFrom(c), loanID, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) deleteLoan(c *gin.Context) {
	loanID, err := loanbook.ParseLoanID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.svc.DeleteLoan(c.Request.Context(), ownerFrom(c), loanID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "loan deleted successfully"})
}

func (h *Handler) listPayments(c *gin.Context) {
	loanID, err := loanbook.ParseLoanID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var opts payment.ListOpts
	if opts.Limit, err = queryInt(c, "limit"); err != nil {
		h.writeError(c, err)
		return
	}
	if opts.Offset, err = queryInt(c, "offset"); err != nil {
		h.writeError(c, err)
		return
	}

	payments, err := h.svc.ListPayments(c.Request.Context(), ownerFrom(c), loanID, opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if payments == nil {
		payments = make([]*payment.Payment, 0)
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) recordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment data"})
		return
	}
	in, err := req.input(h.svc.Currency())
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.svc.RecordPayment(c.Request.Context(), ownerFrom(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) summary(c *gin.Context) {
	s, err := h.svc.Summary(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, loanbook.ValidationError{Field: key, Message: "must be a non-negative integer"}
	}
	return n, nil
}

// Package memory provides an in-process store.Store backed by maps.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	"github.com/xraph/loanbook/store"
	"github.com/xraph/loanbook/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store keeps loans and payments in memory. Every mutation runs under a
// single write lock, which makes each operation atomic.
type Store struct {
	mu sync.RWMutex

	loans    map[string]*loan.Loan
	payments map[string][]*payment.Payment // keyed by loan ID
	closed   bool
}

func New() *Store {
	return &Store{
		loans:    make(map[string]*loan.Loan),
		payments: make(map[string][]*payment.Payment),
	}
}

// Loan Store implementation
func (s *Store) CreateLoan(_ context.Context, l *loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return loanbook.ErrStoreClosed
	}
	if _, exists := s.loans[l.ID.String()]; exists {
		return loanbook.ErrAlreadyExists
	}
	s.loans[l.ID.String()] = l.Clone()
	return nil
}

func (s *Store) GetLoan(_ context.Context, ownerID string, loanID id.LoanID) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.ownedLocked(ownerID, loanID)
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

func (s *Store) ListLoans(_ context.Context, ownerID string, opts loan.ListOpts) ([]*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, loanbook.ErrStoreClosed
	}

	var result []*loan.Loan
	for _, l := range s.loans {
		if l.OwnerID != ownerID {
			continue
		}
		if opts.Status != "" && l.Status != opts.Status {
			continue
		}
		if opts.Direction != "" && l.Direction != opts.Direction {
			continue
		}
		result = append(result, l.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateLoan(_ context.Context, ownerID string, loanID id.LoanID, u loan.Update) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ownedLocked(ownerID, loanID)
	if err != nil {
		return nil, err
	}

	next := l.Clone()
	if u.PersonName != nil {
		next.PersonName = *u.PersonName
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Direction != nil {
		next.Direction = *u.Direction
	}
	if u.Principal != nil {
		paid := types.Zero(next.Principal.Currency)
		for _, p := range s.payments[loanID.String()] {
			paid = paid.Add(p.Amount)
		}
		next.Principal = *u.Principal
		next.Remaining = u.Principal.ClampedSubtract(paid)
		next.Status = loan.StatusFor(next.Remaining)
	}
	next.Touch(u.UpdatedAt)

	s.loans[loanID.String()] = next
	return next.Clone(), nil
}

func (s *Store) DeleteLoan(_ context.Context, ownerID string, loanID id.LoanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedLocked(ownerID, loanID); err != nil {
		return err
	}
	delete(s.loans, loanID.String())
	delete(s.payments, loanID.String())
	return nil
}

// Payment Store implementation
func (s *Store) RecordPayment(_ context.Context, ownerID string, p *payment.Payment) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ownedLocked(ownerID, p.LoanID)
	if err != nil {
		return nil, err
	}
	if !l.Remaining.IsPositive() {
		return nil, loanbook.ErrLoanSettled
	}

	next := l.Clone()
	next.Remaining = next.Remaining.ClampedSubtract(p.Amount)
	next.Status = loan.StatusFor(next.Remaining)
	next.Touch(p.CreatedAt)

	stored := *p
	s.payments[p.LoanID.String()] = append(s.payments[p.LoanID.String()], &stored)
	s.loans[p.LoanID.String()] = next
	return next.Clone(), nil
}

func (s *Store) ListPayments(_ context.Context, loanID id.LoanID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, loanbook.ErrStoreClosed
	}

	stored := s.payments[loanID.String()]
	result := make([]*payment.Payment, 0, len(stored))
	for _, p := range stored {
		c := *p
		result = append(result, &c)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].PaymentDate.Equal(result[j].PaymentDate) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].PaymentDate.After(result[j].PaymentDate)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return loanbook.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// ownedLocked returns the stored loan if it exists and belongs to ownerID.
// Callers must hold s.mu.
func (s *Store) ownedLocked(ownerID string, loanID id.LoanID) (*loan.Loan, error) {
	if s.closed {
		return nil, loanbook.ErrStoreClosed
	}
	l, ok := s.loans[loanID.String()]
	if !ok || l.OwnerID != ownerID {
		return nil, loanbook.ErrLoanNotFound
	}
	return l, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

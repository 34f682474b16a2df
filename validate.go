package loanbook

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/types"
)

// Input limits.
const (
	MaxPersonNameLength  = 100
	MaxDescriptionLength = 500
	MaxNotesLength       = 500
)

// MaxAmount is the largest principal or payment accepted, in major units.
var MaxAmount = decimal.NewFromInt(1_000_000)

func validatePersonName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ValidationError{Field: "personName", Message: "is required"}
	}
	if utf8.RuneCountInString(name) > MaxPersonNameLength {
		return "", ValidationError{Field: "personName", Message: "must be at most 100 characters"}
	}
	return name, nil
}

func validateText(field, s string, limit int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > limit {
		return "", ValidationError{Field: field, Message: "is too long"}
	}
	return s, nil
}

func validateDirection(d loan.Direction) error {
	if !d.Valid() {
		return ValidationError{Field: "direction", Message: "must be owed_to_me or i_owe"}
	}
	return nil
}

// validateAmount checks that m is positive, at most MaxAmount and in the
// ledger currency.
func (l *Ledger) validateAmount(field string, m types.Money) error {
	if m.Currency != l.currency {
		return ValidationError{
			Field:   field,
			Message: "currency must be " + strings.ToUpper(l.currency),
			Err:     ErrCurrencyInvalid,
		}
	}
	if !m.IsPositive() {
		return ValidationError{Field: field, Message: "must be greater than zero"}
	}
	if m.Decimal().GreaterThan(MaxAmount) {
		return ValidationError{Field: field, Message: "must not exceed 1,000,000"}
	}
	return nil
}

// maxZoneAhead is the largest UTC offset in use (UTC+14, Line Islands).
const maxZoneAhead = 14 * time.Hour

func (l *Ledger) validatePaymentDate(d time.Time, dateOnly bool) (time.Time, error) {
	now := l.now()
	if d.IsZero() {
		return now, nil
	}
	if dateOnly {
		day := calendarDay(d.UTC())
		if day.After(calendarDay(now.UTC().Add(maxZoneAhead))) {
			return time.Time{}, ValidationError{Field: "paymentDate", Message: "cannot be in the future"}
		}
		return day, nil
	}
	if d.After(now) {
		return time.Time{}, ValidationError{Field: "paymentDate", Message: "cannot be in the future"}
	}
	return d.UTC(), nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthorized
	}
	return nil
}

package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyDisplay(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		display string
	}{
		{"USD", USD(4900), "$49.00"},
		{"USD thousands", USD(125000), "$1,250.00"},
		{"Zero USD", Zero("USD"), "$0.00"},
		{"Unknown currency", Money{Amount: 100, Currency: "xyz"}, "XYZ 1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.display {
				t.Errorf("String: got %q, want %q", got, tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Clamped", func() Money { return USD(3000).ClampedSubtract(USD(4000)) }, USD(0)},
		{"Clamped exact", func() Money { return USD(3000).ClampedSubtract(USD(3000)) }, USD(0)},
		{"Clamped partial", func() Money { return USD(10000).ClampedSubtract(USD(3000)) }, USD(7000)},
		{"Sum", func() Money { return Sum("usd", USD(1), USD(2), USD(3)) }, USD(6)},
		{"Sum empty", func() Money { return Sum("eur") }, EUR(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.op(); !result.Equal(tt.expected) {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("usd"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(4900), "49.00"},
		{USD(1), "0.01"},
		{USD(0), "0.00"},
		{USD(-4900), "-49.00"},
		{EUR(9999), "99.99"},
		{JPY(12345), "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		currency string
		want     Money
		wantErr  bool
	}{
		{"whole", "100", "usd", USD(10000), false},
		{"cents", "12.5", "USD", USD(1250), false},
		{"smallest", "0.01", "usd", USD(1), false},
		{"yen", "500", "jpy", JPY(500), false},
		{"too precise", "12.345", "usd", Money{}, true},
		{"yen fraction", "1.5", "jpy", Money{}, true},
		{"unknown currency", "1", "zzz", Money{}, true},
		{"int64 max cents", "92233720368547758.07", "usd", USD(9223372036854775807), false},
		{"past int64", "92233720368547758.08", "usd", Money{}, true},
		{"wraps to one dollar", "184467440737095517.16", "usd", Money{}, true},
		{"large negative", "-184467440737095517.16", "usd", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(decimal.RequireFromString(tt.input), tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMoneyOutOfRange(t *testing.T) {
	_, err := ParseMoney(decimal.RequireFromString("184467440737095517.16"), "usd")
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestFractionUnknown(t *testing.T) {
	_, err := Fraction("nope")
	if !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["display"] != "$49.00" {
		t.Errorf("display: got %v", decoded["display"])
	}

	var m Money
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal into Money: %v", err)
	}
	if !m.Equal(USD(4900)) {
		t.Errorf("got %v, want %v", m, USD(4900))
	}
}

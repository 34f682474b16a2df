package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/store/memory"
)

var (
	testSecret = []byte("test-secret")
	fixedNow   = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	auth   *Authenticator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := loanbook.New(memory.New(),
		loanbook.WithLogger(logger),
		loanbook.WithClock(func() time.Time { return fixedNow }),
	)
	auth := NewAuthenticator(testSecret)
	return &testServer{
		t:      t,
		engine: New(ledger, auth, WithLogger(logger)).Engine(),
		auth:   auth,
	}
}

func (s *testServer) do(owner, method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		token, err := s.auth.IssueToken(owner, time.Hour)
		if err != nil {
			s.t.Fatalf("IssueToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type moneyBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type loanBody struct {
	ID        string    `json:"id"`
	Principal moneyBody `json:"principal"`
	Remaining moneyBody `json:"remaining"`
	Status    string    `json:"status"`
}

func (s *testServer) createLoan(owner string, principal string) loanBody {
	s.t.Helper()
	w := s.do(owner, http.MethodPost, "/loans",
		`{"personName":"Sam","principal":`+principal+`,"direction":"owed_to_me"}`)
	if w.Code != http.StatusCreated {
		s.t.Fatalf("create loan: status %d body %s", w.Code, w.Body.String())
	}
	return decode[loanBody](s.t, w)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signed(t, []byte("other"), jwt.MapClaims{"sub": "alice"})},
		{"no owner", "Bearer " + signed(t, testSecret, jwt.MapClaims{"name": "alice"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/loans", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestOwnerIDClaimFallback(t *testing.T) {
	a := NewAuthenticator(testSecret)
	owner, err := a.Owner(signed(t, testSecret, jwt.MapClaims{"owner_id": "bob"}))
	if err != nil || owner != "bob" {
		t.Errorf("Owner = %q, %v; want bob", owner, err)
	}
}

func TestCreateLoan(t *testing.T) {
	s := newTestServer(t)

	l := s.createLoan("alice", `"100.50"`)
	if l.Principal.Amount != 10050 || l.Remaining.Amount != 10050 || l.Status != "active" {
		t.Errorf("created loan = %+v", l)
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"personName":`},
		{"missing principal", `{"personName":"Sam","direction":"i_owe"}`},
		{"too many decimals", `{"personName":"Sam","principal":1.005,"direction":"i_owe"}`},
		{"negative", `{"personName":"Sam","principal":-5,"direction":"i_owe"}`},
		{"bad direction", `{"personName":"Sam","principal":5,"direction":"sideways"}`},
		{"blank name", `{"personName":"  ","principal":5,"direction":"i_owe"}`},
		{"wraps int64", `{"personName":"Sam","principal":184467440737095517.16,"direction":"i_owe"}`},
		{"past int64", `{"personName":"Sam","principal":"92233720368547758.08","direction":"i_owe"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("alice", http.MethodPost, "/loans", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	l := s.createLoan("alice", `100`)

	w := s.do("alice", http.MethodPost, "/payments",
		`{"loanId":"`+l.ID+`","amount":40,"paymentDate":"2024-06-01","notes":"first"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("payment: status %d body %s", w.Code, w.Body.String())
	}
	res := decode[struct {
		Loan loanBody `json:"loan"`
	}](t, w)
	if res.Loan.Remaining.Amount != 6000 || res.Loan.Status != "active" {
		t.Errorf("after payment loan = %+v", res.Loan)
	}

	w = s.do("alice", http.MethodPost, "/payments", `{"loanId":"`+l.ID+`","amount":"75.00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("overpayment: status %d body %s", w.Code, w.Body.String())
	}
	res = decode[struct {
		Loan loanBody `json:"loan"`
	}](t, w)
	if res.Loan.Remaining.Amount != 0 || res.Loan.Status != "settled" {
		t.Errorf("after overpayment loan = %+v", res.Loan)
	}

	w = s.do("alice", http.MethodPost, "/payments", `{"loanId":"`+l.ID+`","amount":1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("payment on settled loan: status %d, want 400", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "accepts no further payments") {
		t.Errorf("payment on settled loan: body %s", body)
	}

	w = s.do("alice", http.MethodGet, "/loans/"+l.ID+"/payments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list payments: status %d", w.Code)
	}
	if got := decode[[]json.RawMessage](t, w); len(got) != 2 {
		t.Errorf("payments = %d, want 2", len(got))
	}
}

func TestPaymentValidation(t *testing.T) {
	s := newTestServer(t)
	l := s.createLoan("alice", `100`)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad loan id", `{"loanId":"nope","amount":1}`, http.StatusBadRequest},
		{"future date", `{"loanId":"` + l.ID + `","amount":1,"paymentDate":"2030-01-01"}`, http.StatusBadRequest},
		{"bad date", `{"loanId":"` + l.ID + `","amount":1,"paymentDate":"01/02/2024"}`, http.StatusBadRequest},
		{"zero amount", `{"loanId":"` + l.ID + `","amount":0}`, http.StatusBadRequest},
		{"over max", `{"loanId":"` + l.ID + `","amount":1000000.01}`, http.StatusBadRequest},
		{"wraps int64", `{"loanId":"` + l.ID + `","amount":184467440737095517.16}`, http.StatusBadRequest},
		{"tomorrow east of utc", `{"loanId":"` + l.ID + `","amount":1,"paymentDate":"2024-06-16"}`, http.StatusCreated},
		{"two days ahead", `{"loanId":"` + l.ID + `","amount":1,"paymentDate":"2024-06-17"}`, http.StatusBadRequest},
		{"later today as timestamp", `{"loanId":"` + l.ID + `","amount":1,"paymentDate":"2024-06-15T13:00:00Z"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("alice", http.MethodPost, "/payments", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestOwnershipIsolation(t *testing.T) {
	s := newTestServer(t)
	l := s.createLoan("alice", `100`)

	checks := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/loans/" + l.ID, ""},
		{http.MethodPut, "/loans/" + l.ID, `{"personName":"Mallory"}`},
		{http.MethodDelete, "/loans/" + l.ID, ""},
		{http.MethodGet, "/loans/" + l.ID + "/payments", ""},
		{http.MethodPost, "/payments", `{"loanId":"` + l.ID + `","amount":1}`},
	}
	for _, c := range checks {
		w := s.do("mallory", c.method, c.path, c.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s as foreign owner: status %d, want 404", c.method, c.path, w.Code)
		}
	}

	w := s.do("mallory", http.MethodGet, "/loans", "")
	if got := decode[[]json.RawMessage](t, w); len(got) != 0 {
		t.Errorf("foreign list returned %d loans", len(got))
	}

	w = s.do("alice", http.MethodGet, "/loans/"+l.ID, "")
	if decode[loanBody](t, w).Remaining.Amount != 10000 {
		t.Error("foreign payment attempt changed the loan")
	}
}

func TestUpdateLoan(t *testing.T) {
	s := newTestServer(t)
	l := s.createLoan("alice", `100`)
	s.do("alice", http.MethodPost, "/payments", `{"loanId":"`+l.ID+`","amount":30}`)

	tests := []struct {
		name          string
		body          string
		wantCode      int
		wantRemaining int64
	}{
		{"rename", `{"personName":"Samantha"}`, http.StatusOK, 7000},
		{"empty patch", `{}`, http.StatusBadRequest, 0},
		{"status mismatch", `{"status":"settled"}`, http.StatusBadRequest, 0},
		{"principal raise", `{"principal":150}`, http.StatusOK, 12000},
		{"principal below paid", `{"principal":20}`, http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("alice", http.MethodPut, "/loans/"+l.ID, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				if got := decode[loanBody](t, w); got.Remaining.Amount != tt.wantRemaining {
					t.Errorf("remaining = %d, want %d", got.Remaining.Amount, tt.wantRemaining)
				}
			}
		})
	}
}

func TestDeleteLoan(t *testing.T) {
	s := newTestServer(t)
	l := s.createLoan("alice", `100`)

	if w := s.do("alice", http.MethodDelete, "/loans/"+l.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}
	if w := s.do("alice", http.MethodGet, "/loans/"+l.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", w.Code)
	}
	if w := s.do("alice", http.MethodDelete, "/loans/"+l.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", w.Code)
	}
}

func TestSummary(t *testing.T) {
	s := newTestServer(t)
	s.createLoan("alice", `100`)
	w := s.do("alice", http.MethodPost, "/loans", `{"personName":"Kim","principal":40,"direction":"i_owe"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	w = s.do("alice", http.MethodGet, "/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary: status %d", w.Code)
	}
	got := decode[struct {
		OwedToMe    moneyBody `json:"owedToMe"`
		IOwe        moneyBody `json:"iOwe"`
		Net         moneyBody `json:"net"`
		ActiveLoans int       `json:"activeLoans"`
	}](t, w)
	if got.OwedToMe.Amount != 10000 || got.IOwe.Amount != 4000 || got.Net.Amount != 6000 || got.ActiveLoans != 2 {
		t.Errorf("summary = %+v", got)
	}
}

func TestListLoansQuery(t *testing.T) {
	s := newTestServer(t)
	s.createLoan("alice", `100`)

	if w := s.do("alice", http.MethodGet, "/loans?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status %d", w.Code)
	}
	if w := s.do("alice", http.MethodGet, "/loans?status=bogus", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: status %d", w.Code)
	}
	w := s.do("alice", http.MethodGet, "/loans?status=settled", "")
	if got := decode[[]json.RawMessage](t, w); len(got) != 0 {
		t.Errorf("settled filter returned %d", len(got))
	}
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	code, msg := statusFor(&loanbook.StorageError{Op: "create_loan", Err: bytes.ErrTooLarge})
	if code != http.StatusInternalServerError || msg != "internal server error" {
		t.Errorf("statusFor(storage) = %d %q", code, msg)
	}
}

func signed(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

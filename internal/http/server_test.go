package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"facturepro/internal/amqp"
	"facturepro/internal/core"
	"facturepro/internal/middleware/ratelimit"
	"facturepro/internal/services"
	"facturepro/internal/storage"
)

type fakePublisher struct {
	mu     sync.Mutex
	emails []*amqp.InvoiceEmailMessage
	ledger []string
}

func (f *fakePublisher) PublishInvoiceEmail(_ context.Context, msg *amqp.InvoiceEmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, msg)
	return nil
}

func (f *fakePublisher) PublishLedgerSync(_ context.Context, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger = append(f.ledger, invoiceID)
	return nil
}

type testServer struct {
	*Server
	repo      *storage.SQLiteRepository
	publisher *fakePublisher
}

func newTestServer(t *testing.T, publisher services.Publisher) *testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "facturepro.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	srv := NewServer(":0", repo, services.NewInvoiceService(repo, publisher), DefaultOptions())
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	ts := &testServer{Server: srv, repo: repo}
	ts.publisher, _ = publisher.(*fakePublisher)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func (ts *testServer) seedProfile(t *testing.T) {
	t.Helper()
	rr := ts.do(t, http.MethodPut, "/api/profiles/profile-1", map[string]string{
		"companyName": "Atelier SRL",
		"email":       "atelier@example.be",
		"vatNumber":   "BE0123456789",
		"iban":        "BE68539007547034",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("seed profile: %d %s", rr.Code, rr.Body.String())
	}
}

func finalizeBody(number string) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"client":  map[string]string{"companyName": "Client SA", "email": "compta@client.be"},
			"details": map[string]string{"invoiceNumber": number, "issueDate": "2024-03-01", "dueDate": "2024-03-31"},
			"lines": []map[string]any{
				{"id": "l1", "description": "Audit", "qty": "2", "unitPrice": "100,50", "vatRate": 21},
			},
		},
		"remindersEnabled": true,
	}
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", path)
		}
	}

	ts.repo.Close()
	if rr := ts.do(t, http.MethodGet, "/readyz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with closed database = %d, want 503", rr.Code)
	}
}

func TestTotals(t *testing.T) {
	ts := newTestServer(t, nil)

	body := map[string]any{"lines": []map[string]any{
		{"id": "a", "description": "Audit", "qty": "2", "unitPrice": "100,50", "vatRate": 21},
		{"id": "b", "description": "Frais", "qty": 1, "unitPrice": 1000, "vatRate": 6},
	}}

	tests := []struct {
		name      string
		query     string
		wantTotal string
	}{
		{"belgian french by default", "", "1 303,21 €"},
		{"dutch", "?lang=nl", "€ 1.303,21"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/totals"+tt.query, body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			got := decode[totalsResponse](t, rr)
			if got.Formatted.GrandTotal != tt.wantTotal {
				t.Errorf("grand total = %q, want %q", got.Formatted.GrandTotal, tt.wantTotal)
			}
			if got.Subtotal != 1201 {
				t.Errorf("subtotal = %v, want 1201", got.Subtotal)
			}
		})
	}

	if rr := ts.do(t, http.MethodPost, "/api/totals", `{"lines":`); rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body status=%d, want 400", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/totals", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/totals status=%d, want 405", rr.Code)
	}
}

func TestReference(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/api/reference", map[string]string{"invoiceNumber": "2024-001"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	got := decode[map[string]string](t, rr)
	if got["reference"] != core.StructuredReference("2024-001") {
		t.Errorf("reference = %q", got["reference"])
	}

	if rr := ts.do(t, http.MethodPost, "/api/reference", map[string]string{}); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing number status=%d, want 422", rr.Code)
	}
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t, nil)

	if rr := ts.do(t, http.MethodGet, "/api/profiles/profile-1", nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing profile status=%d, want 404", rr.Code)
	}

	ts.seedProfile(t)
	rr := ts.do(t, http.MethodGet, "/api/profiles/profile-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decode[core.Profile](t, rr); got.CompanyName != "Atelier SRL" || got.SubscriptionStatus != "free" {
		t.Errorf("unexpected profile %+v", got)
	}

	rr = ts.do(t, http.MethodPut, "/api/profiles/profile-1", map[string]string{"companyName": "X", "iban": "BE00"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid iban status=%d, want 422", rr.Code)
	}
}

func TestClientsCatalog(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/api/profiles/profile-1/clients", map[string]string{"companyName": "Client SA"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("client for unknown profile status=%d, want 404", rr.Code)
	}

	ts.seedProfile(t)
	if got := decode[[]core.Client](t, ts.do(t, http.MethodGet, "/api/profiles/profile-1/clients", nil)); len(got) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(got))
	}

	for _, name := range []string{"Zeta SA", "alpha SPRL"} {
		rr := ts.do(t, http.MethodPost, "/api/profiles/profile-1/clients", map[string]string{"companyName": name, "vatNumber": "FR40303265045"})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create %s: %d %s", name, rr.Code, rr.Body.String())
		}
	}

	// The cached empty list must have been invalidated.
	clients := decode[[]core.Client](t, ts.do(t, http.MethodGet, "/api/profiles/profile-1/clients", nil))
	if len(clients) != 2 || clients[0].CompanyName != "alpha SPRL" {
		t.Fatalf("unexpected clients %+v", clients)
	}

	rr = ts.do(t, http.MethodPost, "/api/profiles/profile-1/clients", map[string]string{"companyName": "Bad", "vatNumber": "BE123"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid Belgian VAT status=%d, want 422", rr.Code)
	}

	if rr := ts.do(t, http.MethodDelete, "/api/profiles/profile-1/clients/"+clients[0].ID, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodDelete, "/api/profiles/profile-1/clients/"+clients[0].ID, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d, want 404", rr.Code)
	}
	if got := decode[[]core.Client](t, ts.do(t, http.MethodGet, "/api/profiles/profile-1/clients", nil)); len(got) != 1 {
		t.Errorf("expected 1 client after delete, got %d", len(got))
	}
}

func TestProductsCatalog(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedProfile(t)

	rr := ts.do(t, http.MethodPost, "/api/profiles/profile-1/products", map[string]any{"description": "Audit", "defaultPrice": 100.5, "vatRate": 21})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	created := decode[core.Product](t, rr)

	rr = ts.do(t, http.MethodPost, "/api/profiles/profile-1/products", map[string]any{"description": "Bad", "vatRate": 150})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid rate status=%d, want 422", rr.Code)
	}

	products := decode[[]core.Product](t, ts.do(t, http.MethodGet, "/api/profiles/profile-1/products", nil))
	if len(products) != 1 || products[0].ID != created.ID {
		t.Fatalf("unexpected products %+v", products)
	}

	if rr := ts.do(t, http.MethodDelete, "/api/profiles/profile-1/products/"+created.ID, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if got := decode[[]core.Product](t, ts.do(t, http.MethodGet, "/api/profiles/profile-1/products", nil)); len(got) != 0 {
		t.Errorf("expected empty catalog after delete, got %d", len(got))
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	ts := newTestServer(t, &fakePublisher{})
	ts.seedProfile(t)

	rr := ts.do(t, http.MethodPost, "/api/profiles/profile-1/invoices", finalizeBody("2024-001"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("finalize: %d %s", rr.Code, rr.Body.String())
	}
	inv := decode[invoiceView](t, rr)
	if inv.Status != core.StatusPending || inv.Totals.GrandTotal != 243.21 {
		t.Errorf("unexpected invoice %+v", inv.Invoice)
	}
	if inv.Formatted.GrandTotal != "243,21 €" {
		t.Errorf("formatted total = %q", inv.Formatted.GrandTotal)
	}
	if inv.Reference != core.StructuredReference("2024-001") {
		t.Errorf("reference = %q", inv.Reference)
	}
	if inv.Data.Seller.CompanyName != "Atelier SRL" {
		t.Errorf("seller should be filled from the profile, got %q", inv.Data.Seller.CompanyName)
	}
	if len(ts.publisher.ledger) != 1 {
		t.Errorf("expected one ledger job, got %d", len(ts.publisher.ledger))
	}

	if rr := ts.do(t, http.MethodGet, "/api/invoices/"+inv.ID, nil); rr.Code != http.StatusOK {
		t.Errorf("get status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/invoices/missing", nil); rr.Code != http.StatusNotFound {
		t.Errorf("get missing status=%d, want 404", rr.Code)
	}
	if got := decode[[]invoiceView](t, ts.do(t, http.MethodGet, "/api/profiles/profile-1/invoices", nil)); len(got) != 1 {
		t.Errorf("expected 1 invoice, got %d", len(got))
	}

	rr = ts.do(t, http.MethodPost, "/api/invoices/"+inv.ID+"/send", map[string]string{"pdfBase64": "JVBERi0xLjQ="})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("send: %d %s", rr.Code, rr.Body.String())
	}
	if len(ts.publisher.emails) != 1 || ts.publisher.emails[0].ReplyTo != "atelier@example.be" {
		t.Errorf("unexpected e-mail jobs %+v", ts.publisher.emails)
	}
	if rr := ts.do(t, http.MethodPost, "/api/invoices/"+inv.ID+"/send", map[string]string{"pdfBase64": "%%%"}); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("send invalid pdf status=%d, want 422", rr.Code)
	}

	if rr := ts.do(t, http.MethodPost, "/api/invoices/"+inv.ID+"/paid", nil); rr.Code != http.StatusOK {
		t.Fatalf("paid status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/invoices/"+inv.ID+"/cancel", nil); rr.Code != http.StatusConflict {
		t.Errorf("cancel paid status=%d, want 409", rr.Code)
	}

	summary := decode[map[string]json.RawMessage](t, ts.do(t, http.MethodGet, "/api/profiles/profile-1/summary", nil))
	if !strings.Contains(string(summary["formatted"]), `"paid":"243,21 €"`) {
		t.Errorf("unexpected summary %s", summary["formatted"])
	}
}

func TestFinalizeValidation(t *testing.T) {
	ts := newTestServer(t, &fakePublisher{})
	ts.seedProfile(t)

	noLines := finalizeBody("2024-002")
	noLines["data"].(map[string]any)["lines"] = []any{}

	tests := []struct {
		name string
		body any
		want int
	}{
		{"no lines", noLines, http.StatusUnprocessableEntity},
		{"unknown interval", map[string]any{"data": finalizeBody("x")["data"], "recurringInterval": "weekly"}, http.StatusUnprocessableEntity},
		{"email without pdf", map[string]any{"data": finalizeBody("x")["data"], "sendEmail": true}, http.StatusUnprocessableEntity},
		{"malformed", `{"data":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/profiles/profile-1/invoices", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status=%d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
			body := decode[ErrorBody](t, rr)
			if body.RequestID == "" {
				t.Error("error body should carry the request id")
			}
		})
	}
}

func TestSendWithoutDelivery(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedProfile(t)

	inv := decode[invoiceView](t, ts.do(t, http.MethodPost, "/api/profiles/profile-1/invoices", finalizeBody("2024-003")))
	rr := ts.do(t, http.MethodPost, "/api/invoices/"+inv.ID+"/send", map[string]string{"pdfBase64": "JVBERi0xLjQ="})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("send without publisher status=%d, want 503", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "facturepro.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	opts := DefaultOptions()
	opts.RateLimit = ratelimit.Config{RequestsPerMinute: 2}
	srv := NewServer(":0", repo, services.NewInvoiceService(repo, nil), opts)
	defer srv.Shutdown(context.Background())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/reference", strings.NewReader(`{"invoiceNumber":"1"}`))
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}

	// Reads are never limited.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("GET after limit status=%d", rr.Code)
	}
}

func TestNotFoundRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, http.MethodGet, "/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", rr.Code)
	}
	if decode[ErrorBody](t, rr).Error == "" {
		t.Error("expected JSON error body")
	}
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/api"
	"github.com/xraph/stockwise/backup"
	"github.com/xraph/stockwise/observability"
	"github.com/xraph/stockwise/session"
	"github.com/xraph/stockwise/store/memory"
)

type harness struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	tr := stockwise.New(memory.New(),
		stockwise.WithLogger(logger),
		stockwise.WithBcryptCost(bcrypt.MinCost),
		stockwise.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
	)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Stop() })

	sessions, err := session.New([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	srv := api.New(tr, api.WithLogger(logger), api.WithSessions(sessions), api.WithMetrics(reg))
	return &harness{t: t, handler: srv.Handler()}
}

func (h *harness) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type itemJSON struct {
	ItemID         string   `json:"itemid"`
	AvailableStock int      `json:"availablestock"`
	History        []string `json:"history"`
}

type recordJSON struct {
	ID       string              `json:"_id"`
	Warnings []stockwise.Warning `json:"warnings"`
}

func TestItemAndReceiptFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/items", map[string]any{"description": "bolt", "availablestock": 10, "username": "alice"})
	expectStatus(t, rec, http.StatusOK)
	created := decode[itemJSON](t, rec)
	if created.ItemID != "I001" || created.AvailableStock != 10 {
		t.Fatalf("unexpected item %+v", created)
	}

	rec = h.do(http.MethodPost, "/order-history", map[string]any{
		"poNumber":     "PO-9",
		"dateReceived": "2026-03-01",
		"items":        []map[string]any{{"itemId": "I001", "description": "bolt", "quantityReceived": 5}},
	}, api.HeaderCurrentUser, "bob")
	expectStatus(t, rec, http.StatusOK)
	receipt := decode[recordJSON](t, rec)
	if receipt.ID == "" || len(receipt.Warnings) != 0 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	rec = h.do(http.MethodGet, "/items/I001/history", nil)
	expectStatus(t, rec, http.StatusOK)
	lines := decode[[]string](t, rec)
	if len(lines) != 2 || !strings.Contains(lines[1], "bob") || !strings.Contains(lines[1], receipt.ID) {
		t.Errorf("expected a bob entry tagged %s, got %v", receipt.ID, lines)
	}

	rec = h.do(http.MethodDelete, "/order-history/"+receipt.ID, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = h.do(http.MethodGet, "/items", nil)
	expectStatus(t, rec, http.StatusOK)
	items := decode[[]itemJSON](t, rec)
	if len(items) != 1 || items[0].AvailableStock != 10 {
		t.Errorf("expected stock back to 10, got %+v", items)
	}
}

func TestRecordsKeyedByUnderscoreID(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(http.MethodPost, "/items", map[string]any{"description": "bolt", "availablestock": 10}), http.StatusOK)

	tests := []struct {
		name string
		path string
		body map[string]any
	}{
		{"order history", "/order-history", map[string]any{
			"poNumber":     "PO-9",
			"dateReceived": "2026-03-01",
			"items":        []map[string]any{{"itemId": "I001", "description": "bolt", "quantityReceived": 5}},
		}},
		{"use history", "/use-history", map[string]any{
			"jobNumber": "JOB-9",
			"dateUsed":  "2026-03-02",
			"items":     []map[string]any{{"itemId": "I001", "description": "bolt", "quantityUsed": 2}},
		}},
		{"requirements", "/requirements", map[string]any{
			"jobNumber": "JOB-10",
			"neededBy":  "2026-04-01",
			"items":     []map[string]any{{"itemId": "I001", "description": "bolt", "quantityNeeded": 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, tt.path, tt.body)
			expectStatus(t, rec, http.StatusOK)
			created := decode[map[string]any](t, rec)
			key, _ := created["_id"].(string)
			if key == "" {
				t.Fatalf("expected an _id key, got %v", created)
			}
			if _, ok := created["id"]; ok {
				t.Errorf("unexpected id key in %v", created)
			}

			rec = h.do(http.MethodGet, tt.path, nil)
			expectStatus(t, rec, http.StatusOK)
			listed := decode[[]map[string]any](t, rec)
			if len(listed) != 1 || listed[0]["_id"] != key {
				t.Errorf("expected one record with _id %s, got %v", key, listed)
			}

			expectStatus(t, h.do(http.MethodDelete, tt.path+"/"+key, nil), http.StatusOK)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		msg    string
	}{
		{"missing item history", http.MethodGet, "/items/I404/history", nil, http.StatusNotFound, "Item not found"},
		{"bad body", http.MethodPost, "/items", "not an object", http.StatusBadRequest, "Invalid request body"},
		{"missing description", http.MethodPost, "/items", map[string]any{"availablestock": 1}, http.StatusBadRequest, ""},
		{"malformed record id", http.MethodDelete, "/order-history/nope", nil, http.StatusNotFound, "Order history not found"},
		{"unknown use history", http.MethodDelete, "/use-history/use_01h2xcejqtf2nbrexx3vqjhp41", nil, http.StatusNotFound, "Use history not found"},
		{"empty receipt", http.MethodPost, "/order-history", map[string]any{"poNumber": "PO", "dateReceived": "2026-01-01"}, http.StatusBadRequest, ""},
		{"unknown route", http.MethodGet, "/nowhere", nil, http.StatusNotFound, "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(tt.method, tt.path, tt.body)
			expectStatus(t, rec, tt.status)
			body := decode[map[string]string](t, rec)
			if body["error"] == "" {
				t.Fatalf("expected an error message, got %s", rec.Body.String())
			}
			if tt.msg != "" && body["error"] != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, body["error"])
			}
		})
	}
}

func TestAccountFlow(t *testing.T) {
	h := newHarness(t)
	signup := map[string]any{
		"userid":           "alice",
		"email":            "alice@example.com",
		"password":         "secret1",
		"securityQuestion": "First pet?",
		"securityAnswer":   "Rex",
	}

	expectStatus(t, h.do(http.MethodPost, "/signup", signup), http.StatusCreated)
	rec := h.do(http.MethodPost, "/signup", signup)
	expectStatus(t, rec, http.StatusConflict)
	if msg := decode[map[string]string](t, rec)["error"]; msg != "User already exists" {
		t.Errorf("unexpected conflict message %q", msg)
	}

	rec = h.do(http.MethodPost, "/signin", map[string]any{"useridOrEmail": "alice", "password": "wrong"})
	expectStatus(t, rec, http.StatusUnauthorized)
	rec = h.do(http.MethodPost, "/signin", map[string]any{"useridOrEmail": "nobody", "password": "secret1"})
	expectStatus(t, rec, http.StatusNotFound)

	rec = h.do(http.MethodPost, "/signin", map[string]any{"useridOrEmail": "alice@example.com", "password": "secret1", "rememberMe": true})
	expectStatus(t, rec, http.StatusOK)
	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "alice" {
		t.Fatalf("expected a signed remember-me cookie, got %v", sessionCookie)
	}
	h.cookies = []*http.Cookie{sessionCookie}

	// The remembered user becomes the ledger actor.
	rec = h.do(http.MethodPost, "/items", map[string]any{"description": "nut", "availablestock": 1})
	expectStatus(t, rec, http.StatusOK)
	if it := decode[itemJSON](t, rec); len(it.History) != 1 || !strings.Contains(it.History[0], "alice") {
		t.Errorf("expected alice as actor, got %v", it.History)
	}

	rec = h.do(http.MethodPost, "/identify-user", map[string]any{"userIdOrEmail": "alice"})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "First pet?") {
		t.Errorf("expected the security question, got %s", rec.Body.String())
	}
	expectStatus(t, h.do(http.MethodPost, "/verify-security-answer", map[string]any{"userid": "alice", "securityAnswer": "cat"}), http.StatusUnauthorized)
	expectStatus(t, h.do(http.MethodPost, "/verify-security-answer", map[string]any{"userid": "alice", "securityAnswer": "rex"}), http.StatusOK)

	rec = h.do(http.MethodPut, "/change-password", map[string]any{"userid": "alice", "currentPassword": "bad", "newPassword": "another1"})
	expectStatus(t, rec, http.StatusUnauthorized)
	if msg := decode[map[string]string](t, rec)["error"]; msg != "Incorrect current password" {
		t.Errorf("unexpected message %q", msg)
	}

	expectStatus(t, h.do(http.MethodPost, "/logout", nil), http.StatusOK)
	expectStatus(t, h.do(http.MethodDelete, "/delete-account", map[string]any{"userid": "alice"}), http.StatusOK)
	expectStatus(t, h.do(http.MethodPost, "/signin", map[string]any{"useridOrEmail": "alice", "password": "secret1"}), http.StatusNotFound)
}

func TestBackupAndResetDownload(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(http.MethodPost, "/items", map[string]any{"description": "bolt", "availablestock": 4}), http.StatusOK)

	rec := h.do(http.MethodGet, "/backup-and-reset", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != backup.ContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, backup.DownloadName) {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected a workbook body")
	}

	items := decode[[]itemJSON](t, h.do(http.MethodGet, "/items", nil))
	if len(items) != 1 || items[0].AvailableStock != 0 {
		t.Errorf("expected item kept with zero stock, got %+v", items)
	}
}

func TestHealthMetricsAndIntegrity(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(http.MethodGet, "/healthz", nil), http.StatusNoContent)
	expectStatus(t, h.do(http.MethodPost, "/items", map[string]any{"description": "bolt"}), http.StatusOK)

	rec := h.do(http.MethodGet, "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "stockwise_item_created_total") {
		t.Errorf("expected item counter in metrics output")
	}

	rec = h.do(http.MethodGet, "/integrity", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("expected a clean integrity report, got %s", rec.Body.String())
	}

	rec = h.do(http.MethodGet, "/dashboard", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get(api.HeaderRequestID) == "" {
		t.Error("expected a request id header")
	}
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"adportal/internal/config"
	"adportal/internal/pricing"
	"adportal/internal/quote"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "s3cret"

var testNow = time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)

type fakeLimiter struct {
	limited bool
	calls   []string
}

func (l *fakeLimiter) CheckRateLimit(ctx context.Context, subject, action string, limit int64, window time.Duration) (bool, error) {
	l.calls = append(l.calls, action+":"+subject)
	return l.limited, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	created []string
	changed []quote.Status
}

func (n *fakeNotifier) NotifyNewQuote(ctx context.Context, q *quote.Quote) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, q.Ref)
}

func (n *fakeNotifier) NotifyStatusChange(ctx context.Context, q *quote.Quote) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, q.Status)
}

type fixture struct {
	server   *Server
	limiter  *fakeLimiter
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	card, err := pricing.DefaultRateCard()
	require.NoError(t, err)

	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	repo := quote.NewMemoryRepository(
		[]pricing.Area{
			{ID: "north", Name: "North", Circulation: 5000, Households: 4800,
				Prices: map[pricing.AdSize]decimal.Decimal{"quarter": price("100")}},
			{ID: "south", Name: "South", Circulation: 3000, Households: 3100,
				Prices: map[pricing.AdSize]decimal.Decimal{"quarter": price("80")}},
		},
		pricing.Voucher{Code: "SAVE10", Kind: pricing.VoucherPercent, Value: price("10"),
			Product: pricing.ProductAny, Stackable: true, Active: true},
	)

	log := zaptest.NewLogger(t)
	svc := quote.NewService(repo, nil, card, log, quote.WithClock(func() time.Time { return testNow }))

	f := &fixture{limiter: &fakeLimiter{}, notifier: &fakeNotifier{}}
	f.server = New(config.HTTPConfig{
		SubmitLimit:   5,
		SubmitWindow:  10 * time.Minute,
		WebhookSecret: testSecret,
	}, svc, f.limiter, f.notifier, log)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func advertDraft() map[string]any {
	return map[string]any{
		"product":   "advertising",
		"selection": map[string]any{"paid": []string{"north"}},
		"ad_size":   "quarter",
		"months":    3,
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestAreasAndRateCard(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/areas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["areas"], 2)
	assert.Equal(t, "GBP", body["currency"])

	w = f.do(t, http.MethodGet, "/api/v1/ratecard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	months := decode(t, w)["bookable_months"].([]any)
	assert.Len(t, months, 12)
	assert.Equal(t, "2026-10", months[0])
}

func TestCalculate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/quotes/calculate", advertDraft())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	q := body["quote"].(map[string]any)
	assert.Equal(t, "342", q["total"])

	lines := body["lines"].([]any)
	last := lines[len(lines)-1].(map[string]any)
	assert.Equal(t, "Total", last["label"])
	assert.Equal(t, "£342.00", last["formatted"])
}

func TestCalculate_Errors(t *testing.T) {
	f := newFixture(t)

	draft := advertDraft()
	draft["selection"] = map[string]any{"paid": []string{"atlantis"}}
	w := f.do(t, http.MethodPost, "/api/v1/quotes/calculate", draft)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/calculate", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateSchedule(t *testing.T) {
	f := newFixture(t)

	draft := advertDraft()
	draft["schedule"] = map[string][]string{"north": {"2026-09", "2026-10"}}
	w := f.do(t, http.MethodPost, "/api/v1/schedule/validate", map[string]any{"draft": draft})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, []any{map[string]any{
		"area_id": "north",
		"month":   "2026-09",
		"reason":  pricing.ViolationTooEarly,
	}}, body["violations"])

	draft["schedule"] = map[string][]string{"north": {"2026-10"}}
	w = f.do(t, http.MethodPost, "/api/v1/schedule/validate", map[string]any{"draft": draft})
	assert.Equal(t, true, decode(t, w)["valid"])
}

func TestCheckVoucher(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/vouchers/check", map[string]any{
		"code": "save10", "product": "leafleting", "subtotal": "100",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "SAVE10", body["code"])

	w = f.do(t, http.MethodPost, "/api/v1/vouchers/check", map[string]any{"code": "save10"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func submitBody() map[string]any {
	draft := advertDraft()
	draft["schedule"] = map[string][]string{"north": {"2026-10", "2026-11", "2026-12"}}
	draft["vouchers"] = []string{"save10"}
	return map[string]any{
		"draft":   draft,
		"contact": map[string]any{"name": "Ann Baker", "email": "ann@example.com"},
	}
}

func TestSubmitGetExport(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/quotes", submitBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	q := decode(t, w)["quote"].(map[string]any)
	ref := q["ref"].(string)
	assert.Equal(t, "web", q["source"])
	assert.Equal(t, "307.8", q["price"].(map[string]any)["total"])
	assert.Equal(t, []string{ref}, f.notifier.created)
	assert.Len(t, f.limiter.calls, 1)

	w = f.do(t, http.MethodGet, "/api/v1/quotes/"+ref, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ref, decode(t, w)["quote"].(map[string]any)["ref"])

	w = f.do(t, http.MethodGet, "/api/v1/quotes/"+ref+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "quote-"+ref[:8]+".xlsx")
	assert.NotZero(t, w.Body.Len())

	w = f.do(t, http.MethodGet, "/api/v1/quotes/5b7f1c7e-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmit_Rejected(t *testing.T) {
	f := newFixture(t)

	body := submitBody()
	body["contact"] = map[string]any{"name": "Ann Baker"}
	w := f.do(t, http.MethodPost, "/api/v1/quotes", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body = submitBody()
	body["draft"].(map[string]any)["schedule"] = map[string][]string{"north": {"2026-10"}}
	w = f.do(t, http.MethodPost, "/api/v1/quotes", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, decode(t, w)["violations"])
	assert.Empty(t, f.notifier.created)
}

func TestSubmit_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.limited = true

	w := f.do(t, http.MethodPost, "/api/v1/quotes", submitBody())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "600", w.Header().Get("Retry-After"))
	assert.Empty(t, f.notifier.created)
}

func TestBackendWebhook(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/quotes", submitBody())
	require.Equal(t, http.StatusCreated, w.Code)
	ref := decode(t, w)["quote"].(map[string]any)["ref"].(string)

	event := func(status string) map[string]any {
		return map[string]any{
			"event_type": "quote_status_changed",
			"data":       map[string]any{"reference": ref, "status": status},
		}
	}

	w = f.do(t, http.MethodPost, "/webhooks/backend", event("booked"), "X-Webhook-Secret", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/webhooks/backend", event("booked"), "X-Webhook-Secret", testSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "booked", decode(t, w)["status"])
	assert.Equal(t, []quote.Status{quote.StatusBooked}, f.notifier.changed)

	// Repeated delivery is a no-op.
	w = f.do(t, http.MethodPost, "/webhooks/backend", event("booked"), "X-Webhook-Secret", testSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.notifier.changed, 1)

	w = f.do(t, http.MethodPost, "/webhooks/backend", event("contacted"), "X-Webhook-Secret", testSecret)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/webhooks/backend", event("paid"), "X-Webhook-Secret", testSecret)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/webhooks/backend",
		map[string]any{"event_type": "lead_added", "data": map[string]any{}}, "X-Webhook-Secret", testSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ignored"])
}

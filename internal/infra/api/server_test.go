//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/infra/api"
	"telegram-premium-delivery/internal/infra/payment"
	"telegram-premium-delivery/internal/usecase"
)

//
// ---------------- usecase fakes ----------------
//

type fakeEvents struct{ n int }

func (f *fakeEvents) Record(ctx context.Context, source string, kind model.EventKind, eventType string, raw []byte) (*model.InboundEvent, error) {
	f.n++
	return &model.InboundEvent{ID: "ev-1", Source: source, Kind: kind, EventType: eventType, RawPayload: raw}, nil
}

type fakeLedger struct {
	mu     sync.Mutex
	active map[string]*model.Entitlement
}

func newFakeLedger() *fakeLedger { return &fakeLedger{active: map[string]*model.Entitlement{}} }

func key(sub string, pt model.ProductType) string { return sub + "/" + string(pt) }

func (f *fakeLedger) Grant(ctx context.Context, sub string, pt model.ProductType) (*model.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &model.Entitlement{ID: "ent-" + sub, SubscriberID: sub, ProductType: pt, Status: model.EntitlementStatusActive, UpdatedAt: time.Now()}
	f.active[key(sub, pt)] = e
	return e, nil
}

func (f *fakeLedger) Renew(ctx context.Context, sub string, pt model.ProductType) (bool, error) {
	return false, nil
}

func (f *fakeLedger) Revoke(ctx context.Context, sub string, pt model.ProductType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.active[key(sub, pt)]; ok {
		e.Status = model.EntitlementStatusRevoked
		return 1, nil
	}
	return 0, nil
}

func (f *fakeLedger) HasActiveEntitlement(ctx context.Context, sub string, pt model.ProductType) (bool, error) {
	e, err := f.Current(ctx, sub, pt)
	if err != nil {
		return false, nil
	}
	return e.IsActiveAt(time.Now()), nil
}

func (f *fakeLedger) Current(ctx context.Context, sub string, pt model.ProductType) (*model.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.active[key(sub, pt)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

type fakeDelivery struct {
	mu        sync.Mutex
	delivered []string
}

func (f *fakeDelivery) Deliver(ctx context.Context, sub string, ent *model.Entitlement) model.DeliveryOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, sub)
	return model.DeliveryOutcome{Status: model.OutcomeDelivered, RecordID: "rec-1", ContentID: "pack-1", Sent: 6}
}

func (f *fakeDelivery) Redeliver(ctx context.Context, id string) model.DeliveryOutcome {
	if id != "rec-1" {
		return model.DeliveryOutcome{Status: model.OutcomeFailed, RecordID: id, Err: domain.ErrNotFound}
	}
	return model.DeliveryOutcome{Status: model.OutcomeAlreadyDelivered, RecordID: id, ContentID: "pack-1"}
}

func (f *fakeDelivery) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

type fakePacks struct{ started []string }

func (f *fakePacks) Start(ctx context.Context, theme string, count int) (*model.ContentPack, error) {
	if strings.TrimSpace(theme) == "" {
		return nil, domain.ErrInvalidArgument
	}
	f.started = append(f.started, theme)
	return &model.ContentPack{ID: "pack-9", Theme: theme, Status: model.ContentPackStatusBuilding, CreatedAt: time.Now()}, nil
}

func (f *fakePacks) Generate(ctx context.Context, p *model.ContentPack, count int) (*model.ContentPack, error) {
	return p, nil
}

func (f *fakePacks) Get(ctx context.Context, id string) (*model.ContentPack, error) {
	if id != "pack-9" {
		return nil, domain.ErrNotFound
	}
	return &model.ContentPack{ID: id, Theme: "Paris", Status: model.ContentPackStatusReady, Items: []model.ContentItem{{Position: 0, Kind: model.ContentKindPhoto, URL: "https://img/0.png"}}}, nil
}

//
// -------------------- test helpers --------------------
//

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("connection reset") }

const (
	secret   = "tribute-secret"
	adminKey = "admin-key"
	hookPath = "/api/v1/payments/tribute/webhook"
)

type harness struct {
	ledger   *fakeLedger
	delivery *fakeDelivery
	events   *fakeEvents
	packs    *fakePacks
	handler  http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()
	h := &harness{ledger: newFakeLedger(), delivery: &fakeDelivery{}, events: &fakeEvents{}, packs: &fakePacks{}}
	catalog := usecase.NewProductCatalog(nil, model.ProductSubscription, nil)
	router := usecase.NewPurchaseRouter(payment.NewHMACVerifier(secret), h.events, h.ledger, h.delivery, catalog, nil,
		usecase.RouterOptions{Source: "tribute"}, &logger)
	srv := api.NewServer(router, h.ledger, h.delivery, h.packs, api.NewAuthManager(adminKey, "jwt-secret", time.Minute),
		api.Options{WebhookPath: hookPath}, &logger)
	h.handler = srv.Routes()
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) webhook(body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, hookPath, strings.NewReader(body))
	if sig != "" {
		req.Header.Set("trbt-signature", sig)
	}
	return h.do(req)
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/token", nil)
	req.Header.Set("X-Admin-Key", adminKey)
	rec := h.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("token: want 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&body)
	return body.Token
}

func (h *harness) admin(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+h.token(t))
	return h.do(req)
}

//
// -------------------- tests --------------------
//

func TestWebhook(t *testing.T) {
	purchase := `{"event_type":"purchase_success","data":{"user_id":"123","product_id":"p1","product_type":"subscription"}}`

	t.Run("200 on a signed purchase", func(t *testing.T) {
		h := newHarness(t)
		rec := h.webhook(purchase, payment.Sign([]byte(purchase), secret))
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"received":true}` {
			t.Fatalf("want 200 received, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if ok, _ := h.ledger.HasActiveEntitlement(context.Background(), "123", model.ProductSubscription); !ok {
			t.Error("expected an active entitlement")
		}
		if h.delivery.count() != 1 {
			t.Errorf("expected one delivery, got %d", h.delivery.count())
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("401 without signature", func(t *testing.T) {
		h := newHarness(t)
		rec := h.webhook(purchase, "")
		if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Missing signature") {
			t.Fatalf("want 401 missing, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if _, err := h.ledger.Current(context.Background(), "123", model.ProductSubscription); err == nil {
			t.Error("no entitlement expected")
		}
		if h.events.n != 0 {
			t.Error("rejected calls must not be stored")
		}
	})

	t.Run("401 with a bad signature", func(t *testing.T) {
		h := newHarness(t)
		rec := h.webhook(purchase, strings.Repeat("ab", 32))
		if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Invalid signature") {
			t.Fatalf("want 401 invalid, got %d, body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("200 on refund without delivery", func(t *testing.T) {
		h := newHarness(t)
		_, _ = h.ledger.Grant(context.Background(), "123", model.ProductSubscription)
		body := `{"event_type":"refund","data":{"user_id":"123"}}`
		rec := h.webhook(body, payment.Sign([]byte(body), secret))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		if ok, _ := h.ledger.HasActiveEntitlement(context.Background(), "123", model.ProductSubscription); ok {
			t.Error("expected the entitlement to be revoked")
		}
		if h.delivery.count() != 0 {
			t.Error("refunds must not deliver")
		}
	})

	t.Run("200 on malformed json with a valid signature", func(t *testing.T) {
		h := newHarness(t)
		body := `not json`
		rec := h.webhook(body, payment.Sign([]byte(body), secret))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("405 on GET", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet, hookPath, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("want 405, got %d", rec.Code)
		}
	})

	t.Run("200 without side effects on an unreadable body", func(t *testing.T) {
		h := newHarness(t)
		req := httptest.NewRequest(http.MethodPost, hookPath, errReader{})
		req.Header.Set("trbt-signature", payment.Sign([]byte(purchase), secret))
		rec := h.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		if h.events.n != 0 || h.delivery.count() != 0 {
			t.Errorf("nothing should be stored or delivered, events=%d deliveries=%d", h.events.n, h.delivery.count())
		}
	})

	t.Run("413 on oversized bodies", func(t *testing.T) {
		h := newHarness(t)
		big := strings.Repeat("x", 2<<20)
		rec := h.webhook(big, payment.Sign([]byte(big), secret))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("want 413, got %d", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestAdmin(t *testing.T) {
	t.Run("401 token with wrong key", func(t *testing.T) {
		h := newHarness(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/token", nil)
		req.Header.Set("X-Admin-Key", "nope")
		if rec := h.do(req); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("401 without bearer token", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/admin/packs/pack-9", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("401 with a token signed by another secret", func(t *testing.T) {
		h := newHarness(t)
		other := api.NewAuthManager(adminKey, "other-secret", time.Minute)
		tok, _, err := other.Mint()
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/packs/pack-9", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		if rec := h.do(req); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("202 pack generation started", func(t *testing.T) {
		h := newHarness(t)
		rec := h.admin(t, http.MethodPost, "/api/v1/admin/packs", []byte(`{"theme":"Paris","count":5}`))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if len(h.packs.started) != 1 || h.packs.started[0] != "Paris" {
			t.Errorf("expected Paris generation, got %v", h.packs.started)
		}
	})

	t.Run("422 pack without theme", func(t *testing.T) {
		h := newHarness(t)
		rec := h.admin(t, http.MethodPost, "/api/v1/admin/packs", []byte(`{"theme":" "}`))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("want 422, got %d", rec.Code)
		}
	})

	t.Run("200 and 404 pack lookup", func(t *testing.T) {
		h := newHarness(t)
		rec := h.admin(t, http.MethodGet, "/api/v1/admin/packs/pack-9", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		var body struct {
			Status string `json:"status"`
			Items  []struct {
				URL string `json:"url"`
			} `json:"items"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Status != "ready" || len(body.Items) != 1 {
			t.Errorf("unexpected pack body: %+v (%v)", body, err)
		}
		if rec := h.admin(t, http.MethodGet, "/api/v1/admin/packs/missing", nil); rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
	})

	t.Run("resend by record and by subscriber", func(t *testing.T) {
		h := newHarness(t)
		if rec := h.admin(t, http.MethodPost, "/api/v1/admin/deliveries/resend", []byte(`{"record_id":"rec-1"}`)); rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
		if rec := h.admin(t, http.MethodPost, "/api/v1/admin/deliveries/resend", []byte(`{"record_id":"nope"}`)); rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
		if rec := h.admin(t, http.MethodPost, "/api/v1/admin/deliveries/resend", []byte(`{"subscriber_id":"123","product_type":"subscription"}`)); rec.Code != http.StatusConflict {
			t.Errorf("want 409 without entitlement, got %d", rec.Code)
		}
		_, _ = h.ledger.Grant(context.Background(), "123", model.ProductSubscription)
		if rec := h.admin(t, http.MethodPost, "/api/v1/admin/deliveries/resend", []byte(`{"subscriber_id":"123","product_type":"subscription"}`)); rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
		if h.delivery.count() != 1 {
			t.Errorf("expected one delivery, got %d", h.delivery.count())
		}
	})

	t.Run("entitlement lookup", func(t *testing.T) {
		h := newHarness(t)
		if rec := h.admin(t, http.MethodGet, "/api/v1/admin/entitlements/123/subscription", nil); rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
		_, _ = h.ledger.Grant(context.Background(), "123", model.ProductSubscription)
		rec := h.admin(t, http.MethodGet, "/api/v1/admin/entitlements/123/subscription", nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"active":true`) {
			t.Errorf("want active entitlement, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if rec := h.admin(t, http.MethodGet, "/api/v1/admin/entitlements/123/gold", nil); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("want 422, got %d", rec.Code)
		}
	})

	t.Run("403 when no admin key is configured", func(t *testing.T) {
		logger := zerolog.Nop()
		catalog := usecase.NewProductCatalog(nil, model.ProductSubscription, nil)
		router := usecase.NewPurchaseRouter(payment.NewHMACVerifier(secret), &fakeEvents{}, newFakeLedger(), &fakeDelivery{}, catalog, nil, usecase.RouterOptions{}, &logger)
		srv := api.NewServer(router, newFakeLedger(), &fakeDelivery{}, nil, api.NewAuthManager("", "", 0), api.Options{}, &logger)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/token", nil)
		req.Header.Set("X-Admin-Key", "")
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})
}

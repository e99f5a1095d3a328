package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relaypath/edge/internal/events"
	storage "github.com/relaypath/edge/internal/storage/mongo"
)

type fakeCacheWriter struct {
	setKeys    []string
	setPayload []byte
	deleted    []string
}

func (f *fakeCacheWriter) SetRawJSON(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	f.setKeys = append(f.setKeys, key)
	f.setPayload = raw
	return nil
}

func (f *fakeCacheWriter) DeleteLink(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeRelayPublisher struct {
	conversions []events.ConversionDispatchRequested
	opsKeys     []string
	opsPayloads []any
}

func (f *fakeRelayPublisher) PublishConversion(ctx context.Context, payload events.ConversionDispatchRequested) error {
	f.conversions = append(f.conversions, payload)
	return nil
}

func (f *fakeRelayPublisher) PublishOps(ctx context.Context, key string, payload any) error {
	f.opsKeys = append(f.opsKeys, key)
	f.opsPayloads = append(f.opsPayloads, payload)
	return nil
}

type fakeAbuseStore struct {
	reports []storage.AbuseReport
}

func (f *fakeAbuseStore) InsertReport(ctx context.Context, report storage.AbuseReport) error {
	f.reports = append(f.reports, report)
	return nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("POST", "/api/test", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestUpdateCache(t *testing.T) {
	cache := &fakeCacheWriter{}
	h := NewAdminHandler(cache, &fakeRelayPublisher{}, &fakeAbuseStore{})

	w := postJSON(t, h.UpdateCache, `{
		"domain": "rlpth.io",
		"slug": "promo",
		"link": {"domain":"rlpth.io","slug":"promo","targetUrl":"https://shop.example.com","status":"active"}
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if len(cache.setKeys) != 1 || cache.setKeys[0] != "link:rlpth.io:promo" {
		t.Fatalf("set keys = %v", cache.setKeys)
	}
	if !json.Valid(cache.setPayload) {
		t.Fatal("stored payload must be valid json")
	}
}

func TestUpdateCacheRejectsBadSlug(t *testing.T) {
	cache := &fakeCacheWriter{}
	h := NewAdminHandler(cache, &fakeRelayPublisher{}, &fakeAbuseStore{})

	w := postJSON(t, h.UpdateCache, `{"domain":"rlpth.io","slug":"Bad Slug","link":{}}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(cache.setKeys) != 0 {
		t.Fatal("invalid request must not write")
	}
}

func TestDeleteCache(t *testing.T) {
	cache := &fakeCacheWriter{}
	h := NewAdminHandler(cache, &fakeRelayPublisher{}, &fakeAbuseStore{})

	w := postJSON(t, h.DeleteCache, `{"domain":"rlpth.io","slug":"promo"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != "link:rlpth.io:promo" {
		t.Fatalf("deleted = %v", cache.deleted)
	}
}

func TestCapiRelay(t *testing.T) {
	pub := &fakeRelayPublisher{}
	h := NewAdminHandler(&fakeCacheWriter{}, pub, &fakeAbuseStore{})

	w := postJSON(t, h.CapiRelay, `{
		"slug": "promo",
		"targetUrl": "https://shop.example.com",
		"query": "gclid=abc",
		"targets": [{"platform":"google","pixelId":"G-1","capiToken":"tok","eventName":"purchase"}]
	}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if len(pub.conversions) != 1 {
		t.Fatalf("conversions = %d", len(pub.conversions))
	}
	if pub.conversions[0].EventID == "" {
		t.Fatal("missing event id must be generated")
	}
}

func TestCapiRelayRejectsEmptyTargets(t *testing.T) {
	pub := &fakeRelayPublisher{}
	h := NewAdminHandler(&fakeCacheWriter{}, pub, &fakeAbuseStore{})

	w := postJSON(t, h.CapiRelay, `{"slug":"promo","targetUrl":"https://x.example.com","targets":[]}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(pub.conversions) != 0 {
		t.Fatal("invalid payload must not publish")
	}
}

func TestAbuseReport(t *testing.T) {
	store := &fakeAbuseStore{}
	h := NewAdminHandler(&fakeCacheWriter{}, &fakeRelayPublisher{}, store)

	w := postJSON(t, h.AbuseReport, `{
		"domain": "rlpth.io",
		"slug": "promo",
		"reason": "phishing",
		"reporterEmail": "user@example.com"
	}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if len(store.reports) != 1 {
		t.Fatalf("reports = %d", len(store.reports))
	}
	if store.reports[0].Reason != "phishing" {
		t.Fatalf("reason = %q", store.reports[0].Reason)
	}
}

func TestLogBackofficeEvent(t *testing.T) {
	pub := &fakeRelayPublisher{}
	h := NewAdminHandler(&fakeCacheWriter{}, pub, &fakeAbuseStore{})

	w := postJSON(t, h.LogBackofficeEvent, `{"kind":"plan_upgraded","payload":{"tier":"pro"}}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if len(pub.opsKeys) != 1 || pub.opsKeys[0] != "plan_upgraded" {
		t.Fatalf("ops keys = %v", pub.opsKeys)
	}
	event := pub.opsPayloads[0].(events.BackofficeEvent)
	if event.EventID == "" {
		t.Fatal("event id must be generated")
	}
}

func TestSendConfirmationEmail(t *testing.T) {
	pub := &fakeRelayPublisher{}
	h := NewAdminHandler(&fakeCacheWriter{}, pub, &fakeAbuseStore{})

	w := postJSON(t, h.SendConfirmationEmail, `{"email":"user@example.com","name":"User"}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if len(pub.opsPayloads) != 1 {
		t.Fatalf("ops payloads = %d", len(pub.opsPayloads))
	}

	w = postJSON(t, h.SendConfirmationEmail, `{"email":"not-an-email"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad email status = %d, want 400", w.Code)
	}
}

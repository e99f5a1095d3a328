package capi

import (
	"context"
	"testing"
	"time"

	"github.com/relaypath/edge/internal/events"
	"github.com/relaypath/edge/internal/processing/classify"
	"github.com/relaypath/edge/internal/processing/links"
)

type mockConversionPublisher struct {
	published []events.ConversionDispatchRequested
	err       error
}

func (m *mockConversionPublisher) PublishConversion(ctx context.Context, payload events.ConversionDispatchRequested) error {
	m.published = append(m.published, payload)
	return m.err
}

func eligibleLink(mode links.TrackingMode) *links.Link {
	return &links.Link{
		Domain:       "rlpth.io",
		Slug:         "promo",
		TargetURL:    "https://shop.example.com",
		Status:       links.StatusActive,
		TrackingMode: mode,
		PlanTier:     links.TierPro,
		Pixels: []links.CapiPixel{
			{Platform: links.PlatformGoogle, PixelID: "G-1", CapiToken: "tok", Status: links.PixelActive},
		},
	}
}

func clickRequest(query string) *classify.Request {
	return &classify.Request{
		Domain: "rlpth.io",
		Slug:   "promo",
		Query:  query,
		Signal: classify.Signal{
			RayID:     "ray-1",
			IP:        "203.0.113.9",
			UserAgent: "Mozilla/5.0",
			BotScore:  100,
		},
	}
}

func testDispatcher(pub Publisher) *Dispatcher {
	d := NewDispatcher(pub)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	d.newID = func() string { return "evt-fixed" }
	return d
}

func TestBuildCapiOnly(t *testing.T) {
	d := testDispatcher(&mockConversionPublisher{})

	plan := d.Build(eligibleLink(links.TrackingCapi), clickRequest("gclid=abc"), "https://shop.example.com?gclid=abc")

	if len(plan.Bridge) != 0 {
		t.Fatalf("capi-only mode must not fire the bridge, got %d pixels", len(plan.Bridge))
	}
	if plan.Publish == nil {
		t.Fatal("expected a publish payload")
	}
	if plan.Publish.EventID != "evt-fixed" {
		t.Fatalf("event id = %q", plan.Publish.EventID)
	}
	if len(plan.Publish.Targets) != 1 || plan.Publish.Targets[0].PixelID != "G-1" {
		t.Fatalf("targets = %+v", plan.Publish.Targets)
	}
}

func TestBuildPixelOnly(t *testing.T) {
	d := testDispatcher(&mockConversionPublisher{})

	plan := d.Build(eligibleLink(links.TrackingPixel), clickRequest("gclid=abc"), "https://shop.example.com")

	if len(plan.Bridge) != 1 {
		t.Fatalf("pixel mode must plan the bridge, got %d pixels", len(plan.Bridge))
	}
	if plan.Publish != nil {
		t.Fatal("pixel-only mode must not publish server-side")
	}
}

func TestBuildPixelAndCapi(t *testing.T) {
	d := testDispatcher(&mockConversionPublisher{})

	plan := d.Build(eligibleLink(links.TrackingPixelAndCapi), clickRequest("gclid=abc"), "https://shop.example.com")

	if len(plan.Bridge) != 1 || plan.Publish == nil {
		t.Fatalf("pixel_and_capi must plan both paths, got %+v", plan)
	}
}

func TestBuildSkipsWhenNotEligible(t *testing.T) {
	d := testDispatcher(&mockConversionPublisher{})

	link := eligibleLink(links.TrackingPixelAndCapi)
	link.PlanTier = links.TierFree

	plan := d.Build(link, clickRequest("gclid=abc"), "https://shop.example.com")
	if len(plan.Bridge) != 0 || plan.Publish != nil {
		t.Fatalf("free tier must produce an empty plan, got %+v", plan)
	}
}

func TestBuildOrganicTrafficStillBridges(t *testing.T) {
	d := testDispatcher(&mockConversionPublisher{})

	// No ad click id in the query: client tags still fire, only the
	// server-side publish is skipped.
	plan := d.Build(eligibleLink(links.TrackingPixelAndCapi), clickRequest("utm_source=newsletter"), "https://shop.example.com")
	if len(plan.Bridge) != 1 {
		t.Fatalf("organic visit must still plan the bridge, got %d pixels", len(plan.Bridge))
	}
	if plan.Publish != nil {
		t.Fatalf("no click ids must not publish server-side, got %+v", plan.Publish)
	}
}

func TestBuildCapiOnlySkipsWithoutClickIDs(t *testing.T) {
	d := testDispatcher(&mockConversionPublisher{})

	plan := d.Build(eligibleLink(links.TrackingCapi), clickRequest("utm_source=newsletter"), "https://shop.example.com")
	if len(plan.Bridge) != 0 || plan.Publish != nil {
		t.Fatalf("capi-only organic visit must produce an empty plan, got %+v", plan)
	}
}

func TestBuildBridgesTokenlessPixel(t *testing.T) {
	d := testDispatcher(&mockConversionPublisher{})

	link := eligibleLink(links.TrackingPixel)
	link.Pixels = []links.CapiPixel{
		{Platform: links.PlatformMeta, PixelID: "M-1", Status: links.PixelActive},
		{Platform: links.PlatformTikTok, PixelID: "T-1", Status: links.PixelPaused},
	}

	plan := d.Build(link, clickRequest("fbclid=xyz"), "https://shop.example.com")
	if len(plan.Bridge) != 1 || plan.Bridge[0].PixelID != "M-1" {
		t.Fatalf("client tags need no token, bridge = %+v", plan.Bridge)
	}
	if plan.Publish != nil {
		t.Fatal("pixel-only mode must not publish server-side")
	}
}

func TestDispatchPublishes(t *testing.T) {
	pub := &mockConversionPublisher{}
	d := testDispatcher(pub)

	plan := d.Build(eligibleLink(links.TrackingCapi), clickRequest("gclid=abc"), "https://shop.example.com")
	if err := d.Dispatch(context.Background(), plan); err != nil {
		t.Fatalf("Dispatch() err = %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.published))
	}

	if err := d.Dispatch(context.Background(), Plan{}); err != nil {
		t.Fatalf("empty plan dispatch err = %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatal("empty plan must not publish")
	}
}

package capi

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaypath/edge/internal/events"
)

func sampleConversion() events.ConversionDispatchRequested {
	return events.ConversionDispatchRequested{
		EventID:    "evt-1",
		RayID:      "ray-1",
		Slug:       "promo",
		Domain:     "rlpth.io",
		TargetURL:  "https://shop.example.com/landing",
		Query:      "gclid=g1&fbclid=f1&ttclid=t1&scid=s1&tblci=tb1&oglid=ob1",
		IP:         "203.0.113.9",
		UserAgent:  "Mozilla/5.0",
		Referer:    "https://www.facebook.com/",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
}

func TestBuildRequestMeta(t *testing.T) {
	wire, err := BuildRequest(events.PixelTarget{
		Platform:  "meta",
		PixelID:   "123456",
		CapiToken: "tok",
		EventName: "Purchase",
	}, sampleConversion())
	require.NoError(t, err)

	require.Equal(t, "POST", wire.Method)
	require.Equal(t, "https://graph.facebook.com/v18.0/123456/events", wire.URL)
	require.Empty(t, wire.Headers)

	body := wire.Body.(map[string]any)
	require.Equal(t, "tok", body["access_token"])

	data := body["data"].([]map[string]any)
	require.Len(t, data, 1)
	require.Equal(t, "Purchase", data[0]["event_name"])
	require.Equal(t, "evt-1", data[0]["event_id"])
	require.Equal(t, "website", data[0]["action_source"])

	userData := data[0]["user_data"].(map[string]any)
	require.Equal(t, "203.0.113.9", userData["client_ip_address"])
	fbc := userData["fbc"].(string)
	require.True(t, strings.HasPrefix(fbc, "fb.1."), "fbc = %s", fbc)
	require.True(t, strings.HasSuffix(fbc, ".f1"), "fbc = %s", fbc)
}

func TestBuildRequestTikTok(t *testing.T) {
	wire, err := BuildRequest(events.PixelTarget{
		Platform:  "tiktok",
		PixelID:   "TTPX",
		CapiToken: "tok",
		EventName: "CompletePayment",
	}, sampleConversion())
	require.NoError(t, err)

	require.Equal(t, "POST", wire.Method)
	require.Equal(t, "tok", wire.Headers["Access-Token"])

	body := wire.Body.(map[string]any)
	require.Equal(t, "web", body["event_source"])
	require.Equal(t, "TTPX", body["event_source_id"])

	data := body["data"].([]map[string]any)
	user := data[0]["user"].(map[string]any)
	require.Equal(t, "t1", user["ttclid"])
}

func TestBuildRequestGoogle(t *testing.T) {
	wire, err := BuildRequest(events.PixelTarget{
		Platform:  "google",
		PixelID:   "G-ABC",
		CapiToken: "secret",
		EventName: "purchase",
	}, sampleConversion())
	require.NoError(t, err)

	require.Equal(t, "POST", wire.Method)
	require.Equal(t, "https://www.google-analytics.com/mp/collect", wire.URL)
	require.Equal(t, "G-ABC", wire.Query["measurement_id"])
	require.Equal(t, "secret", wire.Query["api_secret"])

	body := wire.Body.(map[string]any)
	evs := body["events"].([]map[string]any)
	params := evs[0]["params"].(map[string]any)
	require.Equal(t, "g1", params["gclid"])
}

func TestBuildRequestSnapchat(t *testing.T) {
	wire, err := BuildRequest(events.PixelTarget{
		Platform:  "snapchat",
		PixelID:   "SNPX",
		CapiToken: "tok",
		EventName: "PURCHASE",
	}, sampleConversion())
	require.NoError(t, err)

	require.Equal(t, "Bearer tok", wire.Headers["Authorization"])

	body := wire.Body.(map[string]any)
	require.Equal(t, "WEB", body["event_conversion_type"])
	require.Equal(t, "s1", body["click_id"])

	// IP is hashed, never sent raw.
	hashed := body["hashed_ip_address"].(string)
	require.NotEqual(t, "203.0.113.9", hashed)
	require.Len(t, hashed, 64)
	_, isString := body["timestamp"].(string)
	require.True(t, isString, "snapchat timestamp must be a string")
}

func TestBuildRequestGetOnlyPlatforms(t *testing.T) {
	conv := sampleConversion()

	taboola, err := BuildRequest(events.PixelTarget{Platform: "taboola", PixelID: "TB", EventName: "purchase"}, conv)
	require.NoError(t, err)
	require.Equal(t, "GET", taboola.Method)
	require.Nil(t, taboola.Body)
	require.Equal(t, "tb1", taboola.Query["click-id"])
	require.Equal(t, "203.0.113.9", taboola.Headers["X-Forwarded-For"])

	outbrain, err := BuildRequest(events.PixelTarget{Platform: "outbrain", PixelID: "OB", EventName: "purchase"}, conv)
	require.NoError(t, err)
	require.Equal(t, "GET", outbrain.Method)
	require.Nil(t, outbrain.Body)
	require.Equal(t, "ob1", outbrain.Query["ob_click_id"])
	require.Equal(t, conv.TargetURL, outbrain.Query["dl"])
}

func TestBuildRequestUnknownPlatform(t *testing.T) {
	_, err := BuildRequest(events.PixelTarget{Platform: "myspace"}, sampleConversion())
	require.Error(t, err)
}

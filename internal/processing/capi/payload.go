package capi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/relaypath/edge/internal/events"
	"github.com/relaypath/edge/internal/processing/links"
)

// Platform endpoints. Pixel-specific path segments are appended at
// build time.
const (
	metaGraphBase    = "https://graph.facebook.com/v18.0"
	tiktokTrackURL   = "https://business-api.tiktok.com/open_api/v1.3/event/track/"
	googleCollectURL = "https://www.google-analytics.com/mp/collect"
	snapConversionURL = "https://tr.snapchat.com/v2/conversion"
	taboolaActionURL = "https://trc.taboola.com/actions-handler/log/3/s2s-action"
	outbrainPixelURL = "https://tr.outbrain.com/unifiedPixel"
)

// WireRequest is one platform-specific HTTP request, ready for the
// outbound client. Body is nil for the GET-only platforms.
type WireRequest struct {
	Method  string
	URL     string
	Query   map[string]string
	Headers map[string]string
	Body    any
}

// BuildRequest constructs the wire request for one pixel target. The
// switch over platforms is exhaustive on purpose: adding a platform
// without a payload shape here must be a compile-visible edit, not a
// silent fallthrough.
func BuildRequest(target events.PixelTarget, conv events.ConversionDispatchRequested) (WireRequest, error) {
	query, err := url.ParseQuery(conv.Query)
	if err != nil {
		query = url.Values{}
	}
	platform := links.Platform(target.Platform)
	clickID := ClickID(platform, query)

	occurred, err := time.Parse(time.RFC3339, conv.OccurredAt)
	if err != nil {
		occurred = time.Now().UTC()
	}

	switch platform {
	case links.PlatformMeta, links.PlatformInstagram:
		return buildMetaRequest(target, conv, clickID, occurred), nil

	case links.PlatformTikTok:
		return WireRequest{
			Method: "POST",
			URL:    tiktokTrackURL,
			Headers: map[string]string{
				"Access-Token": target.CapiToken,
			},
			Body: map[string]any{
				"event_source":    "web",
				"event_source_id": target.PixelID,
				"data": []map[string]any{{
					"event":      target.EventName,
					"event_time": occurred.Unix(),
					"event_id":   conv.EventID,
					"user": map[string]any{
						"ip":         conv.IP,
						"user_agent": conv.UserAgent,
						"ttclid":     clickID,
					},
					"page": map[string]any{
						"url":      conv.TargetURL,
						"referrer": conv.Referer,
					},
				}},
			},
		}, nil

	case links.PlatformGoogle:
		return WireRequest{
			Method: "POST",
			URL:    googleCollectURL,
			Query: map[string]string{
				"measurement_id": target.PixelID,
				"api_secret":     target.CapiToken,
			},
			Body: map[string]any{
				"client_id": conv.EventID,
				"events": []map[string]any{{
					"name": target.EventName,
					"params": map[string]any{
						"gclid":          clickID,
						"engagement_time_msec": 1,
						"page_location":  conv.TargetURL,
					},
				}},
			},
		}, nil

	case links.PlatformSnapchat:
		return WireRequest{
			Method: "POST",
			URL:    snapConversionURL,
			Headers: map[string]string{
				"Authorization": "Bearer " + target.CapiToken,
			},
			Body: map[string]any{
				"pixel_id":              target.PixelID,
				"event_type":            target.EventName,
				"event_conversion_type": "WEB",
				// Snapchat wants the timestamp as a string, not a number.
				"timestamp":         fmt.Sprintf("%d", occurred.UnixMilli()),
				"hashed_ip_address": hashIP(conv.IP),
				"user_agent":        conv.UserAgent,
				"page_url":          conv.TargetURL,
				"click_id":          clickID,
			},
		}, nil

	case links.PlatformTaboola:
		// GET-only protocol: everything rides in the query string and
		// the visitor identity is forwarded via headers.
		return WireRequest{
			Method: "GET",
			URL:    taboolaActionURL,
			Query: map[string]string{
				"click-id": clickID,
				"name":     target.EventName,
			},
			Headers: forwardedVisitorHeaders(conv),
		}, nil

	case links.PlatformOutbrain:
		return WireRequest{
			Method: "GET",
			URL:    outbrainPixelURL,
			Query: map[string]string{
				"ob_click_id": clickID,
				"name":        target.EventName,
				"dl":          conv.TargetURL,
			},
			Headers: forwardedVisitorHeaders(conv),
		}, nil
	}

	return WireRequest{}, fmt.Errorf("no payload shape for platform %q", target.Platform)
}

func buildMetaRequest(target events.PixelTarget, conv events.ConversionDispatchRequested, fbclid string, occurred time.Time) WireRequest {
	userData := map[string]any{
		"client_ip_address": conv.IP,
		"client_user_agent": conv.UserAgent,
	}
	if fbclid != "" {
		userData["fbc"] = fmt.Sprintf("fb.1.%d.%s", occurred.UnixMilli(), fbclid)
	}

	return WireRequest{
		Method: "POST",
		URL:    fmt.Sprintf("%s/%s/events", metaGraphBase, target.PixelID),
		Body: map[string]any{
			"data": []map[string]any{{
				"event_name":       target.EventName,
				"event_time":       occurred.Unix(),
				"event_id":         conv.EventID,
				"action_source":    "website",
				"event_source_url": conv.TargetURL,
				"user_data":        userData,
			}},
			// Graph API takes the token in the body, not a header.
			"access_token": target.CapiToken,
		},
	}
}

func forwardedVisitorHeaders(conv events.ConversionDispatchRequested) map[string]string {
	headers := make(map[string]string, 2)
	if conv.IP != "" {
		headers["X-Forwarded-For"] = conv.IP
	}
	if conv.UserAgent != "" {
		headers["User-Agent"] = conv.UserAgent
	}
	return headers
}

func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

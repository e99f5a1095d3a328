// Package events defines the payloads published to the relay. The
// relay guarantees at-least-once delivery; consumers must tolerate
// duplicates (clicks are deduplicated upstream by ray id, CAPI event
// ids are stable per click).
package events

import "github.com/relaypath/edge/internal/processing/clicks"

// ClickCaptured carries one deduplicated click for persistence.
type ClickCaptured struct {
	EventID string            `json:"eventId"`
	Click   clicks.ClickEvent `json:"click"`
}

// PixelTarget is one pixel selected for server-side delivery.
type PixelTarget struct {
	Platform  string `json:"platform"`
	PixelID   string `json:"pixelId"`
	CapiToken string `json:"capiToken,omitempty"`
	EventName string `json:"eventName"`
}

// ConversionDispatchRequested asks the CAPI worker to deliver one
// conversion to every pixel in Targets. A single payload carries the
// full target list so one click is one relay publish regardless of
// how many platforms qualify.
type ConversionDispatchRequested struct {
	EventID    string        `json:"eventId"`
	RayID      string        `json:"rayId"`
	Slug       string        `json:"slug"`
	Domain     string        `json:"domain"`
	TargetURL  string        `json:"targetUrl"`
	Query      string        `json:"query"`
	IP         string        `json:"ip"`
	UserAgent  string        `json:"userAgent"`
	Referer    string        `json:"referer,omitempty"`
	Country    string        `json:"country,omitempty"`
	OccurredAt string        `json:"occurredAt"`
	Targets    []PixelTarget `json:"targets"`
}

// BackofficeEvent is an opaque structured event from the management
// layer, forwarded to the external logging sink.
type BackofficeEvent struct {
	EventID string         `json:"eventId"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ConfirmationEmailRequested is forwarded to the external mailer.
type ConfirmationEmailRequested struct {
	EventID string `json:"eventId"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
}

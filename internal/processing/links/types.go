package links

import "time"

type LinkStatus string

const (
	StatusActive   LinkStatus = "active"
	StatusInactive LinkStatus = "inactive"
	StatusDeleted  LinkStatus = "deleted"
)

// BotAction is what the link owner wants done with traffic classified
// as a bot.
type BotAction string

const (
	BotActionBlock      BotAction = "block"
	BotActionRedirect   BotAction = "redirect"
	BotActionNoTracking BotAction = "no-tracking"
)

type TrackingMode string

const (
	TrackingPixel        TrackingMode = "pixel"
	TrackingCapi         TrackingMode = "capi"
	TrackingPixelAndCapi TrackingMode = "pixel_and_capi"
)

// IncludesPixel reports whether the mode fires client-side tags.
func (m TrackingMode) IncludesPixel() bool {
	return m == TrackingPixel || m == TrackingPixelAndCapi
}

// IncludesCapi reports whether the mode sends server-side conversions.
func (m TrackingMode) IncludesCapi() bool {
	return m == TrackingCapi || m == TrackingPixelAndCapi
}

type PlanTier string

const (
	TierFree       PlanTier = "free"
	TierPro        PlanTier = "pro"
	TierBusiness   PlanTier = "business"
	TierEnterprise PlanTier = "enterprise"
)

type Platform string

const (
	PlatformMeta      Platform = "meta"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformGoogle    Platform = "google"
	PlatformSnapchat  Platform = "snapchat"
	PlatformTaboola   Platform = "taboola"
	PlatformOutbrain  Platform = "outbrain"
)

type PixelStatus string

const (
	PixelActive PixelStatus = "active"
	PixelPaused PixelStatus = "paused"
)

// CapiPixel is a point-in-time snapshot of a pixel configuration,
// embedded inside a Link when the management layer writes it. It is
// not a live reference; edits to the pixel only take effect on the
// next link save.
type CapiPixel struct {
	Platform        Platform    `json:"platform" bson:"platform"`
	PixelID         string      `json:"pixelId" bson:"pixelId"`
	CapiToken       string      `json:"capiToken,omitempty" bson:"capiToken,omitempty"`
	EventName       string      `json:"eventName,omitempty" bson:"eventName,omitempty"`
	CustomEventName string      `json:"customEventName,omitempty" bson:"customEventName,omitempty"`
	Status          PixelStatus `json:"status" bson:"status"`
}

// Event returns the conversion event name to report, preferring the
// custom name when set.
func (p CapiPixel) Event() string {
	if p.CustomEventName != "" {
		return p.CustomEventName
	}
	if p.EventName != "" {
		return p.EventName
	}
	return "Purchase"
}

// Link is a short link as authored by the management layer, keyed by
// (domain, slug).
type Link struct {
	ID           string       `json:"id" bson:"_id,omitempty"`
	Domain       string       `json:"domain" bson:"domain"`
	Slug         string       `json:"slug" bson:"slug"`
	TargetURL    string       `json:"targetUrl" bson:"targetUrl"`
	Status       LinkStatus   `json:"status" bson:"status"`
	BotAction    BotAction    `json:"botAction" bson:"botAction"`
	FallbackURL  string       `json:"fallbackUrl,omitempty" bson:"fallbackUrl,omitempty"`
	TrackingMode TrackingMode `json:"trackingMode" bson:"trackingMode"`
	PlanTier     PlanTier     `json:"planTier" bson:"planTier"`
	Pixels       []CapiPixel  `json:"pixels,omitempty" bson:"pixels,omitempty"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// ActivePixels returns the pixels currently enabled on the link.
func (l *Link) ActivePixels() []CapiPixel {
	out := make([]CapiPixel, 0, len(l.Pixels))
	for _, p := range l.Pixels {
		if p.Status == PixelActive {
			out = append(out, p)
		}
	}
	return out
}

// CapiEligible reports whether the link's plan allows server-side
// conversion dispatch at all.
func (l *Link) CapiEligible() bool {
	switch l.PlanTier {
	case TierPro, TierBusiness, TierEnterprise:
		return len(l.ActivePixels()) > 0
	default:
		return false
	}
}

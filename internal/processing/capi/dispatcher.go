package capi

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/relaypath/edge/internal/events"
	"github.com/relaypath/edge/internal/processing/classify"
	"github.com/relaypath/edge/internal/processing/links"
)

// Publisher relays a conversion payload for out-of-band delivery.
type Publisher interface {
	PublishConversion(ctx context.Context, payload events.ConversionDispatchRequested) error
}

// Plan is the dispatch decision for one click: whether to serve the
// bridge page instead of a plain redirect, and the payload (if any)
// to hand to the relay.
type Plan struct {
	// Bridge lists the pixels the client-side bridge page should fire.
	// Empty means redirect immediately.
	Bridge []links.CapiPixel
	// Publish is the server-side payload, nil when no pixel qualifies
	// or the tracking mode excludes CAPI.
	Publish *events.ConversionDispatchRequested
}

// Dispatcher decides, per click, which platforms get a conversion and
// by which path (client bridge, server relay, both, neither).
type Dispatcher struct {
	publisher Publisher
	now       func() time.Time
	newID     func() string
}

func NewDispatcher(publisher Publisher) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Build computes the dispatch plan for a click. destination is the
// final URL the visitor is being sent to. Client-side tags fire for
// every visit, organic included; the click-id platform set and the
// token requirement gate only the server-side publish.
func (d *Dispatcher) Build(link *links.Link, req *classify.Request, destination string) Plan {
	if !link.CapiEligible() {
		return Plan{}
	}

	var plan Plan
	if link.TrackingMode.IncludesPixel() {
		plan.Bridge = link.ActivePixels()
	}
	if !link.TrackingMode.IncludesCapi() {
		return plan
	}

	query, err := url.ParseQuery(req.Query)
	if err != nil {
		return plan
	}

	targets := TargetPlatforms(query, req.Signal.Referer)
	if len(targets) == 0 {
		return plan
	}

	qualified := QualifyPixels(link, targets)
	if len(qualified) > 0 {
		pixelTargets := make([]events.PixelTarget, 0, len(qualified))
		for _, px := range qualified {
			pixelTargets = append(pixelTargets, events.PixelTarget{
				Platform:  string(px.Platform),
				PixelID:   px.PixelID,
				CapiToken: px.CapiToken,
				EventName: px.Event(),
			})
		}
		plan.Publish = &events.ConversionDispatchRequested{
			EventID:    d.newID(),
			RayID:      req.Signal.RayID,
			Slug:       req.Slug,
			Domain:     req.Domain,
			TargetURL:  destination,
			Query:      req.Query,
			IP:         req.Signal.IP,
			UserAgent:  req.Signal.UserAgent,
			Referer:    req.Signal.Referer,
			Country:    req.Signal.Country,
			OccurredAt: d.now().UTC().Format(time.RFC3339),
			Targets:    pixelTargets,
		}
	}
	return plan
}

// Dispatch hands the planned payload to the relay. Called as deferred
// work; a failed publish is logged by the caller and never surfaces
// to the visitor.
func (d *Dispatcher) Dispatch(ctx context.Context, plan Plan) error {
	if plan.Publish == nil {
		return nil
	}
	return d.publisher.PublishConversion(ctx, *plan.Publish)
}

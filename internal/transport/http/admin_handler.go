package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/constants"
	"github.com/relaypath/edge/internal/events"
	"github.com/relaypath/edge/internal/infrastructure/logger"
	appvalidation "github.com/relaypath/edge/internal/infrastructure/validation"
	"github.com/relaypath/edge/internal/processing/classify"
	"github.com/relaypath/edge/internal/processing/links"
	storage "github.com/relaypath/edge/internal/storage/mongo"
	"github.com/relaypath/edge/pkg/httputils"
)

// CacheWriter is the slice of the shared store the management API
// writes through: link snapshot upserts and invalidations.
type CacheWriter interface {
	SetRawJSON(ctx context.Context, key string, raw []byte, ttl time.Duration) error
	DeleteLink(ctx context.Context, key string) error
}

// RelayPublisher forwards management-layer payloads to the relay.
type RelayPublisher interface {
	PublishConversion(ctx context.Context, payload events.ConversionDispatchRequested) error
	PublishOps(ctx context.Context, key string, payload any) error
}

// AbuseStore persists visitor abuse reports.
type AbuseStore interface {
	InsertReport(ctx context.Context, report storage.AbuseReport) error
}

// AdminHandler serves the authenticated management endpoints: cache
// writes, relay pass-throughs and abuse intake. It never touches the
// link store; the management layer owns links, this service only
// mirrors them.
type AdminHandler struct {
	cache CacheWriter
	relay RelayPublisher
	abuse AbuseStore
}

func NewAdminHandler(cache CacheWriter, relay RelayPublisher, abuse AbuseStore) *AdminHandler {
	return &AdminHandler{cache: cache, relay: relay, abuse: abuse}
}

type updateCacheRequest struct {
	Domain string          `json:"domain" validate:"required,notblank,domain_name"`
	Slug   string          `json:"slug" validate:"required,notblank,slug"`
	Link   json.RawMessage `json:"link" validate:"required"`
}

// UpdateCache upserts one link snapshot into the shared cache. The
// body's link object is stored verbatim; the management layer is the
// source of truth for its shape.
func (h *AdminHandler) UpdateCache(w http.ResponseWriter, r *http.Request) {
	var req updateCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	key := links.CacheKey(req.Domain, req.Slug)
	if err := h.cache.SetRawJSON(r.Context(), key, req.Link, links.CacheTTL); err != nil {
		logger.Error("cache update failed", zap.Error(err), zap.String("key", key))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessCacheUpdated, map[string]string{
		"domain": req.Domain,
		"slug":   req.Slug,
	})
}

type deleteCacheRequest struct {
	Domain string `json:"domain" validate:"required,notblank,domain_name"`
	Slug   string `json:"slug" validate:"required,notblank,slug"`
}

// DeleteCache invalidates one link snapshot. Deleting an absent key
// succeeds; the goal state is reached either way.
func (h *AdminHandler) DeleteCache(w http.ResponseWriter, r *http.Request) {
	var req deleteCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	key := links.CacheKey(req.Domain, req.Slug)
	if err := h.cache.DeleteLink(r.Context(), key); err != nil {
		logger.Error("cache delete failed", zap.Error(err), zap.String("key", key))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessCacheDeleted, map[string]string{
		"domain": req.Domain,
		"slug":   req.Slug,
	})
}

// CapiRelay queues a conversion dispatch on behalf of the management
// layer (manual re-sends, imported conversions). The payload goes
// through the same relay topic as live clicks.
func (h *AdminHandler) CapiRelay(w http.ResponseWriter, r *http.Request) {
	var payload events.ConversionDispatchRequested
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if payload.Slug == "" || payload.TargetURL == "" || len(payload.Targets) == 0 {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody.
			WithMessage("slug, targetUrl and at least one target are required"))
		return
	}
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.OccurredAt == "" {
		payload.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := h.relay.PublishConversion(r.Context(), payload); err != nil {
		logger.Error("capi relay publish failed", zap.Error(err), zap.String("event_id", payload.EventID))
		httputils.WriteAPIError(w, r, constants.ErrRelayUnavailable)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessDispatchQueued, map[string]string{
		"eventId": payload.EventID,
	})
}

type abuseReportRequest struct {
	Domain        string `json:"domain" validate:"required,notblank,domain_name"`
	Slug          string `json:"slug" validate:"required,notblank,slug"`
	Reason        string `json:"reason" validate:"required,notblank"`
	Details       string `json:"details,omitempty"`
	ReporterEmail string `json:"reporterEmail,omitempty" validate:"omitempty,email"`
}

// AbuseReport stores a visitor-submitted report against a short link.
func (h *AdminHandler) AbuseReport(w http.ResponseWriter, r *http.Request) {
	var req abuseReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	report := storage.AbuseReport{
		Domain:        req.Domain,
		Slug:          req.Slug,
		Reason:        req.Reason,
		Details:       req.Details,
		ReporterEmail: req.ReporterEmail,
		IP:            classify.SignalFromRequest(r).IP,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.abuse.InsertReport(r.Context(), report); err != nil {
		logger.Error("abuse report insert failed", zap.Error(err), zap.String("slug", req.Slug))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessReportAccepted, nil)
}

type backofficeEventRequest struct {
	Kind    string         `json:"kind" validate:"required,notblank"`
	Payload map[string]any `json:"payload,omitempty"`
}

// LogBackofficeEvent forwards a management-layer event to the
// operational sink. The payload is opaque here.
func (h *AdminHandler) LogBackofficeEvent(w http.ResponseWriter, r *http.Request) {
	var req backofficeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	event := events.BackofficeEvent{
		EventID: uuid.New().String(),
		Kind:    req.Kind,
		Payload: req.Payload,
	}
	if err := h.relay.PublishOps(r.Context(), event.Kind, event); err != nil {
		logger.Error("backoffice event publish failed", zap.Error(err), zap.String("kind", req.Kind))
		httputils.WriteAPIError(w, r, constants.ErrRelayUnavailable)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessEventAccepted, map[string]string{
		"eventId": event.EventID,
	})
}

type confirmationEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// SendConfirmationEmail queues a confirmation mail with the external
// mailer via the relay.
func (h *AdminHandler) SendConfirmationEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmationEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	event := events.ConfirmationEmailRequested{
		EventID: uuid.New().String(),
		Email:   req.Email,
		Name:    req.Name,
	}
	if err := h.relay.PublishOps(r.Context(), "confirmation_email", event); err != nil {
		logger.Error("confirmation email publish failed", zap.Error(err))
		httputils.WriteAPIError(w, r, constants.ErrRelayUnavailable)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessEmailQueued, map[string]string{
		"eventId": event.EventID,
	})
}

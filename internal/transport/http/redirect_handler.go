package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/config"
	"github.com/relaypath/edge/internal/infrastructure/logger"
	"github.com/relaypath/edge/internal/processing/capi"
	"github.com/relaypath/edge/internal/processing/classify"
	"github.com/relaypath/edge/internal/processing/clicks"
	"github.com/relaypath/edge/internal/processing/domains"
	"github.com/relaypath/edge/internal/processing/links"
	"github.com/relaypath/edge/internal/processing/verdict"
	"github.com/relaypath/edge/internal/relay"
	"github.com/relaypath/edge/internal/storage/redis"
	"github.com/relaypath/edge/internal/transport/http/middleware"
)

// KVStore is the shared key-value store slice the redirect path needs:
// blacklist membership checks and blacklist writes.
type KVStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// DomainSource resolves a custom domain to its persisted record, for
// root redirects. A nil record with nil error means unknown domain.
type DomainSource interface {
	FindDomain(ctx context.Context, domain string) (*domains.CustomDomainRecord, error)
}

// RedirectHandler serves the public redirect path. Everything that is
// not strictly needed to pick the response (blacklist writes, click
// capture, CAPI dispatch) runs as deferred work after the verdict.
type RedirectHandler struct {
	cfg        *config.Config
	resolver   *links.Resolver
	domains    DomainSource
	kv         KVStore
	pipeline   *clicks.Pipeline
	dispatcher *capi.Dispatcher
	tasks      *relay.TaskRunner
}

func NewRedirectHandler(
	cfg *config.Config,
	resolver *links.Resolver,
	domainSource DomainSource,
	kv KVStore,
	pipeline *clicks.Pipeline,
	dispatcher *capi.Dispatcher,
	tasks *relay.TaskRunner,
) *RedirectHandler {
	return &RedirectHandler{
		cfg:        cfg,
		resolver:   resolver,
		domains:    domainSource,
		kv:         kv,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		tasks:      tasks,
	}
}

// Redirect is the catch-all entry point for visitor traffic.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := classify.Classify(r)
	switch {
	case errors.Is(err, classify.ErrNoise):
		// Crawler and probe paths get a silent 204 and leave no trace.
		w.WriteHeader(http.StatusNoContent)
		return

	case errors.Is(err, classify.ErrInvalidSlug):
		h.handleInvalidSlug(w, r)
		return
	}

	if req.Slug == "" {
		h.handleRoot(w, r, req)
		return
	}

	link, linkErr := h.resolver.Resolve(r.Context(), req.Domain, req.Slug)

	blacklisted := false
	if link != nil && req.Signal.IP != "" {
		on, err := h.kv.Exists(r.Context(), redis.BlacklistKey(req.Signal.IP))
		if err != nil {
			// Fail open: a store outage must not take the redirect
			// path down with it.
			logger.Warn("blacklist check failed, treating as clean",
				zap.Error(err), zap.String("slug", req.Slug))
		} else {
			blacklisted = on
		}
	}

	out := verdict.Decide(verdict.Input{
		Slug:        req.Slug,
		Query:       req.Query,
		Signal:      req.Signal,
		Link:        link,
		LinkErr:     linkErr,
		Blacklisted: blacklisted,
	})

	var plan capi.Plan
	if out.Action == verdict.ActionRedirect && !out.SkipDispatch && link != nil {
		plan = h.dispatcher.Build(link, req, out.Location)
	}

	h.respond(w, r, out, plan)
	h.deferWork(req, out, plan)
}

// handleRoot serves the bare domain root: configured root redirect on
// active custom domains, branded 404 everywhere else. Roots produce no
// click record.
func (h *RedirectHandler) handleRoot(w http.ResponseWriter, r *http.Request, req *classify.Request) {
	rootRedirect := ""
	if req.Domain != h.cfg.Redirect.PrimaryDomain {
		rec, err := h.domains.FindDomain(r.Context(), req.Domain)
		if err != nil {
			logger.Warn("custom domain lookup failed",
				zap.Error(err), zap.String("domain", req.Domain))
		} else if rec != nil && rec.Status == domains.StatusActive {
			rootRedirect = rec.RootRedirect
		}
	}

	out := verdict.Decide(verdict.Input{
		Signal:       req.Signal,
		RootRedirect: rootRedirect,
	})
	h.respond(w, r, out, capi.Plan{})
}

// handleInvalidSlug serves the branded 404 but still records the
// attempt, so probing unknown paths stays visible in analytics.
func (h *RedirectHandler) handleInvalidSlug(w http.ResponseWriter, r *http.Request) {
	sig := classify.SignalFromRequest(r)
	out := verdict.Decide(verdict.Input{
		SlugInvalid: true,
		Signal:      sig,
	})

	h.respond(w, r, out, capi.Plan{})
	h.deferWork(&classify.Request{
		Domain: classify.Host(r),
		// The raw path failed slug validation, but the click record
		// keeps it verbatim so the attempt stays attributable.
		Slug:   strings.Trim(r.URL.Path, "/"),
		Query:  r.URL.RawQuery,
		Signal: sig,
	}, out, capi.Plan{})
}

func (h *RedirectHandler) respond(w http.ResponseWriter, r *http.Request, out verdict.Outcome, plan capi.Plan) {
	middleware.RecordVerdict(string(out.Verdict))

	if out.Action != verdict.ActionRedirect {
		h.serveNotFound(w, r)
		return
	}

	if len(plan.Bridge) > 0 {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := capi.RenderBridge(w, plan.Bridge, out.Location, h.cfg.Redirect.BridgeDelay); err != nil {
			logger.Error("bridge render failed", zap.Error(err))
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, out.Location, h.cfg.Redirect.RedirectStatus)
}

// serveNotFound sends the visitor to the branded 404 page. The page
// lives outside this service so the redirect status is always 302
// regardless of the configured link redirect status.
func (h *RedirectHandler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Redirect.NotFoundURL != "" {
		http.Redirect(w, r, h.cfg.Redirect.NotFoundURL, http.StatusFound)
		return
	}
	http.NotFound(w, r)
}

// deferWork hands the post-response side effects to the task runner.
// The visitor already has their answer; nothing here may write to the
// response.
func (h *RedirectHandler) deferWork(req *classify.Request, out verdict.Outcome, plan capi.Plan) {
	sig := req.Signal

	if out.BlacklistIP && sig.IP != "" {
		ip := sig.IP
		h.tasks.Submit("blacklist.write", func(ctx context.Context) error {
			_, err := h.kv.SetIfAbsent(ctx, redis.BlacklistKey(ip), "1", redis.BlacklistTTL)
			return err
		})
	}

	if out.RecordClick {
		click := clicks.ClickEvent{
			RayID:       sig.RayID,
			Domain:      req.Domain,
			Slug:        req.Slug,
			TargetURL:   out.Location,
			Query:       req.Query,
			Verdict:     string(out.Verdict),
			IP:          sig.IP,
			UserAgent:   sig.UserAgent,
			Referer:     sig.Referer,
			Country:     sig.Country,
			City:        sig.City,
			Continent:   sig.Continent,
			IsEU:        sig.IsEU,
			IsTor:       sig.IsTor,
			BotScore:    sig.BotScore,
			VerifiedBot: sig.VerifiedBot,
			ThreatScore: sig.ThreatScore,
			CreatedAt:   time.Now().UTC(),
		}
		h.tasks.Submit("click.capture", func(ctx context.Context) error {
			return h.pipeline.Capture(ctx, click)
		})
	}

	if plan.Publish != nil {
		h.tasks.Submit("capi.dispatch", func(ctx context.Context) error {
			return h.dispatcher.Dispatch(ctx, plan)
		})
	}
}

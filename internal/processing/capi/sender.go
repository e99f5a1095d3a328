package capi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/events"
	"github.com/relaypath/edge/internal/infrastructure/logger"
)

// bodyTruncateLimit bounds what gets stored of request/response bodies
// in the dispatch log.
const bodyTruncateLimit = 2048

// DispatchLog is one row per (pixel, click) delivery attempt.
type DispatchLog struct {
	EventID      string    `bson:"eventId"`
	RayID        string    `bson:"rayId"`
	Slug         string    `bson:"slug"`
	Domain       string    `bson:"domain"`
	Platform     string    `bson:"platform"`
	PixelID      string    `bson:"pixelId"`
	StatusCode   int       `bson:"statusCode"`
	RequestBody  string    `bson:"requestBody,omitempty"`
	ResponseBody string    `bson:"responseBody,omitempty"`
	Success      bool      `bson:"success"`
	LatencyMS    int64     `bson:"latencyMs"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type DispatchLogStore interface {
	InsertDispatchLog(ctx context.Context, log DispatchLog) error
}

// HTTPDoer is the outbound client surface the sender needs; satisfied
// by pkg/httpclient.Client.
type HTTPDoer interface {
	Get(ctx context.Context, baseURL string, queryParams map[string]string, headers map[string]string) (*http.Response, error)
	Post(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error)
}

// Sender performs the real per-platform delivery on the worker side of
// the relay. One failed pixel never aborts the remaining ones.
type Sender struct {
	client HTTPDoer
	logs   DispatchLogStore
	now    func() time.Time
}

func NewSender(client HTTPDoer, logs DispatchLogStore) *Sender {
	return &Sender{client: client, logs: logs, now: time.Now}
}

// Deliver sends the conversion to every target pixel and writes one
// dispatch log per attempt.
func (s *Sender) Deliver(ctx context.Context, conv events.ConversionDispatchRequested) {
	for _, target := range conv.Targets {
		s.deliverOne(ctx, conv, target)
	}
}

func (s *Sender) deliverOne(ctx context.Context, conv events.ConversionDispatchRequested, target events.PixelTarget) {
	entry := DispatchLog{
		EventID:   conv.EventID,
		RayID:     conv.RayID,
		Slug:      conv.Slug,
		Domain:    conv.Domain,
		Platform:  target.Platform,
		PixelID:   target.PixelID,
		CreatedAt: s.now().UTC(),
	}

	wire, err := BuildRequest(target, conv)
	if err != nil {
		entry.ResponseBody = truncate(err.Error())
		s.writeLog(ctx, entry)
		return
	}
	entry.RequestBody = truncate(marshalForLog(wire.Body))

	start := s.now()
	resp, err := s.send(ctx, wire)
	entry.LatencyMS = s.now().Sub(start).Milliseconds()

	if err != nil {
		entry.ResponseBody = truncate(err.Error())
		s.writeLog(ctx, entry)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, bodyTruncateLimit))
	entry.StatusCode = resp.StatusCode
	entry.ResponseBody = string(body)
	entry.Success = resp.StatusCode >= 200 && resp.StatusCode < 300

	if !entry.Success {
		logger.Warn("platform rejected conversion",
			zap.String("platform", target.Platform),
			zap.String("pixel_id", target.PixelID),
			zap.Int("status", resp.StatusCode))
	}

	s.writeLog(ctx, entry)
}

func (s *Sender) send(ctx context.Context, wire WireRequest) (*http.Response, error) {
	if wire.Method == http.MethodGet {
		return s.client.Get(ctx, wire.URL, wire.Query, wire.Headers)
	}
	return s.client.Post(ctx, withQuery(wire.URL, wire.Query), wire.Body, wire.Headers)
}

func (s *Sender) writeLog(ctx context.Context, entry DispatchLog) {
	if err := s.logs.InsertDispatchLog(ctx, entry); err != nil {
		logger.Error("failed to write dispatch log",
			zap.Error(err),
			zap.String("platform", entry.Platform),
			zap.String("event_id", entry.EventID))
	}
}

func withQuery(base string, params map[string]string) string {
	if len(params) == 0 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func marshalForLog(body any) string {
	if body == nil {
		return ""
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(data)
}

func truncate(s string) string {
	if len(s) > bodyTruncateLimit {
		return s[:bodyTruncateLimit]
	}
	return s
}

// Package relay is the at-least-once delivery seam between the
// request path and everything that must not delay it: click
// persistence, CAPI fan-out, backoffice events. Retry, if any, is the
// consumer's job, not this layer's.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/relaypath/edge/internal/events"
	"github.com/relaypath/edge/internal/processing/clicks"
)

type Config struct {
	Brokers    []string
	ClickTopic string
	CapiTopic  string
	OpsTopic   string
}

// Publisher writes JSON payloads to the relay topics. One writer per
// topic; the click path keys by slug so per-link ordering survives
// partitioning.
type Publisher struct {
	clickWriter *kafka.Writer
	capiWriter  *kafka.Writer
	opsWriter   *kafka.Writer
}

func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		clickWriter: newWriter(cfg.Brokers, cfg.ClickTopic),
		capiWriter:  newWriter(cfg.Brokers, cfg.CapiTopic),
		opsWriter:   newWriter(cfg.Brokers, cfg.OpsTopic),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func (p *Publisher) Close() error {
	var errs []string
	if err := p.clickWriter.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := p.capiWriter.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := p.opsWriter.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close relay writers: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PublishClick relays one deduplicated click for persistence.
func (p *Publisher) PublishClick(ctx context.Context, eventID string, click clicks.ClickEvent) error {
	payload := events.ClickCaptured{EventID: eventID, Click: click}
	return publish(ctx, p.clickWriter, click.Slug, payload)
}

// PublishOps relays an opaque payload (backoffice events, mail
// requests) to the operational sink.
func (p *Publisher) PublishOps(ctx context.Context, key string, payload any) error {
	return publish(ctx, p.opsWriter, key, payload)
}

// PublishConversion relays one CAPI payload for per-platform delivery.
func (p *Publisher) PublishConversion(ctx context.Context, payload events.ConversionDispatchRequested) error {
	return publish(ctx, p.capiWriter, payload.Slug, payload)
}

func publish(ctx context.Context, w *kafka.Writer, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: traceHeaders(ctx),
	}
	return w.WriteMessages(ctx, msg)
}

// traceHeaders injects the current trace context so consumers continue
// the span started by the inbound request.
func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier))
	for key, value := range carrier {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return headers
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/relaypath/edge/internal/config"
	"github.com/relaypath/edge/internal/events"
	"github.com/relaypath/edge/internal/infrastructure/db"
	"github.com/relaypath/edge/internal/infrastructure/logger"
	"github.com/relaypath/edge/internal/infrastructure/telemetry"
	"github.com/relaypath/edge/internal/processing/capi"
	mongoStorage "github.com/relaypath/edge/internal/storage/mongo"
	"github.com/relaypath/edge/pkg/httpclient"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultGroupID = "capi-dispatch"

	fetchMaxWait   = 500 * time.Millisecond
	operationTTL   = 30 * time.Second
	consumeBackoff = 500 * time.Millisecond
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	serviceName := fmt.Sprintf("%s-capi-worker", cfg.App.Name)
	shutdownTracer, err := telemetry.InitTracer(cfg.OTel.Endpoint, serviceName, cfg.App.Version, cfg.OTel.SampleRatio)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		shutdownTracer = nil
	}
	defer func() {
		if shutdownTracer == nil {
			return
		}
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("failed to shutdown tracer", zap.Error(err))
		}
	}()

	mongoConn, err := db.ConnectMongo(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = mongoConn.Disconnect() }()

	logsRepo, err := mongoStorage.NewCapiLogsRepository(mongoConn)
	if err != nil {
		logger.Fatal("failed to initialize capi logs repository", zap.Error(err))
	}

	sender := capi.NewSender(httpclient.NewClient(10*time.Second, 5, 30*time.Second), logsRepo)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.CapiTopic,
		GroupID:     config.GetEnv("KAFKA_CAPI_GROUP_ID", defaultGroupID),
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     fetchMaxWait,
		StartOffset: kafka.FirstOffset,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("capi worker started",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("kafka_topic", cfg.Kafka.CapiTopic),
	)

	tracer := otel.Tracer("capi-worker")
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("capi worker stopping")
				return
			}
			logger.Error("failed to fetch kafka message", zap.Error(err))
			time.Sleep(consumeBackoff)
			continue
		}

		consumeCtx := contextFromKafkaHeaders(ctx, msg.Headers)
		consumeCtx, span := tracer.Start(
			consumeCtx,
			"kafka.consume.conversion_dispatch",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.String("messaging.operation", "process"),
				attribute.Int("messaging.kafka.partition", msg.Partition),
				attribute.Int64("messaging.kafka.offset", msg.Offset),
			),
		)

		processMessage(consumeCtx, msg, sender)

		if err := reader.CommitMessages(consumeCtx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit kafka offset failed")
			logger.Error("failed to commit kafka offset",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
			)
			span.End()
			time.Sleep(consumeBackoff)
			continue
		}

		span.End()
	}
}

// processMessage delivers one conversion payload. Delivery failures
// are recorded per pixel in the dispatch log and never retried at the
// relay level; platform rejections do not become poison messages.
func processMessage(ctx context.Context, msg kafka.Message, sender *capi.Sender) {
	var conv events.ConversionDispatchRequested
	if err := json.Unmarshal(msg.Value, &conv); err != nil {
		logger.Warn("invalid conversion payload, skipping",
			zap.Error(err),
			zap.ByteString("payload", msg.Value),
		)
		return
	}
	if len(conv.Targets) == 0 {
		logger.Warn("conversion payload has no targets, skipping", zap.String("event_id", conv.EventID))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, operationTTL)
	defer cancel()

	sender.Deliver(opCtx, conv)
}

func contextFromKafkaHeaders(parent context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header.Key))
		if key == "" {
			continue
		}
		carrier.Set(key, string(header.Value))
	}
	return otel.GetTextMapPropagator().Extract(parent, carrier)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaypath/edge/internal/config"
	"github.com/relaypath/edge/internal/infrastructure/db"
	"github.com/relaypath/edge/internal/infrastructure/logger"
	"github.com/relaypath/edge/internal/infrastructure/telemetry"
	"github.com/relaypath/edge/internal/processing/capi"
	"github.com/relaypath/edge/internal/processing/clicks"
	"github.com/relaypath/edge/internal/processing/domains"
	"github.com/relaypath/edge/internal/processing/links"
	"github.com/relaypath/edge/internal/relay"
	mongoStorage "github.com/relaypath/edge/internal/storage/mongo"
	redisStorage "github.com/relaypath/edge/internal/storage/redis"
	httpTransport "github.com/relaypath/edge/internal/transport/http"
	"github.com/relaypath/edge/pkg/httpclient"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		var err error
		shutdownTracer, err = telemetry.InitTracer(cfg.OTel.Endpoint, cfg.App.Name, cfg.App.Version, cfg.OTel.SampleRatio)
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	mongoConn, err := db.ConnectMongo(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = mongoConn.Disconnect() }()

	linksRepo, err := mongoStorage.NewLinksRepository(mongoConn)
	if err != nil {
		logger.Fatal("Failed to initialize links repository", zap.Error(err))
	}
	domainsRepo, err := mongoStorage.NewDomainsRepository(mongoConn)
	if err != nil {
		logger.Fatal("Failed to initialize domains repository", zap.Error(err))
	}
	abuseRepo := mongoStorage.NewAbuseRepository(mongoConn)

	kv, err := redisStorage.New(redisStorage.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = kv.Close() }()

	publisher := relay.NewPublisher(relay.Config{
		Brokers:    cfg.Kafka.Brokers,
		ClickTopic: cfg.Kafka.ClickTopic,
		CapiTopic:  cfg.Kafka.CapiTopic,
		OpsTopic:   cfg.Kafka.OpsTopic,
	})
	defer func() { _ = publisher.Close() }()

	tasks := relay.NewTaskRunner(4, 1024, 5*time.Second)

	resolver := links.NewResolver(linksRepo, kv)
	pipeline := clicks.NewPipeline(kv, publisher)
	dispatcher := capi.NewDispatcher(publisher)

	provisioningConfigured := cfg.Provisioning.APIBase != "" && cfg.Provisioning.APIToken != ""
	provisioningAPI := domains.NewProvisioningClient(
		cfg.Provisioning.APIBase,
		cfg.Provisioning.APIToken,
		httpclient.NewClient(10*time.Second, 5, 30*time.Second),
	)
	reconciler := domains.NewReconciler(provisioningAPI, domainsRepo, cfg.Provisioning.CNAMETarget)

	router := httpTransport.NewRouter(cfg, httpTransport.Handlers{
		Redirect: httpTransport.NewRedirectHandler(cfg, resolver, domainsRepo, kv, pipeline, dispatcher, tasks),
		Admin:    httpTransport.NewAdminHandler(kv, publisher, abuseRepo),
		Domains:  httpTransport.NewDomainsHandler(reconciler, provisioningConfigured),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if shutdownTracer != nil {
			_ = shutdownTracer(shutdownCtx)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("Server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.App.Env),
		zap.String("primary_domain", cfg.Redirect.PrimaryDomain),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}

	// Drain deferred work before releasing the relay connections.
	tasks.Shutdown()

	logger.Info("Server stopped gracefully")
}

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Server       ServerConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Redirect     RedirectConfig
	Provisioning ProvisioningConfig
	Security     SecurityConfig
	OTel         OTelConfig
}

type AppConfig struct {
	Name     string
	Version  string
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port string
	Host string
}

type MongoDBConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers    []string
	ClickTopic string
	CapiTopic  string
	OpsTopic   string
}

type RedirectConfig struct {
	// PrimaryDomain is the service's own short domain; everything else
	// is treated as a customer custom domain.
	PrimaryDomain string
	// NotFoundURL is the branded 404 page shown for missing links.
	NotFoundURL string
	// BridgeDelay is how long the bridge page waits before navigating,
	// giving client pixel tags time to fire.
	BridgeDelay    time.Duration
	RedirectStatus int // 301 or 302
}

type ProvisioningConfig struct {
	// APIBase is the custom-hostname provisioning endpoint, including
	// the zone path.
	APIBase  string
	APIToken string
	// CNAMETarget is the hostname customer domains must point at.
	CNAMETarget string
}

type SecurityConfig struct {
	APIKeys []string
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
	// SampleRatio is the fraction of redirect traces kept; management
	// and consumer spans respect the parent decision.
	SampleRatio float64
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "relaypath-edge"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: GetEnv("APP_PORT", "8080"),
			Host: GetEnv("APP_HOST", "localhost"),
		},
		MongoDB: MongoDBConfig{
			URI:      GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: GetEnv("MONGODB_DATABASE", "relaypath"),
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:    SplitCSV(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			ClickTopic: GetEnv("KAFKA_CLICK_TOPIC", "clicks.captured"),
			CapiTopic:  GetEnv("KAFKA_CAPI_TOPIC", "capi.dispatch"),
			OpsTopic:   GetEnv("KAFKA_OPS_TOPIC", "backoffice.events"),
		},
		Redirect: RedirectConfig{
			PrimaryDomain:  GetEnv("PRIMARY_DOMAIN", "rlpth.io"),
			NotFoundURL:    GetEnv("NOT_FOUND_URL", "https://relaypath.io/404"),
			BridgeDelay:    GetEnvDuration("BRIDGE_DELAY", 300*time.Millisecond),
			RedirectStatus: GetEnvInt("REDIRECT_STATUS", 302),
		},
		Provisioning: ProvisioningConfig{
			APIBase:     GetEnv("PROVISIONING_API_BASE", ""),
			APIToken:    GetEnv("PROVISIONING_API_TOKEN", ""),
			CNAMETarget: GetEnv("PROVISIONING_CNAME_TARGET", "edge.relaypath.io"),
		},
		Security: SecurityConfig{
			APIKeys: SplitCSV(GetEnv("API_KEYS", "")),
		},
		OTel: OTelConfig{
			Enabled:     GetEnvBool("OTEL_ENABLED", false),
			Endpoint:    GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRatio: GetEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
	}

	if cfg.Redirect.RedirectStatus != 301 && cfg.Redirect.RedirectStatus != 302 {
		return nil, fmt.Errorf("REDIRECT_STATUS must be 301 or 302 (got %d)", cfg.Redirect.RedirectStatus)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if cfg.Redirect.BridgeDelay < 0 || cfg.Redirect.BridgeDelay > 5*time.Second {
		return nil, fmt.Errorf("BRIDGE_DELAY must be between 0 and 5s (got %s)", cfg.Redirect.BridgeDelay)
	}
	if cfg.OTel.SampleRatio < 0 || cfg.OTel.SampleRatio > 1 {
		return nil, fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1 (got %g)", cfg.OTel.SampleRatio)
	}

	return cfg, nil
}

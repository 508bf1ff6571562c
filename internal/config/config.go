package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

// Ingestion sources.
const (
	SourceSynthetic = "synthetic"
	SourceKafka     = "kafka"
	SourceMQTT      = "mqtt"
)

const (
	defaultMongoURL         = "mongodb://localhost:27017/noise_monitor"
	defaultMongoDatabase    = "noise_monitor"
	defaultIngestInterval   = 5 * time.Second
	defaultRelabelBatchSize = 100
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	IngestSource   string
	IngestInterval time.Duration
	DeviceLocation string
	ClassifierMode domain.Mode

	MongoURL        string
	MongoDatabase   string
	MongoCollection string
	HistoryCacheTTL time.Duration

	RelabelInterval  time.Duration
	RelabelBatchSize int

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from the environment, applying defaults where unset.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mode, ok := domain.ParseMode(strings.ToLower(sharedcfg.EnvOrDefault("CLASSIFIER_MODE", string(domain.ModeFixed))))
	if !ok {
		return nil, errors.New("invalid CLASSIFIER_MODE: must be fixed or adaptive")
	}

	historyTTL, err := parseDuration("HISTORY_CACHE_TTL", "0s", true)
	if err != nil {
		return nil, err
	}

	relabelInterval, err := parseDuration("RELABEL_INTERVAL", "30s", false)
	if err != nil {
		return nil, err
	}

	mongoURL := sharedcfg.EnvOrDefault("MONGODB_URL", defaultMongoURL)

	cfg := &Config{
		IngestSource:   strings.ToLower(sharedcfg.EnvOrDefault("INGEST_SOURCE", SourceSynthetic)),
		IngestInterval: parseIngestInterval(),
		DeviceLocation: sharedcfg.EnvOrDefault("DEVICE_LOCATION", domain.DefaultLocation),
		ClassifierMode: mode,

		MongoURL:        mongoURL,
		MongoDatabase:   sharedcfg.EnvOrDefault("MONGODB_DATABASE", databaseFromURL(mongoURL)),
		MongoCollection: sharedcfg.EnvOrDefault("MONGODB_COLLECTION", "readings"),
		HistoryCacheTTL: historyTTL,

		RelabelInterval:  relabelInterval,
		RelabelBatchSize: parsePositiveInt("RELABEL_BATCH_SIZE", defaultRelabelBatchSize),

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "sound-readings"),
		KafkaSinkTopic:   os.Getenv("KAFKA_SINK_TOPIC"),
		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "soundwatch"),

		MQTTBroker:   sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "soundwatch"),
		MQTTUsername: os.Getenv("MQTT_USERNAME"),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:    sharedcfg.EnvOrDefault("MQTT_TOPIC", "sensor/+/sound"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.IngestSource {
	case SourceSynthetic, SourceMQTT:
	case SourceKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when INGEST_SOURCE is kafka")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required when INGEST_SOURCE is kafka")
		}
	default:
		return fmt.Errorf("invalid INGEST_SOURCE %q: must be synthetic, kafka or mqtt", c.IngestSource)
	}
	if c.KafkaSinkTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_SINK_TOPIC is set")
	}
	if c.MongoURL == "" {
		return errors.New("MONGODB_URL is required")
	}
	if c.IngestSource == SourceMQTT && c.MQTTTopic == "" {
		return errors.New("MQTT_TOPIC is required when INGEST_SOURCE is mqtt")
	}
	return nil
}

// parseIngestInterval reads INGEST_INTERVAL_SECONDS, or the older
// ML_CLIENT_INTERVAL_SECONDS when it is unset. Unparseable or non-positive
// values fall back to the default rather than failing startup.
func parseIngestInterval() time.Duration {
	s := os.Getenv("INGEST_INTERVAL_SECONDS")
	if s == "" {
		s = os.Getenv("ML_CLIENT_INTERVAL_SECONDS")
	}
	if s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultIngestInterval
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func parseDuration(key, fallback string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// databaseFromURL returns the database named in a MongoDB connection string
// path, or the default database when the URL names none.
func databaseFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultMongoDatabase
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		return db
	}
	return defaultMongoDatabase
}

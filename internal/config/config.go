package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Engine and workspace settings.
	EngineRoot      string
	EngineTimeout   time.Duration // 0 disables the timeout
	WorkspaceDir    string        // empty selects the OS temp directory
	ResultCacheSize int           // 0 disables the result cache

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	WorkerConcurrency  int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
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

	engineTimeout, err := parseEngineTimeout()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseCacheSize()
	if err != nil {
		return nil, err
	}

	concurrency, err := parseConcurrency()
	if err != nil {
		return nil, err
	}

	kafkaEnabled := true
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KAFKA_ENABLED %q", v)
		}
	}

	cfg := &Config{
		EngineRoot:      sharedcfg.EnvOrDefault("PDSI_ENGINE_ROOT", "./engine"),
		EngineTimeout:   engineTimeout,
		WorkspaceDir:    os.Getenv("PDSI_WORKSPACE_DIR"),
		ResultCacheSize: cacheSize,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "pdsi-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "pdsi-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "palmer-drought-service"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		WorkerConcurrency:  concurrency,
	}

	if cfg.EngineRoot == "" {
		return nil, errors.New("PDSI_ENGINE_ROOT is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseEngineTimeout() (time.Duration, error) {
	s := sharedcfg.EnvOrDefault("PDSI_ENGINE_TIMEOUT", "5m")
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid PDSI_ENGINE_TIMEOUT %q", s)
	}
	return d, nil
}

func parseCacheSize() (int, error) {
	s := sharedcfg.EnvOrDefault("RESULT_CACHE_SIZE", "128")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid RESULT_CACHE_SIZE %q", s)
	}
	return n, nil
}

func parseConcurrency() (int, error) {
	s := sharedcfg.EnvOrDefault("WORKER_CONCURRENCY", "4")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 64 {
		return 0, fmt.Errorf("invalid WORKER_CONCURRENCY %q: must be 1-64", s)
	}
	return n, nil
}

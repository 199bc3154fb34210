// Package config loads ForecastBench's job configuration from the
// environment, the way every job binary in this repo is configured:
// a best-effort .env load followed by env-var reads with defaults.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/forecastbench/forecastbench/pkg/bench/store"
)

// RunMode toggles sample sizes and bootstrap counts between a fast
// local/test configuration and the full production one.
type RunMode string

const (
	RunModeTest RunMode = "TEST"
	RunModeProd RunMode = "PROD"
)

// ParseRunMode parses s case-insensitively, defaulting to TEST on any
// unrecognized value so a misconfigured job fails cheap rather than
// expensive.
func ParseRunMode(s string) RunMode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RunModeProd):
		return RunModeProd
	default:
		return RunModeTest
	}
}

// Config holds the environment-sourced settings shared by every job
// binary: the object-store bucket names, the cloud region, the
// service account, the scheduler-injected task index, and run mode.
type Config struct {
	RunMode RunMode

	// Object store
	StoreBackend  string // "local" or "s3"
	StoreLocalDir string
	S3Bucket      string
	S3Region      string

	// Scheduler-injected
	ServiceAccount string
	TaskIndex      int
	RunID          string

	// Logging
	LogLevel    string
	LogPretty   bool

	// JobTimeout bounds a single job's ambient runtime ceiling.
	JobTimeout time.Duration

	// N_CPUS worker-pool size for bootstrap/resolution fan-out.
	NCPUs int

	// Operational telemetry
	OpsLogAddr string
}

// Load reads a .env file if present, then populates Config from
// environment variables with defaults, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RunMode:        ParseRunMode(getEnv("RUN_MODE", "TEST")),
		StoreBackend:   getEnv("STORE_BACKEND", "local"),
		StoreLocalDir:  getEnv("STORE_LOCAL_DIR", "./data"),
		S3Bucket:       getEnv("FORECASTBENCH_S3_BUCKET", ""),
		S3Region:       getEnv("FORECASTBENCH_S3_REGION", "us-east-1"),
		ServiceAccount: getEnv("FORECASTBENCH_SERVICE_ACCOUNT", ""),
		TaskIndex:      getEnvAsInt("TASK_INDEX", 0),
		RunID:          getEnv("RUN_ID", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("LOG_PRETTY", false),
		JobTimeout:     getEnvAsDuration("JOB_TIMEOUT", time.Hour),
		NCPUs:          getEnvAsInt("N_CPUS", 4),
		OpsLogAddr:     getEnv("OPSLOG_ADDR", ":8090"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields given the chosen store backend.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "local":
		if c.StoreLocalDir == "" {
			return fmt.Errorf("STORE_LOCAL_DIR is required when STORE_BACKEND=local")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("FORECASTBENCH_S3_BUCKET is required when STORE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want local or s3)", c.StoreBackend)
	}
	if c.NCPUs <= 0 {
		return fmt.Errorf("N_CPUS must be positive, got %d", c.NCPUs)
	}
	return nil
}

// BuildStore constructs the ObjectStore binding named by
// c.StoreBackend — every job binary calls this once at startup rather
// than each choosing its own backend.
func (c *Config) BuildStore(ctx context.Context) (store.ObjectStore, error) {
	switch c.StoreBackend {
	case "local":
		return store.NewLocalStore(c.StoreLocalDir)
	case "s3":
		return store.NewS3Store(ctx, c.S3Bucket, c.S3Region)
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
}

// NReplicates returns the bootstrap replicate count for the
// configured run mode: 1999 in production, 5 locally.
func (c *Config) NReplicates() int {
	if c.RunMode == RunModeProd {
		return 1999
	}
	return 5
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if iv, err := strconv.Atoi(v); err == nil {
			return iv
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if bv, err := strconv.ParseBool(v); err == nil {
			return bv
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if dv, err := time.ParseDuration(v); err == nil {
			return dv
		}
	}
	return defaultValue
}

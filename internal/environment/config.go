package environment

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvConfig is the process configuration, read from the environment with
// an optional .env overlay.
type EnvConfig struct {
	ListenAddr    string
	WorkspaceRoot string
	LangConfPath  string

	MemoryLimitMB           int64
	CPULimit                float64
	TestCaseTimeout         time.Duration
	ContainersPerSubmission int

	// ProgressSink selects where lifecycle events go: "slog", "nats" or
	// "sqs". The websocket hub is always attached in serve mode.
	ProgressSink string
	NatsURL      string
	NatsSubject  string
	SqsQueueURL  string
}

func ReadEnvConfig() *EnvConfig {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	return &EnvConfig{
		ListenAddr:    envStr("EXECUTOR_LISTEN_ADDR", ":8080"),
		WorkspaceRoot: envStr("EXECUTOR_WORKSPACE_ROOT", ""),
		LangConfPath:  envStr("EXECUTOR_LANGCONF_PATH", ""),

		MemoryLimitMB:           envInt("EXECUTOR_MEMORY_LIMIT_MB", 50),
		CPULimit:                envFloat("EXECUTOR_CPU_LIMIT", 0.05),
		TestCaseTimeout:         envDuration("EXECUTOR_TEST_CASE_TIMEOUT", 5*time.Second),
		ContainersPerSubmission: int(envInt("EXECUTOR_CONTAINERS_PER_SUBMISSION", 1)),

		ProgressSink: envStr("EXECUTOR_PROGRESS_SINK", "slog"),
		NatsURL:      envStr("EXECUTOR_NATS_URL", "nats://localhost:4222"),
		NatsSubject:  envStr("EXECUTOR_NATS_SUBJECT", "codematic.status"),
		SqsQueueURL:  envStr("EXECUTOR_SQS_QUEUE_URL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float in environment, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL string
	ServerAddr  string

	PendingTimeout    time.Duration
	EvidenceTimeout   time.Duration
	AnalyzingTimeout  time.Duration
	PrimingTimeout    time.Duration
	JointTimeout      time.Duration
	ResolutionTimeout time.Duration
	VerdictTimeout    time.Duration
	SettlementTimeout time.Duration
	CleanupDelay      time.Duration
	PipelineTimeout   time.Duration
	LockTimeout       time.Duration
	LockRetryDelay    time.Duration
	AddendumLimit     int

	EngineBaseURL string

	RateLimitPerMinute int
	UsagePolicy        string

	NodeID        string
	RaftBind      string
	RaftDir       string
	RaftBootstrap bool
	RaftJoinAddr  string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "accord")
		pass := getenv("POSTGRES_PASSWORD", "accord_pass")
		db := getenv("POSTGRES_DB", "accord")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	return &Config{
		DatabaseURL: dsn,
		ServerAddr:  getenv("SERVER_ADDR", "0.0.0.0:8080"),

		PendingTimeout:    parseDuration(getenv("DISPUTE_PENDING_TIMEOUT", "24h"), 24*time.Hour),
		EvidenceTimeout:   parseDuration(getenv("DISPUTE_EVIDENCE_TIMEOUT", "24h"), 24*time.Hour),
		AnalyzingTimeout:  parseDuration(getenv("DISPUTE_ANALYZING_TIMEOUT", "10m"), 10*time.Minute),
		PrimingTimeout:    parseDuration(getenv("DISPUTE_PRIMING_TIMEOUT", "24h"), 24*time.Hour),
		JointTimeout:      parseDuration(getenv("DISPUTE_JOINT_TIMEOUT", "24h"), 24*time.Hour),
		ResolutionTimeout: parseDuration(getenv("DISPUTE_RESOLUTION_TIMEOUT", "24h"), 24*time.Hour),
		VerdictTimeout:    parseDuration(getenv("DISPUTE_VERDICT_TIMEOUT", "48h"), 48*time.Hour),
		SettlementTimeout: parseDuration(getenv("DISPUTE_SETTLEMENT_TIMEOUT", "1h"), time.Hour),
		CleanupDelay:      parseDuration(getenv("DISPUTE_CLEANUP_DELAY", "5m"), 5*time.Minute),
		PipelineTimeout:   parseDuration(getenv("ENGINE_PIPELINE_TIMEOUT", "3m"), 3*time.Minute),
		LockTimeout:       parseDuration(getenv("DISPUTE_LOCK_TIMEOUT", "5s"), 5*time.Second),
		LockRetryDelay:    parseDuration(getenv("DISPUTE_LOCK_RETRY", "5s"), 5*time.Second),
		AddendumLimit:     parseInt(getenv("DISPUTE_ADDENDUM_LIMIT", "2"), 2),

		EngineBaseURL: getenv("ENGINE_BASE_URL", ""),

		RateLimitPerMinute: parseInt(getenv("RATE_LIMIT_PER_MINUTE", "60"), 60),
		UsagePolicy:        getenv("USAGE_POLICY", ""),

		NodeID:        getenv("NODE_ID", "node-1"),
		RaftBind:      getenv("RAFT_BIND", ""),
		RaftDir:       getenv("RAFT_DIR", "./raft-data"),
		RaftBootstrap: parseBool(getenv("RAFT_BOOTSTRAP", "true"), true),
		RaftJoinAddr:  getenv("RAFT_JOIN_ADDR", ""),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

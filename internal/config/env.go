// Package config handles environment-based configuration loading and the
// accounts file.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Directories
	StateDir string
	LogDir   string

	// Accounts and session driver
	AccountsFile  string
	SessionDriver string

	// Network
	ListenAddress string
	APIPort       int

	// Auth
	AdminToken string

	// Bot lifecycle
	MaxLoginRetries        int
	LoginRetryDelay        time.Duration
	MaxGCReconnectAttempts int
	GCReconnectDelay       time.Duration
	RequestTTL             time.Duration
	RequestDelay           time.Duration
	HealthCheckInterval    time.Duration
	SessionRefreshInterval time.Duration
	SessionRefreshJitter   time.Duration
	GCInactivityCeiling    time.Duration
	StartupTimeout         time.Duration

	// Proxy selection
	ClashAPIURL         string
	ClashSecret         string
	ProxyList           []string
	ProxyPort           int
	ProxySwitchCooldown time.Duration

	// Inspect log
	InspectLogQueueSize      int
	InspectLogFlushBatchSize int
	InspectLogFlushInterval  time.Duration
	InspectLogDBMaxMB        int
	InspectLogDBRetainCount  int
	LogSweepSchedule         string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error if any required variable is missing or any
// value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.StateDir = envStr("FLOATRIG_STATE_DIR", "/var/lib/floatrig")
	cfg.LogDir = envStr("FLOATRIG_LOG_DIR", "/var/log/floatrig")

	// --- Accounts and session driver ---
	cfg.AccountsFile = envStr("FLOATRIG_ACCOUNTS_FILE", "/etc/floatrig/accounts.yaml")
	cfg.SessionDriver = envStr("FLOATRIG_SESSION_DRIVER", "sim")

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("FLOATRIG_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.APIPort = envInt("FLOATRIG_API_PORT", 2290, &errs)

	// --- Auth (must be defined; empty means auth disabled) ---
	adminToken, hasAdminToken := os.LookupEnv("FLOATRIG_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	// --- Bot lifecycle ---
	cfg.MaxLoginRetries = envInt("FLOATRIG_MAX_LOGIN_RETRIES", 5, &errs)
	cfg.LoginRetryDelay = envDuration("FLOATRIG_LOGIN_RETRY_DELAY", 5*time.Second, &errs)
	cfg.MaxGCReconnectAttempts = envInt("FLOATRIG_MAX_GC_RECONNECT_ATTEMPTS", 10, &errs)
	cfg.GCReconnectDelay = envDuration("FLOATRIG_GC_RECONNECT_DELAY", 10*time.Second, &errs)
	cfg.RequestTTL = envDuration("FLOATRIG_REQUEST_TTL", 3*time.Second, &errs)
	cfg.RequestDelay = envDuration("FLOATRIG_REQUEST_DELAY", time.Second, &errs)
	cfg.HealthCheckInterval = envDuration("FLOATRIG_HEALTH_CHECK_INTERVAL", 60*time.Second, &errs)
	cfg.SessionRefreshInterval = envDuration("FLOATRIG_SESSION_REFRESH_INTERVAL", 30*time.Minute, &errs)
	cfg.SessionRefreshJitter = envDuration("FLOATRIG_SESSION_REFRESH_JITTER", 4*time.Minute, &errs)
	cfg.GCInactivityCeiling = envDuration("FLOATRIG_GC_INACTIVITY_CEILING", 10*time.Minute, &errs)
	cfg.StartupTimeout = envDuration("FLOATRIG_STARTUP_TIMEOUT", 5*time.Minute, &errs)

	// --- Proxy selection ---
	cfg.ClashAPIURL = strings.TrimSpace(envStr("FLOATRIG_CLASH_API_URL", ""))
	cfg.ClashSecret = envStr("FLOATRIG_CLASH_SECRET", "")
	cfg.ProxyList = envStringSlice("FLOATRIG_PROXY_LIST", []string{}, &errs)
	cfg.ProxyPort = envInt("FLOATRIG_PROXY_PORT", 7890, &errs)
	cfg.ProxySwitchCooldown = envDuration("FLOATRIG_PROXY_SWITCH_COOLDOWN", 5*time.Second, &errs)

	// --- Inspect log ---
	cfg.InspectLogQueueSize = envInt("FLOATRIG_INSPECT_LOG_QUEUE_SIZE", 4096, &errs)
	cfg.InspectLogFlushBatchSize = envInt("FLOATRIG_INSPECT_LOG_FLUSH_BATCH_SIZE", 512, &errs)
	cfg.InspectLogFlushInterval = envDuration("FLOATRIG_INSPECT_LOG_FLUSH_INTERVAL", 5*time.Second, &errs)
	cfg.InspectLogDBMaxMB = envInt("FLOATRIG_INSPECT_LOG_DB_MAX_MB", 256, &errs)
	cfg.InspectLogDBRetainCount = envInt("FLOATRIG_INSPECT_LOG_DB_RETAIN_COUNT", 5, &errs)
	cfg.LogSweepSchedule = envStr("FLOATRIG_LOG_SWEEP_SCHEDULE", "0 * * * *")

	// --- Validation ---
	if !hasAdminToken {
		errs = append(errs, "FLOATRIG_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "FLOATRIG_LISTEN_ADDRESS must not be empty")
	}
	if strings.TrimSpace(cfg.AccountsFile) == "" {
		errs = append(errs, "FLOATRIG_ACCOUNTS_FILE must not be empty")
	}
	if strings.TrimSpace(cfg.SessionDriver) == "" {
		errs = append(errs, "FLOATRIG_SESSION_DRIVER must not be empty")
	}

	validatePort("FLOATRIG_API_PORT", cfg.APIPort, &errs)
	validatePort("FLOATRIG_PROXY_PORT", cfg.ProxyPort, &errs)
	// The SOCKS listener sits one above the HTTP one.
	if cfg.ProxyPort == 65535 {
		errs = append(errs, "FLOATRIG_PROXY_PORT: must leave room for the SOCKS port at PROXY_PORT+1")
	}

	validatePositive("FLOATRIG_MAX_LOGIN_RETRIES", cfg.MaxLoginRetries, &errs)
	validatePositive("FLOATRIG_MAX_GC_RECONNECT_ATTEMPTS", cfg.MaxGCReconnectAttempts, &errs)
	validatePositiveDuration("FLOATRIG_LOGIN_RETRY_DELAY", cfg.LoginRetryDelay, &errs)
	validatePositiveDuration("FLOATRIG_GC_RECONNECT_DELAY", cfg.GCReconnectDelay, &errs)
	validatePositiveDuration("FLOATRIG_REQUEST_TTL", cfg.RequestTTL, &errs)
	if cfg.RequestDelay < 0 {
		errs = append(errs, "FLOATRIG_REQUEST_DELAY must not be negative")
	}
	validatePositiveDuration("FLOATRIG_HEALTH_CHECK_INTERVAL", cfg.HealthCheckInterval, &errs)
	validatePositiveDuration("FLOATRIG_SESSION_REFRESH_INTERVAL", cfg.SessionRefreshInterval, &errs)
	if cfg.SessionRefreshJitter < 0 {
		errs = append(errs, "FLOATRIG_SESSION_REFRESH_JITTER must not be negative")
	}
	validatePositiveDuration("FLOATRIG_GC_INACTIVITY_CEILING", cfg.GCInactivityCeiling, &errs)
	validatePositiveDuration("FLOATRIG_STARTUP_TIMEOUT", cfg.StartupTimeout, &errs)
	validatePositiveDuration("FLOATRIG_PROXY_SWITCH_COOLDOWN", cfg.ProxySwitchCooldown, &errs)

	if cfg.ClashAPIURL != "" {
		if u, err := url.Parse(cfg.ClashAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("FLOATRIG_CLASH_API_URL: invalid URL %q", cfg.ClashAPIURL))
		}
	}
	for _, p := range cfg.ProxyList {
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("FLOATRIG_PROXY_LIST: invalid proxy URL %q", p))
			continue
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			errs = append(errs, fmt.Sprintf("FLOATRIG_PROXY_LIST: unsupported scheme in %q", p))
		}
	}

	validatePositive("FLOATRIG_INSPECT_LOG_QUEUE_SIZE", cfg.InspectLogQueueSize, &errs)
	validatePositive("FLOATRIG_INSPECT_LOG_FLUSH_BATCH_SIZE", cfg.InspectLogFlushBatchSize, &errs)
	validatePositiveDuration("FLOATRIG_INSPECT_LOG_FLUSH_INTERVAL", cfg.InspectLogFlushInterval, &errs)
	validatePositive("FLOATRIG_INSPECT_LOG_DB_MAX_MB", cfg.InspectLogDBMaxMB, &errs)
	validatePositive("FLOATRIG_INSPECT_LOG_DB_RETAIN_COUNT", cfg.InspectLogDBRetainCount, &errs)
	if _, err := cron.ParseStandard(cfg.LogSweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("FLOATRIG_LOG_SWEEP_SCHEDULE: invalid cron expression %q: %v", cfg.LogSweepSchedule, err))
	}

	// Queue size must be >= 2x batch size
	if cfg.InspectLogQueueSize < 2*cfg.InspectLogFlushBatchSize {
		errs = append(errs, "FLOATRIG_INSPECT_LOG_QUEUE_SIZE must be at least 2x FLOATRIG_INSPECT_LOG_FLUSH_BATCH_SIZE")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func envStringSlice(key string, defaultVal []string, errs *[]string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid JSON string array %q", key, v))
		return defaultVal
	}
	if out == nil {
		return []string{}
	}
	return out
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validatePositiveDuration(name string, value time.Duration, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %s", name, value))
	}
}

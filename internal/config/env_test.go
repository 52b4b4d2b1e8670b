package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// requiredEnvs returns the minimum env vars needed for LoadEnvConfig to succeed.
func requiredEnvs() map[string]string {
	return map[string]string{
		"FLOATRIG_ADMIN_TOKEN": "admin-secret",
	}
}

func TestLoadEnvConfig_Defaults(t *testing.T) {
	setEnvs(t, requiredEnvs())

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directories
	assertEqual(t, "StateDir", cfg.StateDir, "/var/lib/floatrig")
	assertEqual(t, "LogDir", cfg.LogDir, "/var/log/floatrig")

	// Accounts and session driver
	assertEqual(t, "AccountsFile", cfg.AccountsFile, "/etc/floatrig/accounts.yaml")
	assertEqual(t, "SessionDriver", cfg.SessionDriver, "sim")

	// Network
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "0.0.0.0")
	assertEqual(t, "APIPort", cfg.APIPort, 2290)

	// Bot lifecycle
	assertEqual(t, "MaxLoginRetries", cfg.MaxLoginRetries, 5)
	assertEqual(t, "LoginRetryDelay", cfg.LoginRetryDelay, 5*time.Second)
	assertEqual(t, "MaxGCReconnectAttempts", cfg.MaxGCReconnectAttempts, 10)
	assertEqual(t, "GCReconnectDelay", cfg.GCReconnectDelay, 10*time.Second)
	assertEqual(t, "RequestTTL", cfg.RequestTTL, 3*time.Second)
	assertEqual(t, "RequestDelay", cfg.RequestDelay, time.Second)
	assertEqual(t, "HealthCheckInterval", cfg.HealthCheckInterval, 60*time.Second)
	assertEqual(t, "SessionRefreshInterval", cfg.SessionRefreshInterval, 30*time.Minute)
	assertEqual(t, "SessionRefreshJitter", cfg.SessionRefreshJitter, 4*time.Minute)
	assertEqual(t, "GCInactivityCeiling", cfg.GCInactivityCeiling, 10*time.Minute)
	assertEqual(t, "StartupTimeout", cfg.StartupTimeout, 5*time.Minute)

	// Proxy selection
	assertEqual(t, "ClashAPIURL", cfg.ClashAPIURL, "")
	assertEqual(t, "ClashSecret", cfg.ClashSecret, "")
	assertEqual(t, "ProxyListLength", len(cfg.ProxyList), 0)
	assertEqual(t, "ProxyPort", cfg.ProxyPort, 7890)
	assertEqual(t, "ProxySwitchCooldown", cfg.ProxySwitchCooldown, 5*time.Second)

	// Inspect log
	assertEqual(t, "InspectLogQueueSize", cfg.InspectLogQueueSize, 4096)
	assertEqual(t, "InspectLogFlushBatchSize", cfg.InspectLogFlushBatchSize, 512)
	assertEqual(t, "InspectLogFlushInterval", cfg.InspectLogFlushInterval, 5*time.Second)
	assertEqual(t, "InspectLogDBMaxMB", cfg.InspectLogDBMaxMB, 256)
	assertEqual(t, "InspectLogDBRetainCount", cfg.InspectLogDBRetainCount, 5)
	assertEqual(t, "LogSweepSchedule", cfg.LogSweepSchedule, "0 * * * *")
}

func TestLoadEnvConfig_Overrides(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{
		"FLOATRIG_API_PORT":               "9000",
		"FLOATRIG_MAX_LOGIN_RETRIES":      "3",
		"FLOATRIG_REQUEST_TTL":            "750ms",
		"FLOATRIG_CLASH_API_URL":          "http://127.0.0.1:9090",
		"FLOATRIG_CLASH_SECRET":           "s3cret",
		"FLOATRIG_SESSION_REFRESH_JITTER": "0s",
	})

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "APIPort", cfg.APIPort, 9000)
	assertEqual(t, "MaxLoginRetries", cfg.MaxLoginRetries, 3)
	assertEqual(t, "RequestTTL", cfg.RequestTTL, 750*time.Millisecond)
	assertEqual(t, "ClashAPIURL", cfg.ClashAPIURL, "http://127.0.0.1:9090")
	assertEqual(t, "ClashSecret", cfg.ClashSecret, "s3cret")
	assertEqual(t, "SessionRefreshJitter", cfg.SessionRefreshJitter, time.Duration(0))
}

func TestLoadEnvConfig_MissingAdminToken(t *testing.T) {
	// t.Setenv registers the restore, then the variable is removed for the
	// duration of the test.
	t.Setenv("FLOATRIG_ADMIN_TOKEN", "")
	os.Unsetenv("FLOATRIG_ADMIN_TOKEN")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for missing FLOATRIG_ADMIN_TOKEN")
	}
	assertContains(t, err.Error(), "FLOATRIG_ADMIN_TOKEN")
}

func TestLoadEnvConfig_EmptyAdminTokenAllowed(t *testing.T) {
	setEnvs(t, map[string]string{"FLOATRIG_ADMIN_TOKEN": ""})

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "AdminToken", cfg.AdminToken, "")
}

func TestLoadEnvConfig_EmptyListenAddress(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_LISTEN_ADDRESS": "   "})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for empty listen address")
	}
	assertContains(t, err.Error(), "FLOATRIG_LISTEN_ADDRESS")
}

func TestLoadEnvConfig_InvalidPort(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_API_PORT": "70000"})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	assertContains(t, err.Error(), "FLOATRIG_API_PORT")
}

func TestLoadEnvConfig_ProxyPortLeavesRoomForSOCKS(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_PROXY_PORT": "65535"})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for proxy port with no SOCKS room")
	}
	assertContains(t, err.Error(), "FLOATRIG_PROXY_PORT")
}

func TestLoadEnvConfig_InvalidDuration(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_REQUEST_TTL": "3 seconds"})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for malformed duration")
	}
	assertContains(t, err.Error(), "FLOATRIG_REQUEST_TTL")
}

func TestLoadEnvConfig_NegativeRequestDelay(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_REQUEST_DELAY": "-1s"})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for negative request delay")
	}
	assertContains(t, err.Error(), "FLOATRIG_REQUEST_DELAY")
}

func TestLoadEnvConfig_InvalidClashURL(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_CLASH_API_URL": "not a url"})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for malformed Clash URL")
	}
	assertContains(t, err.Error(), "FLOATRIG_CLASH_API_URL")
}

func TestLoadEnvConfig_ProxyList(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{
		"FLOATRIG_PROXY_LIST": `["http://10.0.0.1:8080","socks5://10.0.0.2:1080"]`,
	})

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "ProxyListLength", len(cfg.ProxyList), 2)
}

func TestLoadEnvConfig_ProxyListBadScheme(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_PROXY_LIST": `["ftp://10.0.0.1:21"]`})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for unsupported proxy scheme")
	}
	assertContains(t, err.Error(), "FLOATRIG_PROXY_LIST")
}

func TestLoadEnvConfig_ProxyListNotJSON(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_PROXY_LIST": "http://10.0.0.1:8080"})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for non-JSON proxy list")
	}
	assertContains(t, err.Error(), "FLOATRIG_PROXY_LIST")
}

func TestLoadEnvConfig_QueueSizeTooSmall(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{
		"FLOATRIG_INSPECT_LOG_QUEUE_SIZE":       "100",
		"FLOATRIG_INSPECT_LOG_FLUSH_BATCH_SIZE": "80",
	})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for queue smaller than 2x batch")
	}
	assertContains(t, err.Error(), "FLOATRIG_INSPECT_LOG_QUEUE_SIZE")
}

func TestLoadEnvConfig_InvalidSweepSchedule(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{"FLOATRIG_LOG_SWEEP_SCHEDULE": "every hour"})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
	assertContains(t, err.Error(), "FLOATRIG_LOG_SWEEP_SCHEDULE")
}

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("error %q does not mention %q", s, substr)
	}
}

package steam

import (
	"testing"
	"time"
)

// RFC 6238 appendix B seed (base32 of "12345678901234567890").
const rfcSeed = "GEZDGNBVGEZDGNBVGEZDGNBVGEZDGNBV"

func TestGuardCodeAt_KnownVector(t *testing.T) {
	code, err := GuardCodeAt(rfcSeed, time.Unix(59, 0).UTC())
	if err != nil {
		t.Fatalf("GuardCodeAt: %v", err)
	}
	if code != "287082" {
		t.Fatalf("code = %q, want 287082", code)
	}
}

func TestGuardCodeAt_InvalidSeed(t *testing.T) {
	if _, err := GuardCodeAt("not-base32-!!!", time.Unix(59, 0)); err == nil {
		t.Fatal("invalid seed should error")
	}
}

func TestApplyAuthSecret_Heuristic(t *testing.T) {
	var creds Credentials
	if err := ApplyAuthSecret(&creds, "R2D2C"); err != nil {
		t.Fatalf("short secret: %v", err)
	}
	if creds.AuthCode != "R2D2C" || creds.TwoFactorCode != "" {
		t.Fatalf("short secret must be a direct code: %+v", creds)
	}

	creds = Credentials{}
	if err := ApplyAuthSecret(&creds, rfcSeed); err != nil {
		t.Fatalf("seed secret: %v", err)
	}
	if creds.AuthCode != "" {
		t.Fatalf("seed must not land in AuthCode: %+v", creds)
	}
	if len(creds.TwoFactorCode) != 6 {
		t.Fatalf("TwoFactorCode = %q, want 6 digits", creds.TwoFactorCode)
	}

	creds = Credentials{}
	if err := ApplyAuthSecret(&creds, ""); err != nil {
		t.Fatalf("empty secret: %v", err)
	}
	if creds.AuthCode != "" || creds.TwoFactorCode != "" {
		t.Fatalf("empty secret must leave creds untouched: %+v", creds)
	}
}

func TestDefaultRetryClassifier(t *testing.T) {
	retryable := []error{
		&ResultError{Code: 84, Msg: "RateLimitExceeded"},
		&ResultError{Code: 87, Msg: "whatever"},
		&ResultError{Code: 3, Msg: "ServiceUnavailable"}, // fragment match
		errTest("Proxy connection timed out"),
		errTest("read tcp: Timeout exceeded"),
		errTest("LogonSessionReplaced"),
		errTest("ConnectFailed"),
	}
	for _, err := range retryable {
		if !DefaultRetryClassifier(err) {
			t.Fatalf("expected retryable: %v", err)
		}
	}

	fatal := []error{
		nil,
		errTest("InvalidPassword"),
		&ResultError{Code: 5, Msg: "InvalidPassword"},
	}
	for _, err := range fatal {
		if DefaultRetryClassifier(err) {
			t.Fatalf("expected non-retryable: %v", err)
		}
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/floatrig/floatrig/internal/inspect"
	"github.com/floatrig/floatrig/internal/inspectlog"
	"github.com/floatrig/floatrig/internal/metrics"
)

func newTestServer(t *testing.T, adminToken string, logs *inspectlog.Service) (*Server, *stubDispatcher) {
	t.Helper()
	d := &stubDispatcher{info: inspect.ItemInfo{ItemID: 7, FloatValue: 0.1}, ready: 1, total: 1, serviceReady: true}
	srv := NewServer("127.0.0.1", 2290, adminToken, d, metrics.NewCollector(), logs, time.Now())
	return srv, d
}

func doRequest(srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthzIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, "tok", nil)

	rec := doRequest(srv, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestServer_APIRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t, "tok", nil)

	if rec := doRequest(srv, http.MethodGet, "/api/v1/status", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/api/v1/status", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-token status = %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/api/v1/status", "tok", ""); rec.Code != http.StatusOK {
		t.Fatalf("authed status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestServer_EmptyTokenDisablesAuth(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	if rec := doRequest(srv, http.MethodGet, "/api/v1/status", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("status without auth = %d", rec.Code)
	}
}

func TestServer_InspectRoundTrip(t *testing.T) {
	srv, d := newTestServer(t, "tok", nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/inspect", "tok", `{"url":"S76561198000000001A7D9"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect status = %d, body %s", rec.Code, rec.Body.String())
	}
	if d.last.A != "7" || d.last.D != "9" {
		t.Fatalf("dispatched link = %+v", d.last)
	}
}

func TestServer_BodyLimit(t *testing.T) {
	srv, _ := newTestServer(t, "tok", nil)

	huge := `{"url":"` + strings.Repeat("x", apiMaxBodyBytes+1) + `"}`
	rec := doRequest(srv, http.MethodPost, "/api/v1/inspect", "tok", huge)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body status = %d", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("code = %q", detail.Code)
	}
}

func TestServer_InspectLogEndpoints(t *testing.T) {
	repo := inspectlog.NewRepo(t.TempDir(), 1<<20, 5)
	if err := repo.Open(); err != nil {
		t.Fatalf("repo.Open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	if _, err := repo.InsertBatch([]inspectlog.LogRow{{
		ID: "log-1", TsNs: time.Now().UnixNano(), Username: "alpha",
		LinkHash: "hash-1", OwnerID: "76561198000000001", AssetID: "7",
		ItemID: 7, FloatValue: 0.1, OK: true,
	}}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	logs := inspectlog.NewService(inspectlog.ServiceConfig{Repo: repo})
	srv, _ := newTestServer(t, "tok", logs)

	rec := doRequest(srv, http.MethodGet, "/api/v1/inspect-logs?username=alpha", "tok", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body %s", rec.Code, rec.Body.String())
	}
	var page PageResponse[inspectlog.LogRow]
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "log-1" {
		t.Fatalf("page = %+v", page)
	}

	rec = doRequest(srv, http.MethodGet, "/api/v1/inspect-logs/log-1", "tok", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodGet, "/api/v1/inspect-logs/log-zz", "tok", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing log status = %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodGet, "/api/v1/inspect-logs?from=not-a-time", "tok", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from status = %d", rec.Code)
	}
}

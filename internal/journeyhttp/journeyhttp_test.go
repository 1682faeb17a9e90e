package journeyhttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/journeyhttp"
	"github.com/outcomeops/analytics-ingest/internal/schema"
)

type fakeWriter struct {
	written []schema.SessionEvent
	err     error
}

func (f *fakeWriter) WriteOne(ctx context.Context, ev schema.SessionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, ev)
	return nil
}

func testSetup() (http.Handler, *fakeWriter) {
	cfg := &config.Config{AllowedDomains: []string{"myfantasy.ai"}, SessionsTable: "sessions"}
	w := &fakeWriter{}
	h := journeyhttp.NewHandler(cfg, w, zerolog.New(io.Discard))
	return journeyhttp.NewRouter(h), w
}

func TestHealthZ(t *testing.T) {
	r, _ := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestScenario5SingleEventAccepted(t *testing.T) {
	r, w := testSetup()
	body := `{"session_id":"s1","event_type":"pageview","domain":"myfantasy.ai","path":"/"}`
	req := httptest.NewRequest(http.MethodPost, "/t", bytes.NewBufferString(body))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if len(w.written) != 1 {
		t.Fatalf("expected one event written, got %d", len(w.written))
	}
	if ct := rw.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %s", ct)
	}
	if origin := rw.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("expected CORS wildcard origin, got %s", origin)
	}
}

func TestMissingSessionsTableReturns500(t *testing.T) {
	cfg := &config.Config{AllowedDomains: []string{"myfantasy.ai"}}
	w := &fakeWriter{}
	h := journeyhttp.NewHandler(cfg, w, zerolog.New(io.Discard))
	r := journeyhttp.NewRouter(h)

	body := `{"session_id":"s1","event_type":"pageview","domain":"myfantasy.ai","path":"/"}`
	req := httptest.NewRequest(http.MethodPost, "/t", bytes.NewBufferString(body))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when SESSIONS_TABLE is unconfigured, got %d", rw.Code)
	}
	if len(w.written) != 0 {
		t.Fatalf("expected no events written when SESSIONS_TABLE is unconfigured")
	}
}

func TestSingleEventValidationFailureReturns400(t *testing.T) {
	r, w := testSetup()
	body := `{"session_id":"s1","event_type":"pageview","domain":"evil.example","path":"/"}`
	req := httptest.NewRequest(http.MethodPost, "/t", bytes.NewBufferString(body))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for disallowed domain, got %d", rw.Code)
	}
	if len(w.written) != 0 {
		t.Fatalf("expected no events written on validation failure")
	}
}

func TestInvalidJSONReturns400(t *testing.T) {
	r, _ := testSetup()
	req := httptest.NewRequest(http.MethodPost, "/t", bytes.NewBufferString("{not json"))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", rw.Code)
	}
}

func TestScenario6BatchPartialFailureDoesNotFailBatch(t *testing.T) {
	r, w := testSetup()
	body := `{"events":[
		{"session_id":"s1","event_type":"pageview","domain":"myfantasy.ai","path":"/"},
		{"session_id":"s2","event_type":"bogus","domain":"myfantasy.ai","path":"/"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/t/batch", bytes.NewBufferString(body))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 even with one invalid event in the batch, got %d", rw.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["written"] != float64(1) || resp["errors"] != float64(1) {
		t.Fatalf("expected written=1 errors=1, got %+v", resp)
	}
	if len(w.written) != 1 {
		t.Fatalf("expected exactly one event persisted, got %d", len(w.written))
	}
}

func TestP6BatchEmptyRejected(t *testing.T) {
	r, _ := testSetup()
	req := httptest.NewRequest(http.MethodPost, "/t/batch", bytes.NewBufferString(`{"events":[]}`))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rw.Code)
	}
}

func TestP6BatchOverLimitRejected(t *testing.T) {
	r, _ := testSetup()
	events := make([]map[string]string, 0, 101)
	for i := 0; i < 101; i++ {
		events = append(events, map[string]string{
			"session_id": "s1", "event_type": "pageview", "domain": "myfantasy.ai", "path": "/",
		})
	}
	payload, _ := json.Marshal(map[string]interface{}{"events": events})
	req := httptest.NewRequest(http.MethodPost, "/t/batch", bytes.NewBuffer(payload))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for batch over 100 events, got %d", rw.Code)
	}
}

func TestOptionsPreflightReturns200EmptyBody(t *testing.T) {
	r, _ := testSetup()
	req := httptest.NewRequest(http.MethodOptions, "/t", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 for OPTIONS preflight, got %d", rw.Code)
	}
	if rw.Body.Len() != 0 {
		t.Fatalf("expected empty body for OPTIONS preflight, got %q", rw.Body.String())
	}
}

func TestMethodNotAllowedReturns405(t *testing.T) {
	r, _ := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /t, got %d", rw.Code)
	}
}

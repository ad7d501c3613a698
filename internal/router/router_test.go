package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
	"github.com/connexus-ai/kenyalaw-rag/internal/orchestrator"
)

// mockDB implements handler.DBPinger for testing.
type mockDB struct {
	err error
}

func (m *mockDB) Ping(ctx context.Context) error { return m.err }

type mockOrchestrator struct {
	result model.QueryResult
}

func (m *mockOrchestrator) Query(ctx context.Context, question string, opts orchestrator.Options) model.QueryResult {
	return m.result
}

type mockStatusAPI struct {
	snapshot model.ModelStatusSnapshot
	reloadOK bool
}

func (m *mockStatusAPI) Status() model.ModelStatusSnapshot { return m.snapshot }
func (m *mockStatusAPI) Reload(id string) bool             { return m.reloadOK }

func newTestRouter() *Dependencies {
	return &Dependencies{
		DB:           &mockDB{},
		FrontendURL:  "https://example.org",
		Version:      "test",
		Orchestrator: &mockOrchestrator{result: model.QueryResult{Success: true, Answer: "answer"}},
		StatusAPI:    &mockStatusAPI{reloadOK: true},
	}
}

func TestRouter_Health(t *testing.T) {
	r := New(newTestRouter())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_Query(t *testing.T) {
	r := New(newTestRouter())

	body := []byte(`{"question":"what is the notice period?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp model.QueryResult
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Answer != "answer" {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestRouter_ModelStatus(t *testing.T) {
	deps := newTestRouter()
	deps.StatusAPI = &mockStatusAPI{snapshot: model.ModelStatusSnapshot{
		Entries: []model.ModelEntry{{ID: "vertex-primary"}},
	}}
	r := New(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/models/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_ModelReload(t *testing.T) {
	r := New(newTestRouter())

	req := httptest.NewRequest(http.MethodPost, "/api/models/vertex-primary/reload", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	r := New(newTestRouter())

	req := httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

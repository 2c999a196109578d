package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(context.Background(), Config{}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestResolveInlineRoot(t *testing.T) {
	router := testServer(t).Router()

	rec := postJSON(t, router, "/api/resolve",
		`{"root": {"api_version": 1, "project_id": "build", "recipes_path": "recipes"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var closure struct {
		Root     string `json:"root"`
		Packages []struct {
			Project string `json:"project_id"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &closure); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if closure.Root != "build" || len(closure.Packages) != 1 {
		t.Errorf("closure = %+v", closure)
	}
}

func TestResolveRejectsEmptyRequest(t *testing.T) {
	router := testServer(t).Router()

	rec := postJSON(t, router, "/api/resolve", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResolveRejectsBadAPIVersion(t *testing.T) {
	router := testServer(t).Router()

	rec := postJSON(t, router, "/api/resolve",
		`{"root": {"api_version": 9, "project_id": "build", "recipes_path": "recipes"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Error == "" {
		t.Error("error body should carry a message")
	}
}

func TestResolveRejectsMalformedBody(t *testing.T) {
	router := testServer(t).Router()

	rec := postJSON(t, router, "/api/resolve", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlanDependencyFreeRoot(t *testing.T) {
	router := testServer(t).Router()

	rec := postJSON(t, router, "/api/plan",
		`{"root": {"api_version": 1, "project_id": "build", "recipes_path": "recipes"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	// The root never produces an action.
	if body := rec.Body.String(); body != "null\n" && body != "[]\n" {
		t.Errorf("body = %q, want empty plan", body)
	}
}

func TestRunsEmptyWithoutBackend(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestRunsRejectsBadLimit(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=bogus", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

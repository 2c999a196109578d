package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/luqui/recipe-engine/pkg/descriptor"
	apperrors "github.com/luqui/recipe-engine/pkg/errors"
	"github.com/luqui/recipe-engine/pkg/history"
	"github.com/luqui/recipe-engine/pkg/plan"
	"github.com/luqui/recipe-engine/pkg/resolve"
)

// resolveRequest is the body of POST /api/resolve and POST /api/plan. The
// root descriptor may be given inline or located by repository URL.
type resolveRequest struct {
	Root *descriptor.Package `json:"root,omitempty"`
	URL  string              `json:"url,omitempty"`
	Ref  string              `json:"ref,omitempty"`

	Parallelism int `json:"parallelism,omitempty"`

	// BaseDir applies to /api/plan only.
	BaseDir string `json:"base_dir,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	closure, ok := s.resolveFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, closure)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, closure, ok := s.resolveWithRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, plan.Build(closure, req.BaseDir))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = n
	}

	records, err := s.runs.List(r.Context(), limit)
	if err != nil {
		s.logger.Errorf("List runs: %v", err)
		writeError(w, http.StatusInternalServerError, "run history unavailable", "")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) resolveFromRequest(w http.ResponseWriter, r *http.Request) (*resolve.Closure, bool) {
	_, closure, ok := s.resolveWithRequest(w, r)
	return closure, ok
}

// resolveWithRequest runs the shared decode, root load and resolve pipeline
// behind the resolve and plan endpoints.
func (s *Server) resolveWithRequest(w http.ResponseWriter, r *http.Request) (*resolveRequest, *resolve.Closure, bool) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return nil, nil, false
	}

	root := req.Root
	switch {
	case root == nil && req.URL == "":
		writeError(w, http.StatusBadRequest, "either root or url is required", "")
		return nil, nil, false
	case root == nil:
		data, err := s.src.Fetch(r.Context(), req.URL, req.Ref, "")
		if err != nil {
			s.writeResolveError(w, err)
			return nil, nil, false
		}
		root, err = descriptor.Decode(descriptor.ConfigFile, data)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
			return nil, nil, false
		}
	}
	if err := root.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), string(apperrors.GetCode(err)))
		return nil, nil, false
	}

	rec := history.NewRecord(string(root.ProjectID))
	closure, err := s.engine.Resolve(r.Context(), root, resolve.Options{Parallelism: req.Parallelism})
	rec.Duration = time.Since(rec.CreatedAt).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Packages = closure.Len()
		rec.Unstable = len(closure.Unstable())
	}
	if herr := s.runs.Save(r.Context(), rec); herr != nil {
		s.logger.Warnf("Run history save failed: %v", herr)
	}

	if err != nil {
		s.writeResolveError(w, err)
		return nil, nil, false
	}
	return &req, closure, true
}

// writeResolveError maps a resolution failure to an HTTP status by its
// error code.
func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrCodeDependencyConflict, apperrors.ErrCodeDependencyCycle, apperrors.ErrCodeUnsupportedAPIVersion:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrCodeDescriptorUnavailable, apperrors.ErrCodeNotFound:
		status = http.StatusBadGateway
	case apperrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error(), string(code))
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

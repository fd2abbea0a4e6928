package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/disaster-risk-service/internal/assess"
	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/session"
)

const maxBodyBytes = 1 << 16

type typeInfo struct {
	Type      domain.DisasterType `json:"type"`
	Fields    []string            `json:"fields"`
	GeoScoped bool                `json:"geo_scoped"`
	States    []string            `json:"states,omitempty"`
}

type selectRequest struct {
	Model string `json:"model"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) handleTypes(w http.ResponseWriter, _ *http.Request) {
	out := make([]typeInfo, 0, len(domain.DisasterTypes))
	for _, t := range domain.DisasterTypes {
		info := typeInfo{Type: t, Fields: domain.RequiredFields(t), GeoScoped: t.GeoScoped()}
		if t == domain.ForestFire {
			info.States = domain.ForestFireStates()
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Models(r.Context(), r.Header.Get(SessionHeader), s.catalog)
	w.Header().Set(SessionHeader, st.ID)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: SessionHeader + " header is required"})
		return
	}

	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	st, err := s.sessions.Select(id, req.Model)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, session.ErrUnknownModel):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "model"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set(SessionHeader, st.ID)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runAssessment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runAssessment(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-risk-report.txt"`, res.Type))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Report())
}

// runAssessment decodes the request, fills in the session's selected model and
// writes the error response itself when the assessment cannot run. An explicit
// model_name must be in the session's catalog; it is checked before any
// prediction call.
func (s *Server) runAssessment(w http.ResponseWriter, r *http.Request) (assess.Result, bool) {
	var in assess.Input
	if err := decodeBody(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return assess.Result{}, false
	}
	sessionID := r.Header.Get(SessionHeader)
	if in.ModelName == "" {
		in.ModelName = s.sessions.Selected(sessionID)
	} else if err := s.sessions.CheckModel(sessionID, in.ModelName); err != nil {
		verr := &domain.ValidationError{Field: "model_name", Reason: fmt.Sprintf("%q is not in the session's model catalog", in.ModelName)}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
		return assess.Result{}, false
	}

	res, err := s.assessor.Assess(r.Context(), in)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
			return assess.Result{}, false
		}
		s.logger.Error("assessment failed",
			"error", err,
			"type", in.Type,
			"request_id", middleware.GetReqID(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "assessment failed"})
		return assess.Result{}, false
	}
	return res, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

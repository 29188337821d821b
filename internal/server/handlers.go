package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/aadhaar"
	"github.com/spigell/scheme-matcher/internal/filtering"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/recommend"
	"github.com/spigell/scheme-matcher/internal/store"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

const readyTimeout = 3 * time.Second

type recommendationsRequest struct {
	Email   string `json:"email"`
	Explain bool   `json:"explain"`
}

type recommendationsResponse struct {
	EligibleSchemeIDs []string                         `json:"eligible_scheme_ids"`
	Rejections        map[string]filtering.Rejection   `json:"rejections,omitempty"`
	Assessments       map[string]*filtering.Assessment `json:"assessments,omitempty"`
}

type verifyRequest struct {
	Email      string `json:"email"`
	FrontImage string `json:"front_image"`
	BackImage  string `json:"back_image"`
}

type verifyResponse struct {
	Verified   bool     `json:"verified"`
	Mismatches []string `json:"mismatches,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := s.decode(w, r, recommendationsValidator, &req); err != nil {
		s.respondJSON(w, s.status(r, err), errorResponse{Error: err.Error()})
		return
	}

	rec, err := s.recommender.Recommend(r.Context(), req.Email)
	if err != nil {
		s.respondJSON(w, s.status(r, err), errorResponse{Error: err.Error()})
		return
	}

	resp := recommendationsResponse{EligibleSchemeIDs: rec.IDs()}
	if resp.EligibleSchemeIDs == nil {
		resp.EligibleSchemeIDs = []string{}
	}
	if req.Explain {
		resp.Rejections = rec.Rejections
		resp.Assessments = rec.Assessments
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleVerify always answers with a verified flag, false on any failure.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, verifyResponse{Error: "verification is not configured"})
		return
	}

	result, err := s.verify(w, r)
	if err != nil {
		s.respondJSON(w, s.status(r, err), verifyResponse{Error: err.Error()})
		return
	}

	s.respondJSON(w, http.StatusOK, verifyResponse{Verified: result.Verified, Mismatches: result.Mismatches})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) (*aadhaar.Result, error) {
	var req verifyRequest
	if err := s.decode(w, r, verifyValidator, &req); err != nil {
		return nil, err
	}

	front, err := aadhaar.DecodeImage(req.FrontImage)
	if err != nil {
		return nil, fmt.Errorf("front image: %w", err)
	}
	back, err := aadhaar.DecodeImage(req.BackImage)
	if err != nil {
		return nil, fmt.Errorf("back image: %w", err)
	}

	return s.verifier.Verify(r.Context(), req.Email, front, back)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, pinger := range s.checks {
		if err := pinger.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	s.respondJSON(w, status, checks)
}

var errBadRequest = errors.New("bad request")

// decode reads the body, validates it against schema and unmarshals it into dst.
// Failures wrap errBadRequest.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}

	if err := validateBody(schema, body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	return nil
}

// status maps err to an HTTP status code and logs it.
func (s *Server) status(r *http.Request, err error) int {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, aadhaar.ErrInvalidImage):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, welfare.ErrInvalidProfile):
		status = http.StatusUnprocessableEntity
	}

	log := s.logger.With(zap.String(logger.FieldRequestID, recommend.RequestID(r.Context())))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}

	return status
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aaanmmoool/finboard/internal/dashboard"
	"github.com/aaanmmoool/finboard/internal/jsonvalue"
	"github.com/aaanmmoool/finboard/internal/normalize"
)

// maxBodyBytes bounds request bodies, including documents posted to /api/normalize.
const maxBodyBytes = 1 << 20

const healthCheckTimeout = 2 * time.Second

var validate = validator.New()

// URLRequest is the body of /api/connections/test and /api/fetch.
type URLRequest struct {
	URL       string `json:"url" validate:"required,url"`
	SkipCache bool   `json:"skipCache"`
}

// NormalizeResponse describes a posted document in every normalized shape
// that applies to it.
type NormalizeResponse struct {
	Format normalize.Format           `json:"format"`
	Quote  *normalize.Quote           `json:"quote,omitempty"`
	Rate   *normalize.CurrencyRate    `json:"rate,omitempty"`
	Series []normalize.Point          `json:"series"`
	Fields []normalize.AvailableField `json:"fields"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "finboard",
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Database health check failed")
			response["status"] = "unhealthy"
			response["error"] = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleTestConnection handles POST /api/connections/test
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	s.writeJSON(w, http.StatusOK, s.dashboard.TestConnection(r.Context(), req.URL))
}

// handleFetch handles POST /api/fetch
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	s.writeJSON(w, http.StatusOK, s.dashboard.FetchWidgetData(r.Context(), req.URL, req.SkipCache))
}

// handleNormalize handles POST /api/normalize. The body is any JSON document;
// the optional "path" query parameter points at a date-keyed object for
// payloads without a native series.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	data, err := jsonvalue.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid JSON document", http.StatusBadRequest)
		return
	}

	resp := NormalizeResponse{
		Format: normalize.DetectFormat(data),
		Series: normalize.ExtractTimeSeries(data, r.URL.Query().Get("path")),
		Fields: normalize.ExtractFields(data, ""),
	}
	switch resp.Format {
	case normalize.FormatAlphaVantageQuote:
		resp.Quote = normalize.NormalizeQuote(data)
	case normalize.FormatCoinbase:
		resp.Rate = normalize.NormalizeCoinbaseRate(data)
	case normalize.FormatForex:
		resp.Rate = normalize.NormalizeForexRate(data)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// decodeJSON decodes a JSON body into dst. It writes the error response and
// returns false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeRequest is decodeJSON followed by struct validation.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if !s.decodeJSON(w, r, dst) {
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %s", err.Error()), http.StatusBadRequest)
		return false
	}
	return true
}

// writeDashboardError maps dashboard errors to status codes.
func (s *Server) writeDashboardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrWidgetNotFound), errors.Is(err, dashboard.ErrTemplateNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dashboard.ErrInvalidWidget), errors.Is(err, dashboard.ErrInvalidMode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("Dashboard operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

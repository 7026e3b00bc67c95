package server

import (
	"net/http"
	"regexp"

	"github.com/aaanmmoool/finboard/internal/events"
)

// InvalidateRequest removes one key, or every key matching Pattern.
type InvalidateRequest struct {
	Key     string `json:"key" validate:"required_without=Pattern"`
	Pattern string `json:"pattern" validate:"required_without=Key"`
}

// handleCacheStats handles GET /api/cache/stats
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

// handleClearCache handles DELETE /api/cache
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	removed := s.cache.Stats().Size
	s.cache.Clear()

	s.log.Info().Int("removed", removed).Msg("Cache cleared")
	s.emitCacheCleared("", removed)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// handleInvalidateCache handles POST /api/cache/invalidate
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	var removed int
	if req.Pattern != "" {
		re, err := regexp.Compile(req.Pattern)
		if err != nil {
			http.Error(w, "Invalid pattern", http.StatusBadRequest)
			return
		}
		removed = s.cache.InvalidateByPattern(re)
	} else {
		before := s.cache.Stats().Size
		s.cache.Invalidate(req.Key)
		removed = before - s.cache.Stats().Size
	}

	pattern := req.Pattern
	if pattern == "" {
		pattern = req.Key
	}
	s.emitCacheCleared(pattern, removed)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (s *Server) emitCacheCleared(pattern string, removed int) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.CacheCleared, "cache", &events.CacheClearedData{Pattern: pattern, Removed: removed})
}

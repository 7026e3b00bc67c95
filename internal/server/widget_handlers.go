package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aaanmmoool/finboard/internal/dashboard"
)

// WidgetView is a widget configuration together with its live state.
type WidgetView struct {
	dashboard.Widget
	State dashboard.LiveState `json:"state"`
}

// WidgetDataResponse is the body of GET /api/widgets/{id}/data.
type WidgetDataResponse struct {
	State  dashboard.LiveState      `json:"state"`
	Fields []dashboard.DisplayField `json:"fields"`
}

// ReorderRequest moves ActiveID to the position of OverID.
type ReorderRequest struct {
	ActiveID string `json:"activeId" validate:"required"`
	OverID   string `json:"overId" validate:"required"`
}

// LoadTemplateRequest is the optional body of POST /api/templates/{id}/load.
type LoadTemplateRequest struct {
	Mode dashboard.TemplateMode `json:"mode"`
}

// handleListWidgets handles GET /api/widgets
func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets := s.dashboard.Widgets()

	views := make([]WidgetView, 0, len(widgets))
	for _, wd := range widgets {
		st, err := s.dashboard.State(wd.ID)
		if err != nil {
			// Removed between the two reads
			continue
		}
		views = append(views, WidgetView{Widget: wd, State: st})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"widgets": views,
		"count":   len(views),
	})
}

// handleAddWidget handles POST /api/widgets
func (s *Server) handleAddWidget(w http.ResponseWriter, r *http.Request) {
	var req dashboard.Widget
	if !s.decodeJSON(w, r, &req) {
		return
	}

	added, err := s.dashboard.AddWidget(req)
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, added)
}

// handleClearWidgets handles DELETE /api/widgets
func (s *Server) handleClearWidgets(w http.ResponseWriter, r *http.Request) {
	s.dashboard.ClearDashboard()
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateWidget handles PUT /api/widgets/{id}
func (s *Server) handleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	var patch dashboard.WidgetPatch
	if !s.decodeJSON(w, r, &patch) {
		return
	}

	updated, err := s.dashboard.UpdateWidget(chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleRemoveWidget handles DELETE /api/widgets/{id}
func (s *Server) handleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboard.RemoveWidget(chi.URLParam(r, "id")); err != nil {
		s.writeDashboardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTogglePin handles POST /api/widgets/{id}/pin
func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	widget, err := s.dashboard.TogglePin(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, widget)
}

// handleReorderWidgets handles POST /api/widgets/reorder
func (s *Server) handleReorderWidgets(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	if err := s.dashboard.ReorderWidgets(req.ActiveID, req.OverID); err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"widgets": s.dashboard.Widgets()})
}

// handleRefreshWidget handles POST /api/widgets/{id}/refresh. It always
// bypasses the cache.
func (s *Server) handleRefreshWidget(w http.ResponseWriter, r *http.Request) {
	st, err := s.dashboard.RefreshWidget(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// handleRefreshAllWidgets handles POST /api/widgets/refresh. Every HTTP
// widget is refetched, bypassing the cache.
func (s *Server) handleRefreshAllWidgets(w http.ResponseWriter, r *http.Request) {
	n := s.dashboard.RefreshAll(r.Context(), true)
	s.writeJSON(w, http.StatusOK, map[string]int{"refreshed": n})
}

// handleWidgetData handles GET /api/widgets/{id}/data
func (s *Server) handleWidgetData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.dashboard.State(id)
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	fields, err := s.dashboard.DisplayFields(id)
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, WidgetDataResponse{State: st, Fields: fields})
}

// handleWidgetSeries handles GET /api/widgets/{id}/series?sma=N&ema=N
func (s *Server) handleWidgetSeries(w http.ResponseWriter, r *http.Request) {
	var opts dashboard.SeriesOptions
	var err error
	if opts.SMAPeriod, err = periodParam(r, "sma"); err != nil {
		http.Error(w, "Invalid sma period", http.StatusBadRequest)
		return
	}
	if opts.EMAPeriod, err = periodParam(r, "ema"); err != nil {
		http.Error(w, "Invalid ema period", http.StatusBadRequest)
		return
	}

	view, err := s.dashboard.Series(chi.URLParam(r, "id"), opts)
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleListTemplates handles GET /api/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"templates": dashboard.Templates()})
}

// handleLoadTemplate handles POST /api/templates/{id}/load. The mode
// defaults to merge.
func (s *Server) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	req := LoadTemplateRequest{Mode: dashboard.ModeMerge}
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
		if req.Mode == "" {
			req.Mode = dashboard.ModeMerge
		}
	}

	added, err := s.dashboard.LoadTemplate(chi.URLParam(r, "id"), req.Mode)
	if err != nil {
		s.writeDashboardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"added":   added,
		"widgets": s.dashboard.Widgets(),
	})
}

func periodParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

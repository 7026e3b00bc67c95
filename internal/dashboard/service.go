package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aaanmmoool/finboard/internal/events"
	"github.com/aaanmmoool/finboard/internal/fetch"
	"github.com/aaanmmoool/finboard/internal/jsonvalue"
	"github.com/aaanmmoool/finboard/internal/normalize"
	"github.com/aaanmmoool/finboard/internal/stream"
)

const defaultRefreshConcurrency = 4

// Fetcher is the HTTP side of the data layer.
type Fetcher interface {
	CachedFetch(ctx context.Context, url string, opts fetch.Options) fetch.Result
	Do(ctx context.Context, url string, opts fetch.Options) (jsonvalue.Value, error)
}

// Streamer is the WebSocket side of the data layer.
type Streamer interface {
	Connect(id, url string, cb stream.Callbacks)
	Disconnect(id string)
}

// TestResult is the outcome of TestConnection.
type TestResult struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Fields  []normalize.AvailableField `json:"fields,omitempty"`
	Data    jsonvalue.Value            `json:"data"`
}

// FetchResult is the outcome of FetchWidgetData.
type FetchResult struct {
	Success   bool            `json:"success"`
	Data      jsonvalue.Value `json:"data"`
	Error     string          `json:"error,omitempty"`
	FromCache bool            `json:"fromCache"`
}

// Service holds the widget list and the live state of every widget.
type Service struct {
	mu         sync.Mutex
	widgets    []Widget
	live       map[string]*LiveState
	lastPolled map[string]time.Time
	inFlight   map[string]bool

	repo         *Repository
	fetcher      Fetcher
	streams      Streamer
	bus          *events.Bus
	clock        clock.Clock
	refreshLimit int
	log          zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for polling and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRefreshConcurrency bounds how many widgets refresh at once.
func WithRefreshConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshLimit = n
		}
	}
}

// NewService creates a dashboard service. bus may be nil.
func NewService(repo *Repository, fetcher Fetcher, streams Streamer, bus *events.Bus, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		live:         make(map[string]*LiveState),
		lastPolled:   make(map[string]time.Time),
		inFlight:     make(map[string]bool),
		repo:         repo,
		fetcher:      fetcher,
		streams:      streams,
		bus:          bus,
		clock:        clock.New(),
		refreshLimit: defaultRefreshConcurrency,
		log:          log.With().Str("component", "dashboard").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores the saved widget configuration. On failure the dashboard
// starts empty and the error is returned for logging.
func (s *Service) Load() error {
	widgets, err := s.repo.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.widgets = nil
	s.live = make(map[string]*LiveState)
	if err != nil {
		return err
	}
	for _, w := range widgets {
		s.widgets = append(s.widgets, w)
		s.live[w.ID] = &LiveState{}
	}
	s.log.Info().Int("widgets", len(s.widgets)).Msg("Dashboard loaded")
	return nil
}

// Start subscribes every streaming widget.
func (s *Service) Start() {
	for _, w := range s.Widgets() {
		if w.isStreaming() {
			s.subscribeWidget(w)
		}
	}
}

// Stop closes every widget stream.
func (s *Service) Stop() {
	for _, w := range s.Widgets() {
		if w.isStreaming() {
			s.streams.Disconnect(w.ID)
		}
	}
}

// TestConnection fetches url once, bypassing the cache, and lists the
// fields found in the response.
func (s *Service) TestConnection(ctx context.Context, url string) TestResult {
	data, err := s.fetcher.Do(ctx, url, fetch.Options{})
	if err != nil {
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) {
			return TestResult{
				Message: fmt.Sprintf("HTTP Error: %d %s", statusErr.StatusCode, statusErr.StatusText()),
			}
		}
		msg := err.Error()
		if msg == "" {
			msg = "Failed to connect to API"
		}
		return TestResult{Message: msg}
	}

	fields := normalize.ExtractFields(data, "")
	return TestResult{
		Success: true,
		Message: fmt.Sprintf("API connection successful! %d top-level fields found.", len(fields)),
		Fields:  fields,
		Data:    data,
	}
}

// FetchWidgetData fetches url through the cache with the TTL recommended
// for its domain.
func (s *Service) FetchWidgetData(ctx context.Context, url string, skipCache bool) FetchResult {
	res := s.fetcher.CachedFetch(ctx, url, fetch.Options{
		TTL:       fetch.RecommendedTTL(url),
		SkipCache: skipCache,
	})
	if !res.OK() {
		return FetchResult{Error: res.Error, FromCache: res.FromCache}
	}
	return FetchResult{Success: true, Data: res.Data, FromCache: res.FromCache}
}

// Subscribe opens a stream for id.
func (s *Service) Subscribe(id, url string, cb stream.Callbacks) {
	s.streams.Connect(id, url, cb)
}

// Unsubscribe closes the stream for id.
func (s *Service) Unsubscribe(id string) {
	s.streams.Disconnect(id)
}

// Widgets returns the widgets in display order.
func (s *Service) Widgets() []Widget {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Widget, len(s.widgets))
	for i, w := range s.widgets {
		out[i] = w.clone()
	}
	return out
}

// Widget returns one widget.
func (s *Service) Widget(id string) (Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Widget{}, ErrWidgetNotFound
	}
	return s.widgets[idx].clone(), nil
}

// State returns the live state of a widget.
func (s *Service) State(id string) (LiveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.live[id]
	if !ok {
		return LiveState{}, ErrWidgetNotFound
	}
	return *st, nil
}

// DisplayFields resolves the selected fields of a widget against its live data.
func (s *Service) DisplayFields(id string) ([]DisplayField, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrWidgetNotFound
	}
	fields := append([]WidgetField(nil), s.widgets[idx].SelectedFields...)
	data := s.live[id].Data
	s.mu.Unlock()

	out := make([]DisplayField, 0, len(fields))
	for _, f := range fields {
		v, ok := normalize.GetValueByPath(data, f.Path)
		out = append(out, DisplayField{
			Path:    f.Path,
			Label:   f.Label,
			Value:   v,
			Found:   ok,
			Display: normalize.FormatDisplayValue(v),
		})
	}
	return out, nil
}

// AddWidget validates w, assigns it a new id and appends it.
func (s *Service) AddWidget(w Widget) (Widget, error) {
	w = w.clone()
	w.ID = uuid.NewString()
	if w.DisplayMode == "" {
		w.DisplayMode = DisplayCard
	}
	if w.ConnectionType == "" {
		w.ConnectionType = ConnectionHTTP
	}
	if err := w.Validate(); err != nil {
		return Widget{}, err
	}

	s.mu.Lock()
	s.widgets = append(s.widgets, w)
	s.live[w.ID] = &LiveState{}
	count := len(s.widgets)
	s.saveLocked()
	s.mu.Unlock()

	s.log.Info().Str("widget_id", w.ID).Str("name", w.Name).Msg("Widget added")
	s.emit(&events.DashboardChangedData{Action: "add", WidgetID: w.ID, Count: count})

	if w.isStreaming() {
		s.subscribeWidget(w)
	}
	return w.clone(), nil
}

// RemoveWidget deletes a widget and closes its stream.
func (s *Service) RemoveWidget(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrWidgetNotFound
	}
	w := s.widgets[idx]
	s.widgets = append(s.widgets[:idx:idx], s.widgets[idx+1:]...)
	s.forgetLocked(id)
	count := len(s.widgets)
	s.saveLocked()
	s.mu.Unlock()

	if w.isStreaming() {
		s.streams.Disconnect(id)
	}
	s.log.Info().Str("widget_id", id).Msg("Widget removed")
	s.emit(&events.DashboardChangedData{Action: "remove", WidgetID: id, Count: count})
	return nil
}

// UpdateWidget applies patch. A change to the connection settings restarts
// the widget's stream and makes it due for polling.
func (s *Service) UpdateWidget(id string, patch WidgetPatch) (Widget, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Widget{}, ErrWidgetNotFound
	}
	old := s.widgets[idx]
	updated := old.clone()
	connectionChanged := patch.apply(&updated)
	if err := updated.Validate(); err != nil {
		s.mu.Unlock()
		return Widget{}, err
	}
	s.widgets[idx] = updated
	if connectionChanged {
		delete(s.lastPolled, id)
	}
	count := len(s.widgets)
	s.saveLocked()
	s.mu.Unlock()

	if connectionChanged {
		if old.isStreaming() {
			s.streams.Disconnect(id)
		}
		if updated.isStreaming() {
			s.subscribeWidget(updated)
		}
	}
	s.emit(&events.DashboardChangedData{Action: "update", WidgetID: id, Count: count})
	return updated.clone(), nil
}

// TogglePin pins a widget to the front, or unpins it back to the first
// position after the pinned widgets.
func (s *Service) TogglePin(id string) (Widget, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Widget{}, ErrWidgetNotFound
	}

	w := s.widgets[idx]
	rest := make([]Widget, 0, len(s.widgets))
	rest = append(rest, s.widgets[:idx]...)
	rest = append(rest, s.widgets[idx+1:]...)

	w.IsPinned = !w.IsPinned
	if w.IsPinned {
		s.widgets = append([]Widget{w}, rest...)
	} else {
		insert := len(rest)
		for i, other := range rest {
			if !other.IsPinned {
				insert = i
				break
			}
		}
		s.widgets = make([]Widget, 0, len(rest)+1)
		s.widgets = append(s.widgets, rest[:insert]...)
		s.widgets = append(s.widgets, w)
		s.widgets = append(s.widgets, rest[insert:]...)
	}
	count := len(s.widgets)
	s.saveLocked()
	s.mu.Unlock()

	s.emit(&events.DashboardChangedData{Action: "pin", WidgetID: id, Count: count})
	return w.clone(), nil
}

// ReorderWidgets moves activeID to the position currently held by overID.
func (s *Service) ReorderWidgets(activeID, overID string) error {
	s.mu.Lock()
	from := s.indexLocked(activeID)
	to := s.indexLocked(overID)
	if from < 0 || to < 0 {
		s.mu.Unlock()
		return ErrWidgetNotFound
	}

	moved := s.widgets[from]
	s.widgets = append(s.widgets[:from:from], s.widgets[from+1:]...)
	s.widgets = append(s.widgets[:to], append([]Widget{moved}, s.widgets[to:]...)...)
	count := len(s.widgets)
	s.saveLocked()
	s.mu.Unlock()

	s.emit(&events.DashboardChangedData{Action: "reorder", WidgetID: activeID, Count: count})
	return nil
}

// LoadTemplate adds the widgets of a built-in template, replacing or
// appending to the current ones.
func (s *Service) LoadTemplate(templateID string, mode TemplateMode) ([]Widget, error) {
	if mode != ModeReplace && mode != ModeMerge {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	tmpl, ok := TemplateByID(templateID)
	if !ok {
		return nil, ErrTemplateNotFound
	}

	added := make([]Widget, len(tmpl.Widgets))
	for i, w := range tmpl.Widgets {
		w.ID = uuid.NewString()
		added[i] = w
	}

	s.mu.Lock()
	var dropped []Widget
	if mode == ModeReplace {
		dropped = s.widgets
		s.widgets = nil
		s.resetLocked()
	}
	for _, w := range added {
		s.widgets = append(s.widgets, w)
		s.live[w.ID] = &LiveState{}
	}
	count := len(s.widgets)
	s.saveLocked()
	s.mu.Unlock()

	s.closeStreams(dropped)
	for _, w := range added {
		if w.isStreaming() {
			s.subscribeWidget(w)
		}
	}

	s.log.Info().Str("template", templateID).Str("mode", string(mode)).Int("widgets", len(added)).Msg("Template loaded")
	s.emit(&events.DashboardChangedData{Action: "template", Count: count})

	out := make([]Widget, len(added))
	for i, w := range added {
		out[i] = w.clone()
	}
	return out, nil
}

// ClearDashboard removes every widget.
func (s *Service) ClearDashboard() {
	s.mu.Lock()
	dropped := s.widgets
	s.widgets = nil
	s.resetLocked()
	s.saveLocked()
	s.mu.Unlock()

	s.closeStreams(dropped)
	s.emit(&events.DashboardChangedData{Action: "clear"})
}

// RefreshWidget fetches fresh data for an HTTP widget, or restarts the
// stream of a streaming widget, and returns the resulting live state.
func (s *Service) RefreshWidget(ctx context.Context, id string, skipCache bool) (LiveState, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return LiveState{}, ErrWidgetNotFound
	}
	w := s.widgets[idx].clone()
	if !w.isStreaming() {
		s.live[id].IsLoading = true
		s.lastPolled[id] = s.clock.Now()
	}
	s.mu.Unlock()

	if w.isStreaming() {
		s.subscribeWidget(w)
		return s.State(id)
	}

	res := s.FetchWidgetData(ctx, w.APIURL, skipCache)
	if res.Success {
		s.applyData(id, res.Data, res.FromCache, false)
	} else {
		s.setError(id, res.Error)
	}
	return s.State(id)
}

// RefreshDue refreshes every HTTP widget that has never been fetched or
// whose refresh interval has elapsed, and returns how many were refreshed.
func (s *Service) RefreshDue(ctx context.Context) int {
	s.mu.Lock()
	now := s.clock.Now()
	var due []string
	for _, w := range s.widgets {
		if w.isStreaming() || s.inFlight[w.ID] {
			continue
		}
		last, polled := s.lastPolled[w.ID]
		interval := time.Duration(w.RefreshInterval) * time.Second
		if !polled || (interval > 0 && now.Sub(last) >= interval) {
			due = append(due, w.ID)
			s.inFlight[w.ID] = true
			s.lastPolled[w.ID] = now
		}
	}
	s.mu.Unlock()

	s.refreshMany(ctx, due, false)
	return len(due)
}

// RefreshAll refreshes every HTTP widget and returns how many were refreshed.
func (s *Service) RefreshAll(ctx context.Context, skipCache bool) int {
	s.mu.Lock()
	var ids []string
	for _, w := range s.widgets {
		if !w.isStreaming() && !s.inFlight[w.ID] {
			ids = append(ids, w.ID)
			s.inFlight[w.ID] = true
		}
	}
	s.mu.Unlock()

	s.refreshMany(ctx, ids, skipCache)
	return len(ids)
}

func (s *Service) refreshMany(ctx context.Context, ids []string, skipCache bool) {
	var g errgroup.Group
	g.SetLimit(s.refreshLimit)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			defer func() {
				s.mu.Lock()
				delete(s.inFlight, id)
				s.mu.Unlock()
			}()
			if _, err := s.RefreshWidget(ctx, id, skipCache); err != nil && !errors.Is(err, ErrWidgetNotFound) {
				s.log.Warn().Err(err).Str("widget_id", id).Msg("Widget refresh failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) subscribeWidget(w Widget) {
	id := w.ID

	s.mu.Lock()
	if st, ok := s.live[id]; ok {
		st.ConnectionStatus = stream.StatusConnecting
	}
	s.mu.Unlock()

	s.streams.Connect(id, w.streamURL(), stream.Callbacks{
		OnMessage: func(m stream.Message) {
			s.applyData(id, m.Data, false, true)
		},
		OnStatus: func(st stream.Status) {
			s.setConnectionStatus(id, st)
		},
		OnError: func(err error) {
			s.setError(id, err.Error())
		},
	})
}

func (s *Service) applyData(id string, data jsonvalue.Value, fromCache, streamed bool) {
	now := s.clock.Now()

	s.mu.Lock()
	st, ok := s.live[id]
	if ok {
		st.Data = data
		st.LastUpdated = &now
		st.IsLoading = false
		st.Error = ""
		st.FromCache = fromCache
	}
	s.mu.Unlock()

	if ok {
		s.emit(&events.WidgetDataUpdatedData{WidgetID: id, FromCache: fromCache, Streamed: streamed, LastUpdated: now})
	}
}

func (s *Service) setError(id, msg string) {
	s.mu.Lock()
	st, ok := s.live[id]
	if ok {
		st.Error = msg
		st.IsLoading = false
	}
	s.mu.Unlock()

	if ok {
		s.emit(&events.WidgetErrorData{WidgetID: id, Error: msg})
	}
}

func (s *Service) setConnectionStatus(id string, status stream.Status) {
	s.mu.Lock()
	st, ok := s.live[id]
	if ok {
		st.ConnectionStatus = status
	}
	s.mu.Unlock()

	if ok {
		s.emit(&events.WidgetStatusData{WidgetID: id, Status: string(status)})
	}
}

func (s *Service) closeStreams(widgets []Widget) {
	for _, w := range widgets {
		if w.isStreaming() {
			s.streams.Disconnect(w.ID)
		}
	}
}

func (s *Service) indexLocked(id string) int {
	for i, w := range s.widgets {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) forgetLocked(id string) {
	delete(s.live, id)
	delete(s.lastPolled, id)
}

func (s *Service) resetLocked() {
	s.live = make(map[string]*LiveState)
	s.lastPolled = make(map[string]time.Time)
}

// saveLocked persists the configuration. Failures are logged; the in-memory
// state stays authoritative.
func (s *Service) saveLocked() {
	if err := s.repo.Save(s.widgets); err != nil {
		s.log.Error().Err(err).Msg("Failed to save widgets")
	}
}

func (s *Service) emit(data events.EventData) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(data.EventType(), "dashboard", data)
}

// Package stream manages one long-lived WebSocket connection per subscriber
// with bounded automatic reconnection.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	// MaxReconnectAttempts is the number of reconnects after consecutive closes.
	MaxReconnectAttempts = 5
	// ReconnectDelay is the fixed wait before each reconnect.
	ReconnectDelay = 3 * time.Second
)

// ErrNotConnected is returned by Send when the connection is not open.
var ErrNotConnected = errors.New("stream: not connected")

// Status is the state of one connection.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Callbacks receive connection events. Any of them may be nil. They are
// called from the connection's own goroutine, never while the manager is locked.
type Callbacks struct {
	OnMessage func(Message)
	OnStatus  func(Status)
	OnError   func(error)
}

// Conn is the subset of *websocket.Conn the manager uses.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens a connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

type connection struct {
	id       string
	url      string
	cb       Callbacks
	conn     Conn
	status   Status
	attempts int
	cancel   context.CancelFunc
	timer    *clock.Timer
}

// Manager owns the connection table. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	conns map[string]*connection

	dial        DialFunc
	clock       clock.Clock
	maxAttempts int
	delay       time.Duration
	log         zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d DialFunc) Option {
	return func(m *Manager) { m.dial = d }
}

// WithClock replaces the clock driving reconnect timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithReconnectPolicy overrides the reconnect ceiling and delay.
func WithReconnectPolicy(maxAttempts int, delay time.Duration) Option {
	return func(m *Manager) {
		m.maxAttempts = maxAttempts
		m.delay = delay
	}
}

// NewManager creates a connection manager.
func NewManager(log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		conns:       make(map[string]*connection),
		dial:        NewDialer(nil),
		clock:       clock.New(),
		maxAttempts: MaxReconnectAttempts,
		delay:       ReconnectDelay,
		log:         log.With().Str("component", "stream").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens a connection for id. An existing connection for id is torn
// down first.
func (m *Manager) Connect(id, url string, cb Callbacks) {
	rec := &connection{id: id, url: url, cb: cb, status: StatusConnecting}

	m.mu.Lock()
	old := m.conns[id]
	m.conns[id] = rec
	m.mu.Unlock()

	if old != nil {
		m.teardown(old)
	}

	m.log.Info().Str("id", id).Str("url", url).Msg("Connecting stream")
	go m.establish(rec)
}

// Disconnect closes the connection for id, cancels any scheduled reconnect
// and forgets it.
func (m *Manager) Disconnect(id string) {
	m.mu.Lock()
	rec, ok := m.conns[id]
	if ok {
		delete(m.conns, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.teardown(rec)
	m.log.Info().Str("id", id).Msg("Stream disconnected")
	if rec.cb.OnStatus != nil {
		rec.cb.OnStatus(StatusDisconnected)
	}
}

// DisconnectAll closes every connection.
func (m *Manager) DisconnectAll() {
	for _, id := range m.IDs() {
		m.Disconnect(id)
	}
}

// teardown releases the resources of a record already removed from the table.
func (m *Manager) teardown(rec *connection) {
	m.mu.Lock()
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
	if rec.cancel != nil {
		rec.cancel()
		rec.cancel = nil
	}
	conn := rec.conn
	rec.conn = nil
	rec.status = StatusDisconnected
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Status returns the state of id.
func (m *Manager) Status(id string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.conns[id]
	if !ok {
		return "", false
	}
	return rec.status, true
}

// IDs returns the ids with a connection record, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of connection records.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Send writes data to id. Strings and byte slices are sent verbatim, other
// values as JSON. It fails with ErrNotConnected unless the connection is open.
func (m *Manager) Send(ctx context.Context, id string, data any) error {
	m.mu.Lock()
	rec, ok := m.conns[id]
	var conn Conn
	if ok && rec.status == StatusConnected {
		conn = rec.conn
	}
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	var payload []byte
	switch v := data.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		payload = b
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// current reports whether rec is still the live record for its id.
// Callers must hold m.mu.
func (m *Manager) currentLocked(rec *connection) bool {
	return m.conns[rec.id] == rec
}

func (m *Manager) setStatus(rec *connection, s Status) bool {
	m.mu.Lock()
	if !m.currentLocked(rec) {
		m.mu.Unlock()
		return false
	}
	rec.status = s
	m.mu.Unlock()

	if rec.cb.OnStatus != nil {
		rec.cb.OnStatus(s)
	}
	return true
}

// establish dials once and, on success, runs the read loop until the
// connection ends.
func (m *Manager) establish(rec *connection) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if !m.currentLocked(rec) {
		m.mu.Unlock()
		cancel()
		return
	}
	rec.cancel = cancel
	rec.timer = nil
	m.mu.Unlock()

	if !m.setStatus(rec, StatusConnecting) {
		return
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := m.dial(dialCtx, rec.url)
	dialCancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.log.Warn().Err(err).Str("id", rec.id).Msg("Stream dial failed")
		m.fail(rec, err)
		m.closed(rec)
		return
	}

	m.mu.Lock()
	if !m.currentLocked(rec) || ctx.Err() != nil {
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	rec.conn = conn
	rec.attempts = 0
	m.mu.Unlock()

	m.log.Info().Str("id", rec.id).Msg("Stream connected")
	m.setStatus(rec, StatusConnected)

	m.readMessages(ctx, rec, conn)
}

func (m *Manager) readMessages(ctx context.Context, rec *connection, conn Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Intentional disconnect
				return
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				m.log.Info().Str("id", rec.id).Int("status", int(status)).Msg("Stream closed by peer")
			} else {
				m.log.Warn().Err(err).Str("id", rec.id).Msg("Stream read error")
				m.fail(rec, err)
			}
			m.closed(rec)
			return
		}

		m.mu.Lock()
		live := m.currentLocked(rec)
		m.mu.Unlock()
		if !live {
			return
		}

		if rec.cb.OnMessage != nil {
			rec.cb.OnMessage(decodeMessage(typ, data))
		}
	}
}

func (m *Manager) fail(rec *connection, err error) {
	if !m.setStatus(rec, StatusError) {
		return
	}
	if rec.cb.OnError != nil {
		rec.cb.OnError(err)
	}
}

// closed marks rec disconnected and schedules a reconnect while attempts remain.
func (m *Manager) closed(rec *connection) {
	m.mu.Lock()
	if !m.currentLocked(rec) {
		m.mu.Unlock()
		return
	}
	if rec.cancel != nil {
		rec.cancel()
		rec.cancel = nil
	}
	conn := rec.conn
	rec.conn = nil
	rec.status = StatusDisconnected

	retry := rec.attempts < m.maxAttempts
	if retry {
		rec.attempts++
	}
	attempt := rec.attempts
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}

	if retry {
		// The timer is created unlocked: a mock clock may fire other due
		// timers inline, and those take m.mu.
		timer := m.clock.AfterFunc(m.delay, func() {
			m.mu.Lock()
			live := m.currentLocked(rec)
			m.mu.Unlock()
			if live {
				go m.establish(rec)
			}
		})

		m.mu.Lock()
		if m.currentLocked(rec) {
			rec.timer = timer
		} else {
			timer.Stop()
		}
		m.mu.Unlock()

		m.log.Info().
			Str("id", rec.id).
			Int("attempt", attempt).
			Dur("delay", m.delay).
			Msg("Stream reconnect scheduled")
	} else {
		m.log.Warn().Str("id", rec.id).Int("attempts", attempt).Msg("Stream reconnect attempts exhausted")
	}

	if rec.cb.OnStatus != nil {
		rec.cb.OnStatus(StatusDisconnected)
	}
}

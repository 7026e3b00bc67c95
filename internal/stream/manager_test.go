package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

type recorder struct {
	mu       sync.Mutex
	statuses []Status
	errs     int
	messages chan Message
}

func newRecorder() *recorder {
	return &recorder{messages: make(chan Message, 16)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnMessage: func(m Message) { r.messages <- m },
		OnStatus: func(s Status) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
		},
		OnError: func(error) {
			r.mu.Lock()
			r.errs++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) count(s Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.statuses {
		if got == s {
			n++
		}
	}
	return n
}

func (r *recorder) next(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-r.messages:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

type failingDialer struct {
	dials int32
}

func (d *failingDialer) dial(ctx context.Context, url string) (Conn, error) {
	atomic.AddInt32(&d.dials, 1)
	return nil, errors.New("connection refused")
}

func (d *failingDialer) count() int {
	return int(atomic.LoadInt32(&d.dials))
}

// newServer starts a WebSocket server that runs handle for every connection.
func newServer(t *testing.T, handle func(ctx context.Context, c *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusInternalError, "")
		handle(r.Context(), c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func drain(ctx context.Context, c *websocket.Conn) {
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

func TestManager_DeliversDecodedMessages(t *testing.T) {
	packed, err := msgpack.Marshal(map[string]any{"symbol": "BTC", "price": 50000})
	require.NoError(t, err)

	url := newServer(t, func(ctx context.Context, c *websocket.Conn) {
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"p":"42.5","s":"BTCUSDT"}`))
		_ = c.Write(ctx, websocket.MessageText, []byte("heartbeat"))
		_ = c.Write(ctx, websocket.MessageBinary, packed)
		_ = c.Write(ctx, websocket.MessageBinary, []byte{0xc1})
		drain(ctx, c)
	})

	m := NewManager(zerolog.Nop())
	defer m.DisconnectAll()

	rec := newRecorder()
	m.Connect("ticker", url, rec.callbacks())

	msg := rec.next(t)
	require.True(t, msg.Parsed)
	price, ok := msg.Data.Get("p")
	require.True(t, ok)
	assert.Equal(t, "42.5", price.String())

	msg = rec.next(t)
	assert.False(t, msg.Parsed)
	assert.Equal(t, "heartbeat", msg.Data.String())

	msg = rec.next(t)
	require.True(t, msg.Parsed)
	assert.True(t, msg.Binary)
	price, ok = msg.Data.Get("price")
	require.True(t, ok)
	n, _ := price.Number()
	assert.Equal(t, 50000.0, n)

	msg = rec.next(t)
	assert.True(t, msg.Binary)
	assert.False(t, msg.Parsed)
	assert.True(t, msg.Data.IsNull())
	assert.Equal(t, []byte{0xc1}, msg.Raw)

	s, ok := m.Status("ticker")
	require.True(t, ok)
	assert.Equal(t, StatusConnected, s)
	assert.Equal(t, 1, rec.count(StatusConnected))
}

func TestManager_Send(t *testing.T) {
	url := newServer(t, func(ctx context.Context, c *websocket.Conn) {
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if err := c.Write(ctx, typ, data); err != nil {
				return
			}
		}
	})

	m := NewManager(zerolog.Nop())
	defer m.DisconnectAll()

	err := m.Send(context.Background(), "echo", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)

	rec := newRecorder()
	m.Connect("echo", url, rec.callbacks())
	require.Eventually(t, func() bool {
		s, _ := m.Status("echo")
		return s == StatusConnected
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Send(context.Background(), "echo", map[string]any{"type": "subscribe", "symbols": []string{"BTC"}}))
	msg := rec.next(t)
	assert.Equal(t, `{"symbols":["BTC"],"type":"subscribe"}`, msg.Data.String())

	require.NoError(t, m.Send(context.Background(), "echo", "ping"))
	msg = rec.next(t)
	assert.Equal(t, "ping", msg.Data.String())
}

func TestManager_ReconnectCeiling(t *testing.T) {
	mock := clock.NewMock()
	d := &failingDialer{}
	m := NewManager(zerolog.Nop(), WithDialer(d.dial), WithClock(mock))

	rec := newRecorder()
	m.Connect("feed", "wss://stream.example.com/ws", rec.callbacks())

	require.Eventually(t, func() bool { return rec.count(StatusDisconnected) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, d.count())

	for i := 1; i <= MaxReconnectAttempts; i++ {
		mock.Add(ReconnectDelay)
		want := i + 1
		require.Eventually(t, func() bool {
			return d.count() == want && rec.count(StatusDisconnected) == want
		}, time.Second, time.Millisecond, "reconnect %d", i)
	}

	// Attempts are exhausted: no further timer is armed.
	mock.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1+MaxReconnectAttempts, d.count())

	s, ok := m.Status("feed")
	require.True(t, ok)
	assert.Equal(t, StatusDisconnected, s)
	assert.Equal(t, 1+MaxReconnectAttempts, rec.count(StatusError))
}

func TestManager_DisconnectCancelsReconnect(t *testing.T) {
	mock := clock.NewMock()
	d := &failingDialer{}
	m := NewManager(zerolog.Nop(), WithDialer(d.dial), WithClock(mock))

	rec := newRecorder()
	m.Connect("feed", "wss://stream.example.com/ws", rec.callbacks())
	require.Eventually(t, func() bool { return rec.count(StatusDisconnected) == 1 }, time.Second, time.Millisecond)

	m.Disconnect("feed")
	assert.Equal(t, 2, rec.count(StatusDisconnected))
	assert.Equal(t, 0, m.Count())

	mock.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, d.count())

	_, ok := m.Status("feed")
	assert.False(t, ok)

	// Unknown ids are ignored.
	m.Disconnect("feed")
	assert.Equal(t, 2, rec.count(StatusDisconnected))
}

func TestManager_ConnectReplacesExisting(t *testing.T) {
	var closed int32
	url := newServer(t, func(ctx context.Context, c *websocket.Conn) {
		drain(ctx, c)
		atomic.AddInt32(&closed, 1)
	})

	m := NewManager(zerolog.Nop())
	defer m.DisconnectAll()

	first := newRecorder()
	m.Connect("w1", url, first.callbacks())
	require.Eventually(t, func() bool { return first.count(StatusConnected) == 1 }, 2*time.Second, 5*time.Millisecond)

	second := newRecorder()
	m.Connect("w1", url, second.callbacks())
	require.Eventually(t, func() bool { return second.count(StatusConnected) == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, m.Count())
	assert.Equal(t, []string{"w1"}, m.IDs())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&closed) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, first.count(StatusDisconnected), "a replaced connection reports nothing further")
}

func TestManager_PeerCloseTriggersReconnect(t *testing.T) {
	var accepted int32
	url := newServer(t, func(ctx context.Context, c *websocket.Conn) {
		if atomic.AddInt32(&accepted, 1) == 1 {
			_ = c.Close(websocket.StatusGoingAway, "restart")
			return
		}
		drain(ctx, c)
	})

	m := NewManager(zerolog.Nop(), WithReconnectPolicy(MaxReconnectAttempts, 10*time.Millisecond))
	defer m.DisconnectAll()

	rec := newRecorder()
	m.Connect("feed", url, rec.callbacks())

	require.Eventually(t, func() bool { return rec.count(StatusConnected) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.count(StatusDisconnected))
	assert.Equal(t, 0, rec.count(StatusError), "a going-away close is not an error")
}

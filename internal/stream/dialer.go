package stream

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// Frames larger than this close the connection.
const readLimit = 1 << 20

// createHTTP1Client forces HTTP/1.1. Some providers sit behind proxies that
// negotiate HTTP/2, which cannot carry a WebSocket upgrade.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// NewDialer returns a DialFunc that uses httpClient for the handshake.
// A nil client uses an HTTP/1.1-only client.
func NewDialer(httpClient *http.Client) DialFunc {
	if httpClient == nil {
		httpClient = createHTTP1Client()
	}
	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(readLimit)
		return conn, nil
	}
}

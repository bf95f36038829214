package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DialSettings controls how a client connects to the relay.
type DialSettings struct {
	HandshakeTimeout time.Duration
	// MaxMessageBytes bounds inbound frames. It leaves room above the
	// outbound action budget for fields the relay adds.
	MaxMessageBytes int64
}

// DefaultDialSettings returns the settings used when none are given.
func DefaultDialSettings() *DialSettings {
	return &DialSettings{
		HandshakeTimeout: 5 * time.Second,
		MaxMessageBytes:  2 * DefaultMaxMessageBytes,
	}
}

// Dial connects to a relay board channel at url and returns a client whose
// read loop has not started yet; call Run to start it.
func Dial(ctx context.Context, url, userID string, header http.Header, settings *DialSettings) (*Client, error) {
	if settings == nil {
		settings = DefaultDialSettings()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: settings.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	conn.SetReadLimit(settings.MaxMessageBytes)

	return NewClient(uuid.NewString(), userID, conn), nil
}

package tabsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"
)

// Subscribe opens the push stream at baseURL ("http://host:port") and
// returns a channel of pushes. The channel closes when the connection ends
// or ctx is cancelled.
func Subscribe(ctx context.Context, baseURL, token string) (<-chan Message, error) {
	origin := strings.TrimRight(baseURL, "/")
	wsURL := "ws" + strings.TrimPrefix(origin, "http") + "/ws"

	cfg, err := websocket.NewConfig(wsURL, origin)
	if err != nil {
		return nil, fmt.Errorf("building websocket config: %w", err)
	}
	cfg.Header = http.Header{}
	if token != "" {
		cfg.Header.Set("Authorization", "Bearer "+token)
	}

	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", wsURL, err)
	}

	out := make(chan Message, sendBuffer)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var msg Message
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					slog.Default().Debug("push stream ended", "error", err)
				}
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

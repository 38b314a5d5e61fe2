package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// Listener holds a dedicated connection subscribed to one NOTIFY
// channel. Notifications are delivered per connection, so it cannot
// share the pool: a pooled connection may be handed to someone else
// between LISTEN and the notification.
type Listener struct {
	url     string
	channel string
	conn    *pgx.Conn
}

func NewListener(url, channel string) *Listener {
	return &Listener{url: url, channel: channel}
}

// Wait blocks until a notification arrives or timeout passes. An idle
// timeout returns ok=false with no error. On a connection error the
// connection is dropped and redialled on the next call.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error) {
	if err := l.ensure(ctx); err != nil {
		return "", false, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	notification, err := l.conn.WaitForNotification(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", false, nil
		}
		l.drop(ctx)
		return "", false, err
	}
	return notification.Payload, true, nil
}

// Close releases the connection.
func (l *Listener) Close(ctx context.Context) {
	l.drop(ctx)
}

func (l *Listener) ensure(ctx context.Context) error {
	if l.conn != nil && !l.conn.IsClosed() {
		return nil
	}
	conn, err := pgx.Connect(ctx, l.url)
	if err != nil {
		return fmt.Errorf("connecting listener: %w", err)
	}
	// the channel name is an identifier, not a bind parameter
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("listening on %q: %w", l.channel, err)
	}
	slog.DebugContext(ctx, "listener established", "channel", l.channel)
	l.conn = conn
	return nil
}

func (l *Listener) drop(ctx context.Context) {
	if l.conn == nil {
		return
	}
	if err := l.conn.Close(ctx); err != nil {
		slog.WarnContext(ctx, "closing listener connection", "error", err)
	}
	l.conn = nil
}

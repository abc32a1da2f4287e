// Package notify delivers best-effort notifications after committed state
// transitions. Delivery failures are reported to the caller, which logs them;
// they never undo a ledger change.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"tradedesk-ledger/internal/domain"
)

// SubjectPrefix is prepended to the notification kind to form the NATS subject.
const SubjectPrefix = "ledger.notifications"

// Notifier publishes a notification.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// NATSNotifier publishes JSON notifications on ledger.notifications.<kind>.
type NATSNotifier struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSNotifier connects to url. The connection reconnects on its own;
// publishes made while disconnected are buffered by the client.
func NewNATSNotifier(url string, logger *slog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("tradedesk-ledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSNotifier{conn: conn, logger: logger}, nil
}

// Subject returns the subject a notification of kind is published on.
func Subject(kind domain.NotificationKind) string {
	return SubjectPrefix + "." + string(kind)
}

// Notify publishes n. The context is checked before publishing only; core
// NATS publishes do not block on the server.
func (p *NATSNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.conn.Publish(Subject(n.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", Subject(n.Kind), err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (p *NATSNotifier) Close() error {
	return p.conn.Drain()
}

// LogNotifier writes notifications to the structured log. It is used when no
// broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n at info level.
func (l *LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	l.logger.Info("notification",
		"kind", n.Kind, "user_id", n.UserID, "reference_id", n.ReferenceID, "message", n.Message)
	return nil
}

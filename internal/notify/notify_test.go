// internal/notify/notify_test.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk-ledger/internal/domain"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "ledger.notifications.signal_settled", Subject(domain.NotifySignalSettled))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))
	user, ref := uuid.New(), uuid.New()

	require.NoError(t, n.Notify(context.Background(), domain.NewNotification(domain.NotifyDepositApproved, user, ref, "approved")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "notification", line["msg"])
	assert.Equal(t, "deposit_approved", line["kind"])
	assert.Equal(t, user.String(), line["user_id"])
	assert.Equal(t, ref.String(), line["reference_id"])
}

func TestNewNATSNotifierUnreachable(t *testing.T) {
	_, err := NewNATSNotifier("nats://127.0.0.1:1", slog.Default())
	assert.Error(t, err)
}

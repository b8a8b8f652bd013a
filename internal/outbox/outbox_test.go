package outbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/storage/inmemory"
)

func newTestPublisher(t *testing.T) (*Publisher, *inmemory.Inmemory, *mocks.SyncProducer) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := inmemory.New(log)

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	publisher := NewWithProducer(log, store, producer, ConnectOptions{Topic: "session-events"})
	return publisher, store, producer
}

func TestPublishPending(t *testing.T) {
	publisher, store, producer := newTestPublisher(t)

	event := domain.SessionEvent{
		Type:       domain.EventLogin,
		SessionID:  uuid.New(),
		SubjectID:  42,
		OccurredAt: time.Unix(1700000000, 0),
	}
	require.NoError(t, store.CreateSessionEvent(context.Background(), event))

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		body, err := msg.Value.Encode()
		if err != nil {
			return err
		}

		var published struct {
			Type       string `json:"type"`
			SessionID  string `json:"session_id"`
			SubjectID  int64  `json:"subject_id"`
			OccurredAt int64  `json:"occurred_at"`
		}
		if err := json.Unmarshal(body, &published); err != nil {
			return err
		}

		assert.Equal(t, "session-events", msg.Topic)
		assert.Equal(t, domain.EventLogin, published.Type)
		assert.Equal(t, event.SessionID.String(), published.SessionID)
		assert.Equal(t, int64(42), published.SubjectID)
		assert.Equal(t, int64(1700000000), published.OccurredAt)
		return nil
	})

	require.NoError(t, publisher.publishPending(context.Background()))

	// Confirmed events leave the outbox.
	_, err := store.GetNextSessionEvent(context.Background())
	assert.Error(t, err)
}

func TestPublishPendingEmptyOutbox(t *testing.T) {
	publisher, _, _ := newTestPublisher(t)

	assert.NoError(t, publisher.publishPending(context.Background()))
}

func TestPublishPendingBrokerError(t *testing.T) {
	publisher, store, producer := newTestPublisher(t)

	event := domain.SessionEvent{Type: domain.EventLogout, SessionID: uuid.New(), SubjectID: 1, OccurredAt: time.Unix(1, 0)}
	require.NoError(t, store.CreateSessionEvent(context.Background(), event))

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	require.Error(t, publisher.publishPending(context.Background()))

	// Unacknowledged events stay queued for the next tick.
	pending, err := store.GetNextSessionEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EventLogout, pending.Type)
}

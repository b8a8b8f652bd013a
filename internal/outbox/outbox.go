package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
	"github.com/oof2win2/library-review-site/internal/storage"
)

// EventsProvider is the outbox side of the session store: unsent audit
// events in insertion order, confirmed one by one after publishing.
type EventsProvider interface {
	GetNextSessionEvent(ctx context.Context) (*domain.SessionEvent, error)
	ConfirmSessionEventSent(ctx context.Context, eventID int64) error
}

type Publisher struct {
	log      *slog.Logger
	producer sarama.SyncProducer
	events   EventsProvider
	topic    string
	interval time.Duration
	done     chan struct{}
}

var (
	ErrNoConnection = errors.New("can't establish connection to kafka")
)

type ConnectOptions struct {
	Brokers  []string
	Topic    string
	Interval time.Duration
}

func New(log *slog.Logger, events EventsProvider, opt ConnectOptions) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(opt.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("can't connect to Kafka: %w", ErrNoConnection)
	}

	return NewWithProducer(log, events, producer, opt), nil
}

func NewWithProducer(log *slog.Logger, events EventsProvider, producer sarama.SyncProducer, opt ConnectOptions) *Publisher {
	interval := opt.Interval
	if interval <= 0 {
		interval = time.Second
	}

	return &Publisher{
		log:      log,
		producer: producer,
		events:   events,
		topic:    opt.Topic,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// ServePublish drains the outbox in the background until Stop is called.
// An event is confirmed only after the broker acknowledged it, so a crash
// between publish and confirm re-sends rather than loses (at-least-once).
func (p *Publisher) ServePublish() {
	go func() {
		const op = "outbox.ServePublish"
		log := p.log.With(slog.String("op", op))

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				if err := p.publishPending(context.Background()); err != nil {
					log.Warn("failed to publish outbox events", sl.Err(err))
				}
			}
		}
	}()
}

func (p *Publisher) publishPending(ctx context.Context) error {
	for {
		event, err := p.events.GetNextSessionEvent(ctx)
		if errors.Is(err, storage.ErrNoOutboxEvents) {
			return nil
		}
		if err != nil {
			return err
		}

		body, err := json.Marshal(map[string]any{
			"type":        event.Type,
			"session_id":  event.SessionID.String(),
			"subject_id":  event.SubjectID,
			"occurred_at": event.OccurredAt.Unix(),
		})
		if err != nil {
			return err
		}

		_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(event.SessionID.String()),
			Value: sarama.ByteEncoder(body),
		})
		if err != nil {
			return err
		}

		if err := p.events.ConfirmSessionEventSent(ctx, event.ID); err != nil {
			return err
		}
	}
}

func (p *Publisher) Stop() {
	const op = "outbox.Stop"
	log := p.log.With(slog.String("op", op))

	close(p.done)
	if err := p.producer.Close(); err != nil {
		log.Error("error during close kafka producer", sl.Err(err))
	}
}

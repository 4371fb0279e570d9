package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher mirrors committed audit entries to an external sink. The store
// remains the source of truth; mirroring is best-effort.
type Publisher interface {
	Emit(ctx context.Context, entry Entry)
	Close()
}

// KafkaMirror streams every committed audit entry to a Kafka topic so
// downstream consumers (SIEM, compliance archive) get the change feed without
// polling the database. Produce failures are logged, never propagated: the
// entry is already durable in the store.
type KafkaMirror struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaMirror connects to the brokers and ensures the topic exists.
func NewKafkaMirror(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaMirror, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, -1, -1, nil, topic); err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %q: %w", topic, err)
	}

	return &KafkaMirror{client: client, topic: topic, logger: logger}, nil
}

// Emit produces the entry asynchronously, keyed by event so one event's
// changes stay ordered within a partition.
func (m *KafkaMirror) Emit(ctx context.Context, entry Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		m.logger.Error("marshal audit entry for mirror", "error", err, "entry_id", entry.ID)
		return
	}
	record := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(entry.EventID),
		Value: payload,
	}
	m.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			m.logger.Error("mirror audit entry", "error", err, "entry_id", entry.ID)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (m *KafkaMirror) Close() {
	_ = m.client.Flush(context.Background())
	m.client.Close()
}

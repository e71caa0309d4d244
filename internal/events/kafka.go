// Package events publishes catalog change events to Kafka.
//
// Messages use the envelope the realtime fan-out consumers decode:
// entity, action, resourceId, topic, metadata and data.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JonMunkholm/menusync/internal/config"
	"github.com/JonMunkholm/menusync/internal/core"
)

const (
	entityMenus  = "menus"
	actionSynced = "synced"
)

// envelope is the JSON body of every published message.
type envelope struct {
	Entity     string            `json:"entity"`
	Action     string            `json:"action"`
	ResourceID string            `json:"resourceId"`
	Topic      string            `json:"topic"`
	Metadata   map[string]string `json:"metadata"`
	Data       core.ChangeEvent  `json:"data"`
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements core.Publisher on a kafka-go Writer.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

var _ core.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for the brokers and topic in cfg.
// Messages are keyed by batch id.
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           cfg.WriteTimeout,
	}
	return &KafkaPublisher{writer: w, topic: cfg.Topic, timeout: cfg.WriteTimeout}
}

// PublishChange writes one message for ev.
func (p *KafkaPublisher) PublishChange(ctx context.Context, ev core.ChangeEvent) error {
	msg, err := encode(p.topic, ev)
	if err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}

	slog.Debug("change event published",
		slog.String("topic", p.topic),
		slog.String("batch_id", ev.BatchID),
		slog.Int("restaurants", len(ev.RestaurantIDs)),
	)
	return nil
}

// Close flushes pending writes and closes broker connections.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(topic string, ev core.ChangeEvent) (kafka.Message, error) {
	body, err := json.Marshal(envelope{
		Entity:     entityMenus,
		Action:     actionSynced,
		ResourceID: ev.BatchID,
		Topic:      topic,
		Metadata: map[string]string{
			"restaurant_ids": joinIDs(ev.RestaurantIDs),
			"menu_ids":       joinIDs(ev.MenuIDs),
		},
		Data: ev,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode change event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(ev.BatchID),
		Value: body,
		Time:  ev.OccurredAt,
	}, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// New returns the publisher for cfg: Kafka when brokers are configured,
// otherwise a publisher that drops events. The returned close func is
// never nil.
func New(cfg config.EventsConfig) (core.Publisher, func() error) {
	if !cfg.Enabled() {
		return core.NopPublisher{}, func() error { return nil }
	}
	p := NewKafkaPublisher(cfg)
	return p, p.Close
}

// Package events publishes interview domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "interview.events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Recorder counts publish attempts. *metrics.Metrics satisfies it.
type Recorder interface {
	EventPublished(eventType string, ok bool)
}

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Principal string
}

// Publisher writes events keyed by session id to a single topic. Without brokers it only logs.
type Publisher struct {
	writer    messageWriter
	topic     string
	principal string
	metrics   Recorder
	logger    *zap.Logger
}

// New creates a publisher. rec may be nil.
func New(cfg *Config, rec Recorder, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Publisher{topic: DefaultTopic, metrics: rec, logger: log}

	if cfg == nil {
		log.Info("kafka disabled, events are logged only")
		return p
	}
	if cfg.Topic != "" {
		p.topic = cfg.Topic
	}
	p.principal = cfg.Principal

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info("kafka disabled, events are logged only", zap.String("topic", p.topic))
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        p.topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info("kafka publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", p.topic),
		zap.String("principal", p.principal),
	)
	return p
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Publish writes one event. Messages are keyed by session id so a session's events stay ordered
// within a partition.
func (p *Publisher) Publish(ctx context.Context, event interview.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	log := logger.WithFields(p.logger, logger.SessionFields(event.SessionID, event.Step)...)
	log.Debug("publishing event",
		zap.String("type", string(event.Type)),
		zap.String("topic", p.topic),
		zap.ByteString("payload", payload),
	)

	if p.writer == nil {
		p.record(event.Type, true)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(event.Type)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.record(event.Type, false)
		return fmt.Errorf("write event to kafka: %w", err)
	}

	p.record(event.Type, true)
	return nil
}

func (p *Publisher) record(eventType interview.EventType, ok bool) {
	if p.metrics != nil {
		p.metrics.EventPublished(string(eventType), ok)
	}
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("closing kafka writer", zap.Error(err))
		return err
	}
	return nil
}

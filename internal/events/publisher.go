// Package events provides event publishing functionality.
package events

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/schema"
)

// Publisher publishes turn events to separate Kafka topics.
type Publisher struct {
	writerCompleted *kafka.Writer
	writerFailed    *kafka.Writer
	principal       string
	topicCompleted  string
	topicFailed     string
	enabled         bool
	validator       *schema.Validator
	log             zerolog.Logger
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicCompleted string
	TopicFailed    string
	Principal      string
	Enabled        bool
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// New creates a new Kafka event publisher with separate topics for
// completed and failed turns.
func New(cfg *Config) *Publisher {
	// Handle nil config case
	if cfg == nil {
		return &Publisher{
			enabled:   false,
			validator: schema.New(),
			log:       zerolog.Nop(),
		}
	}

	m := cfg.Metrics
	logger := cfg.Logger.With().Str("component", "events").Logger()

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicCompleted: cfg.TopicCompleted,
			topicFailed:    cfg.TopicFailed,
			enabled:        false,
			validator:      schema.New(),
			log:            logger,
			metrics:        m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCompleted", cfg.TopicCompleted).
		Str("topicFailed", cfg.TopicFailed).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerCompleted: newWriter(cfg.TopicCompleted),
		writerFailed:    newWriter(cfg.TopicFailed),
		principal:       cfg.Principal,
		topicCompleted:  cfg.TopicCompleted,
		topicFailed:     cfg.TopicFailed,
		enabled:         true,
		validator:       schema.New(),
		log:             logger,
		metrics:         m,
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishTurnCompleted publishes a completed turn, keyed by session so a
// session's turns stay ordered within one partition.
func (p *Publisher) PublishTurnCompleted(ctx context.Context, evt models.TurnCompleted) error {
	if err := p.validator.Validate(evt); err != nil {
		p.log.Error().Err(err).Str("turnId", evt.TurnID).Msg("Dropping invalid event")
		return err
	}
	return p.publish(ctx, p.writerCompleted, p.topicCompleted, evt.EventType, evt.SessionID, evt)
}

// PublishTurnFailed publishes an errored turn.
func (p *Publisher) PublishTurnFailed(ctx context.Context, evt models.TurnFailed) error {
	if err := p.validator.Validate(evt); err != nil {
		p.log.Error().Err(err).Str("turnId", evt.TurnID).Msg("Dropping invalid event")
		return err
	}
	return p.publish(ctx, p.writerFailed, p.topicFailed, evt.EventType, evt.SessionID, evt)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := sonic.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	p.log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.record(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.record(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.record(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerCompleted != nil {
		if e := p.writerCompleted.Close(); e != nil {
			p.log.Error().Err(e).Msg("Error closing completed writer")
			err = e
		}
	}
	if p.writerFailed != nil {
		if e := p.writerFailed.Close(); e != nil {
			p.log.Error().Err(e).Msg("Error closing failed writer")
			err = e
		}
	}
	return err
}

func (p *Publisher) record(topic, eventType string, err error, seconds float64) {
	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, eventType, err, seconds)
	}
}

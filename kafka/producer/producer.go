package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/kafka"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/resilience"
)

// Writer is the subset of *kafkago.Writer the producer drives.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.WriterStats
	Close() error
}

// Producer wraps a kafka-go Writer with TLS/SASL, retries, and structured logging.
type Producer struct {
	writer Writer
	cfg    kafka.Config
	log    *logger.Logger
	mu     sync.RWMutex
	closed bool
}

// NewProducer creates a new Kafka producer with eager initialization.
func NewProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	p, err := NewLazyProducer(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := p.initWriter(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewLazyProducer creates a Producer that initializes the underlying writer
// on first use (thread-safe). Kafka need not be reachable at startup.
func NewLazyProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Producer{cfg: cfg, log: log.WithComponent("kafka.producer")}, nil
}

// NewWithWriter creates a Producer around an existing writer.
func NewWithWriter(cfg kafka.Config, w Writer, log *logger.Logger) (*Producer, error) {
	p, err := NewLazyProducer(cfg, log)
	if err != nil {
		return nil, err
	}
	p.writer = w
	return p, nil
}

// initWriter creates the underlying kafka.Writer (idempotent, thread-safe).
func (p *Producer) initWriter() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		return nil
	}

	transport, err := kafka.CreateTransport(&p.cfg)
	if err != nil {
		return fmt.Errorf("kafka producer transport: %w", err)
	}

	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(p.cfg.Brokers...),
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchSize:    p.cfg.BatchSize,
		BatchTimeout: p.cfg.BatchTimeout,
		RequiredAcks: kafkago.RequiredAcks(p.cfg.RequiredAcks),
		Compression:  kafka.ResolveCompression(p.cfg.Compression),
		WriteTimeout: p.cfg.WriteTimeout,
		// Retries are driven by WriteMessages.
		MaxAttempts: 1,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error("writer: "+msg, map[string]interface{}{
				"args": fmt.Sprintf("%v", args),
			})
		}),
	}

	p.log.Info("Kafka producer initialized", map[string]interface{}{
		"brokers":     p.cfg.Brokers,
		"topic":       p.cfg.Topic,
		"compression": p.cfg.Compression,
	})

	return nil
}

func (p *Producer) ensureWriter() error {
	p.mu.RLock()
	if p.writer != nil {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()
	return p.initWriter()
}

// Topic returns the default topic.
func (p *Producer) Topic() string { return p.cfg.Topic }

// WriteMessages sends one or more messages to Kafka, retrying transient
// broker errors. Messages without a topic go to the configured topic.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if err := p.ensureWriter(); err != nil {
		return err
	}

	p.mu.RLock()
	closed, w := p.closed, p.writer
	p.mu.RUnlock()
	if closed {
		return apperrors.ServiceUnavailable("kafka producer")
	}

	for i := range msgs {
		if msgs[i].Topic == "" {
			msgs[i].Topic = p.cfg.Topic
		}
	}

	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
		MaxAttempts: p.cfg.Retries,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Exponential: true,
		RetryIf:     kafka.IsRetryableError,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			p.log.Warn("Kafka write failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   err.Error(),
			})
		},
	}, func(ctx context.Context, _ int) error {
		return w.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return kafka.FromKafka(err, msgs[0].Topic)
	}
	return nil
}

// Stats returns writer statistics.
func (p *Producer) Stats() kafkago.WriterStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.writer != nil {
		return p.writer.Stats()
	}
	return kafkago.WriterStats{}
}

// Close shuts down the producer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("Kafka producer closing")
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// SendJSON marshals value as JSON and sends it to the default topic with the given key.
func (p *Producer) SendJSON(ctx context.Context, key string, value interface{}, headers ...kafkago.Header) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	msg := kafkago.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: append([]kafkago.Header{{Key: "content-type", Value: []byte("application/json")}}, headers...),
	}
	return p.WriteMessages(ctx, msg)
}

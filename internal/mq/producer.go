// Package mq bridges competition events onto Kafka for external consumers
// such as scoreboards and analytics.
package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"arbiter/internal/events"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

// Config holds Kafka producer settings.
type Config struct {
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	QueueSize int      `yaml:"queue_size"`
}

const defaultQueueSize = 256

// Producer publishes events to a Kafka topic, keyed by submission ID so one
// submission's events stay ordered within a partition. Events queue in an
// internal buffer so a slow broker never stalls the event dispatcher.
type Producer struct {
	writer  *kafka.Writer
	publish func(ctx context.Context, ev events.Event) error

	queue chan events.Event
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, appErr.ValidationError("brokers", "required")
	}
	if cfg.Topic == "" {
		return nil, appErr.ValidationError("topic", "required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	p := newBufferedProducer(nil, cfg.QueueSize)
	p.writer = writer
	p.publish = p.publishKafka
	return p, nil
}

// newBufferedProducer wires the queue around an injectable publish func.
func newBufferedProducer(publish func(ctx context.Context, ev events.Event) error, queueSize int) *Producer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &Producer{
		publish: publish,
		queue:   make(chan events.Event, queueSize),
		done:    make(chan struct{}),
	}
	go p.drain()
	return p
}

// HandleEvent implements events.Handler. It never blocks: when the internal
// queue is full the event is dropped and logged.
func (p *Producer) HandleEvent(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		logger.Warn(context.Background(), "kafka queue full, dropping event",
			zap.String("kind", string(ev.Kind)))
	}
}

func (p *Producer) drain() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.publish(ctx, ev); err != nil {
			logger.Warn(ctx, "publish event to kafka failed",
				zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
		cancel()
	}
}

func (p *Producer) publishKafka(ctx context.Context, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "marshal event failed")
	}
	key := []byte(ev.Submission)
	if len(key) == 0 {
		key = []byte(ev.Kind)
	}
	msg := kafka.Message{Key: key, Value: data}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "write kafka message failed")
	}
	return nil
}

// Close drains queued events, then closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done

	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

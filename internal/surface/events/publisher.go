// Package events publishes overlay show/hide transitions to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/observability"
)

type Op string

const (
	OpShow Op = "show"
	OpHide Op = "hide"
)

type Event struct {
	Site        string    `json:"site"`
	Op          Op        `json:"op"`
	OverlayID   string    `json:"overlay_id"`
	Kind        string    `json:"kind,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	TS          time.Time `json:"ts"`
}

// Publisher feeds events to an async producer from a bounded queue. Publish
// never blocks; events are dropped when the queue is full.
type Publisher struct {
	topic    string
	events   chan Event
	prod     sarama.AsyncProducer
	logger   *slog.Logger
	stopped  chan struct{}
	errsDone chan struct{}

	// guards events against a send after close
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return newPublisher(prod, topic, queueSize, logger), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:    topic,
		events:   make(chan Event, queueSize),
		prod:     prod,
		logger:   logger.With("component", "events"),
		stopped:  make(chan struct{}),
		errsDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("marshal event", "err", err, "overlay_id", ev.OverlayID)
				observability.IncSurfaceEvent(string(ev.Op), "error")
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic:    p.topic,
				Key:      sarama.StringEncoder(ev.OverlayID),
				Value:    sarama.ByteEncoder(b),
				Metadata: ev.Op,
			}
		}
	}()

	go func() {
		defer close(p.errsDone)
		for perr := range p.prod.Errors() {
			if perr == nil {
				continue
			}
			op := "unknown"
			if perr.Msg != nil {
				if o, ok := perr.Msg.Metadata.(Op); ok {
					op = string(o)
				}
			}
			observability.IncSurfaceEvent(op, "error")
			p.logger.Warn("producer error", "err", perr.Err, "op", op)
		}
	}()

	return p
}

// Publish enqueues ev and reports whether it was accepted. Events published
// after Close are dropped.
func (p *Publisher) Publish(ev Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncSurfaceEvent(string(ev.Op), "dropped")
		return false
	}
	select {
	case p.events <- ev:
		observability.IncSurfaceEvent(string(ev.Op), "queued")
		return true
	default:
		// queue full, never block the rebuild
		observability.IncSurfaceEvent(string(ev.Op), "dropped")
		return false
	}
}

// Close drains the queue and closes the producer. Later calls return the
// result of the first.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
		<-p.stopped

		err := p.prod.Close()
		<-p.errsDone
		if err != nil {
			p.closeErr = fmt.Errorf("events: close producer: %w", err)
		}
	})
	return p.closeErr
}

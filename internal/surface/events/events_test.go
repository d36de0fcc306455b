package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
	"github.com/mohammed-shakir/solar-site-layout/internal/geo/mercator"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface"
	"github.com/mohammed-shakir/solar-site-layout/internal/surface/memory"
)

func expectEvent(op Op, id string) mocks.MessageChecker {
	return func(m *sarama.ProducerMessage) error {
		if m.Topic != "site-overlays" {
			return fmt.Errorf("topic=%q", m.Topic)
		}
		k, err := m.Key.Encode()
		if err != nil || string(k) != id {
			return fmt.Errorf("key=%q err=%v want %q", k, err, id)
		}
		b, err := m.Value.Encode()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return err
		}
		if ev.Op != op || ev.OverlayID != id || ev.Site != "site-a" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		if ev.TS.IsZero() {
			return errors.New("missing timestamp")
		}
		return nil
	}
}

func overlay(id, fp string) surface.Overlay {
	return surface.Overlay{ID: id, Kind: surface.KindRoof, Fingerprint: fp}
}

func TestSurface_PublishesTransitionsInOrder(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(expectEvent(OpShow, "a"))
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(expectEvent(OpHide, "a"))
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(expectEvent(OpShow, "a"))

	pub := newPublisher(prod, "site-overlays", 16, nil)
	inner := memory.New()
	s := Wrap(inner, "site-a", pub, 0)
	ctx := context.Background()

	if err := s.Show(ctx, overlay("a", "f1")); err != nil {
		t.Fatalf("Show: %v", err)
	}
	// identical transition is not re-announced
	if err := s.Show(ctx, overlay("a", "f1")); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if err := s.Hide(ctx, "a"); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if err := s.Show(ctx, overlay("a", "f1")); err != nil {
		t.Fatalf("Show: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if inner.Len() != 1 {
		t.Fatalf("inner surface len=%d want 1", inner.Len())
	}
}

type failingSurface struct{ *memory.Surface }

func (failingSurface) Show(context.Context, surface.Overlay) error { return errors.New("down") }

func TestSurface_InnerFailurePublishesNothing(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	pub := newPublisher(prod, "site-overlays", 4, nil)
	s := Wrap(failingSurface{memory.New()}, "site-a", pub, 8)

	if err := s.Show(context.Background(), overlay("a", "f")); err == nil {
		t.Fatalf("expected inner error")
	}
	// the mock reports any unexpected input on close
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_ProducerErrorsAreDrained(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	prod.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	pub := newPublisher(prod, "site-overlays", 4, nil)
	if !pub.Publish(Event{Op: OpShow, OverlayID: "a", TS: time.Now()}) {
		t.Fatalf("expected event to be queued")
	}
	done := make(chan error, 1)
	go func() { done <- pub.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return")
	}
}

type stuckProducer struct {
	sarama.AsyncProducer
	input chan *sarama.ProducerMessage
	errs  chan *sarama.ProducerError
}

func (p *stuckProducer) Input() chan<- *sarama.ProducerMessage { return p.input }
func (p *stuckProducer) Errors() <-chan *sarama.ProducerError  { return p.errs }
func (p *stuckProducer) Close() error {
	close(p.errs)
	return nil
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	// unbuffered input nobody reads: the worker holds one event, the queue one more
	prod := &stuckProducer{input: make(chan *sarama.ProducerMessage), errs: make(chan *sarama.ProducerError)}
	pub := newPublisher(prod, "t", 1, nil)

	accepted := 0
	for i := range 10 {
		if pub.Publish(Event{Op: OpShow, OverlayID: fmt.Sprint(i)}) {
			accepted++
		}
	}
	if accepted < 1 || accepted > 2 {
		t.Fatalf("accepted=%d want 1 or 2", accepted)
	}
}

func TestSurface_ForwardsReadiness(t *testing.T) {
	inner := memory.New()
	prod := mocks.NewAsyncProducer(t, nil)
	pub := newPublisher(prod, "t", 1, nil)
	defer pub.Close()
	s := Wrap(inner, "site-a", pub, 1)

	called := make(chan geo.Projection, 1)
	s.OnReady(func(p geo.Projection) { called <- p })
	if _, err := s.Projection(); !errors.Is(err, surface.ErrNotReady) {
		t.Fatalf("err=%v want ErrNotReady", err)
	}
	inner.MarkReady(mercator.New())
	select {
	case p := <-called:
		if p == nil {
			t.Fatalf("nil projection")
		}
	default:
		t.Fatalf("ready listener not called")
	}
	if _, err := s.Projection(); err != nil {
		t.Fatalf("Projection: %v", err)
	}
}

func TestTransitionDedupe(t *testing.T) {
	d := newTransitionDedupe(2)
	if !d.changed("a", "show|1") || d.changed("a", "show|1") {
		t.Fatalf("repeat state should be suppressed")
	}
	if !d.changed("a", "hide|") {
		t.Fatalf("new state should pass")
	}
	d.changed("b", "show|1")
	d.changed("c", "show|1")
	// a evicted by capacity 2
	if !d.changed("a", "hide|") {
		t.Fatalf("evicted key should pass again")
	}
}

func TestPublisher_CloseIsIdempotentAndRejectsLatePublish(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(expectEvent(OpShow, "a"))

	pub := newPublisher(prod, "site-overlays", 4, nil)
	if !pub.Publish(Event{Site: "site-a", Op: OpShow, OverlayID: "a", TS: time.Now()}) {
		t.Fatalf("publish before close rejected")
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if pub.Publish(Event{Site: "site-a", Op: OpHide, OverlayID: "a", TS: time.Now()}) {
		t.Fatalf("publish after close accepted")
	}
}

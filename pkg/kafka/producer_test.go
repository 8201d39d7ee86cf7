package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")

	payload := map[string]int{"trades": 3}
	if err := p.Publish(context.Background(), "pair-signals", []byte("BTCUSDT_ETHUSDT"), payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != "pair-signals" || string(m.Key) != "BTCUSDT_ETHUSDT" {
		t.Errorf("topic/key = %s/%s", m.Topic, m.Key)
	}
	var got map[string]int
	if err := json.Unmarshal(m.Value, &got); err != nil || got["trades"] != 3 {
		t.Errorf("value = %s (%v)", m.Value, err)
	}
}

func TestPublishRawAndError(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")
	if err := p.PublishBatch(context.Background(), "t", []Message{{Value: "a"}, {Value: []byte("b")}}); err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if string(w.msgs[0].Value) != "a" || string(w.msgs[1].Value) != "b" {
		t.Errorf("values = %q %q", w.msgs[0].Value, w.msgs[1].Value)
	}

	boom := errors.New("broker down")
	p = newProducer(&fakeWriter{err: boom}, "snappy")
	if err := p.PublishMessage(context.Background(), "t", []string{"x"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped broker error", err)
	}
}

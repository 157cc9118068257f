package mqttpub

import (
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"scoreboard/aggregate"
	"scoreboard/config"
	"scoreboard/n3fjp"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeBroker struct {
	connected bool
	failNext  bool
	messages  []published
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if b.failNext {
		b.failNext = false
		return fakeToken{err: errors.New("not authorized")}
	}
	b.messages = append(b.messages, published{topic, qos, retained, string(payload.([]byte))})
	return fakeToken{}
}

func (b *fakeBroker) IsConnected() bool { return b.connected }
func (b *fakeBroker) Disconnect(uint)   { b.connected = false }

func newTestPublisher(agg *aggregate.Aggregator) (*Publisher, *fakeBroker) {
	cfg := config.Default().MQTT
	cfg.Retain = true
	cfg.QoS = 1
	p := New(cfg, func() aggregate.Snapshot { return agg.Snapshot(nil) })
	b := &fakeBroker{connected: true}
	p.client = b
	return p, b
}

func TestPublishOnceSkipsUnchangedSnapshots(t *testing.T) {
	tick := time.Date(2026, 6, 28, 18, 0, 0, 0, time.UTC)
	agg := aggregate.New(aggregate.Options{Year: 2026, Now: func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}})
	p, b := newTestPublisher(agg)

	if !p.PublishOnce() {
		t.Fatalf("first publish skipped")
	}
	if p.PublishOnce() {
		t.Fatalf("published again with only the timestamp changed")
	}
	agg.Merge([]n3fjp.Record{n3fjp.NewRecord(map[string]string{"FLDPRIMARYKEY": "1", "MODETEST": "CW"})})
	if !p.PublishOnce() {
		t.Fatalf("changed snapshot not published")
	}

	if len(b.messages) != 2 || p.Sent() != 2 {
		t.Fatalf("messages = %d sent = %d", len(b.messages), p.Sent())
	}
	m := b.messages[1]
	if m.topic != "scoreboard/snapshot" || m.qos != 1 || !m.retained {
		t.Fatalf("publish params = %+v", m)
	}
	if !strings.Contains(m.payload, `"contacts":1`) || !strings.Contains(m.payload, `"generatedUtc":"2026-06-28T18:00:03Z"`) {
		t.Fatalf("payload = %s", m.payload)
	}
}

func TestPublishFailureIsRetried(t *testing.T) {
	agg := aggregate.New(aggregate.Options{Year: 2026})
	p, b := newTestPublisher(agg)
	b.failNext = true
	if p.PublishOnce() {
		t.Fatalf("failed publish reported success")
	}
	if !p.PublishOnce() {
		t.Fatalf("retry after failure was skipped")
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	p, b := newTestPublisher(aggregate.New(aggregate.Options{}))
	b.connected = false
	if p.PublishOnce() {
		t.Fatalf("published while disconnected")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("3f2a9c1e-0000-4000-8000-000000000000"); got != "3f2a9c1e" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID = %q", got)
	}
}

package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return true }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu           sync.Mutex
	subs         map[string]mqtt.MessageHandler
	unsubscribed []string
	published    []published
	open         bool
	disconnected bool
	publishErr   error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: map[string]mqtt.MessageHandler{}, open: true}
}

func (f *fakeBroker) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = cb
	return &fakeToken{}
}

func (f *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.subs, t)
		f.unsubscribed = append(f.unsubscribed, t)
	}
	return &fakeToken{}
}

func (f *fakeBroker) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return &fakeToken{err: f.publishErr}
	}
	f.published = append(f.published, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{}
}

func (f *fakeBroker) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeBroker) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.disconnected = true
}

func (f *fakeBroker) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	cb, ok := f.subs[topic]
	f.mu.Unlock()
	if ok {
		cb(nil, &fakeMessage{topic: topic, payload: payload})
	}
	return ok
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestTopic(t *testing.T) {
	s := newStore(nil, "/cactus/", quietLogger())
	cases := map[string]string{
		"":               "cactus",
		"/":              "cactus",
		"status/pump_on": "cactus/status/pump_on",
		"/sensors/":      "cactus/sensors",
	}
	for in, want := range cases {
		if got := s.Topic(in); got != want {
			t.Errorf("Topic(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWatchDeliversAndReleaseUnsubscribes(t *testing.T) {
	b := newFakeBroker()
	s := newStore(b, "cactus", quietLogger())

	var got [][]byte
	release, err := s.Watch("/", func(p []byte) { got = append(got, p) }, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if !b.deliver("cactus", []byte(`{"a":1}`)) {
		t.Fatal("expected subscription on topic cactus")
	}
	if len(got) != 1 || string(got[0]) != `{"a":1}` {
		t.Fatalf("unexpected deliveries: %q", got)
	}

	release()
	release()

	if len(b.unsubscribed) != 1 || b.unsubscribed[0] != "cactus" {
		t.Fatalf("expected exactly one unsubscribe of cactus, got %v", b.unsubscribed)
	}
	if b.deliver("cactus", []byte(`{}`)) {
		t.Fatal("topic still subscribed after release")
	}
}

func TestLinkNotifications(t *testing.T) {
	b := newFakeBroker()
	s := newStore(b, "cactus", quietLogger())

	var links []bool
	_, err := s.Watch("", func([]byte) {}, func(up bool) { links = append(links, up) })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	s.onConnectionLost(nil, errors.New("broken pipe"))
	// reconnect: the watch must be re-subscribed on the new session
	b.mu.Lock()
	delete(b.subs, "cactus")
	b.mu.Unlock()
	s.onConnect(nil)

	if len(links) != 2 || links[0] || !links[1] {
		t.Fatalf("unexpected link events %v", links)
	}
}

func TestOnConnectResubscribes(t *testing.T) {
	b := newFakeBroker()
	s := newStore(b, "cactus", quietLogger())
	if _, err := s.Watch("", func([]byte) {}, nil); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	b.mu.Lock()
	b.subs = map[string]mqtt.MessageHandler{}
	b.mu.Unlock()

	s.onConnect(nil)

	if !b.deliver("cactus", []byte("x")) {
		t.Fatal("expected topic to be subscribed again")
	}
}

func TestSetPublishesRetained(t *testing.T) {
	b := newFakeBroker()
	s := newStore(b, "cactus", quietLogger())

	if err := s.Set(context.Background(), "status/pump_on", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(b.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(b.published))
	}
	p := b.published[0]
	if p.topic != "cactus/status/pump_on" || !p.retained || string(p.payload) != "true" {
		t.Fatalf("unexpected publish %+v (payload %s)", p, p.payload)
	}
}

func TestSetError(t *testing.T) {
	b := newFakeBroker()
	b.publishErr = errors.New("not authorized")
	s := newStore(b, "cactus", quietLogger())
	if err := s.Set(context.Background(), "status/pump_on", false); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	b := newFakeBroker()
	s := newStore(b, "cactus", quietLogger())
	if _, err := s.Watch("", func([]byte) {}, nil); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	s.Close()
	s.Close()

	if !b.disconnected {
		t.Fatal("expected Disconnect on Close")
	}
	if len(b.unsubscribed) != 1 {
		t.Fatalf("expected one unsubscribe, got %v", b.unsubscribed)
	}
	if _, err := s.Watch("", func([]byte) {}, nil); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("Watch after Close: got %v, want ErrStoreClosed", err)
	}
	if err := s.Set(context.Background(), "x", 1); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("Set after Close: got %v, want ErrStoreClosed", err)
	}
}

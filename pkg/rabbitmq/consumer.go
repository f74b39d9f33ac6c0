package rabbitmq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrStoreClosed is returned by Watch and Set after Close.
var ErrStoreClosed = errors.New("store closed")

type watch struct {
	id      int
	topic   string
	onValue func(payload []byte)
	onLink  func(up bool)
}

func (w *watch) subscribe(c brokerClient) error {
	token := c.Subscribe(w.topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		w.onValue(m.Payload())
	})
	if !token.WaitTimeout(5*time.Second) {
		return fmt.Errorf("subscribe %s: timeout", w.topic)
	}
	return token.Error()
}

// Watch subscribes to the value stored at path. onValue receives every push,
// including the retained current value right after subscribing; an empty
// payload means the key was deleted. onLink (optional) is told when the
// broker link drops and comes back.
//
// The returned release func unsubscribes the topic; it is idempotent.
func (s *Store) Watch(path string, onValue func(payload []byte), onLink func(up bool)) (func(), error) {
	if onValue == nil {
		return nil, errors.New("watch: nil value handler")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.nextID++
	w := &watch{id: s.nextID, topic: s.Topic(path), onValue: onValue, onLink: onLink}
	s.watches[w.id] = w
	client := s.client
	s.mu.Unlock()

	if client != nil {
		if err := w.subscribe(client); err != nil {
			s.mu.Lock()
			delete(s.watches, w.id)
			s.mu.Unlock()
			return nil, fmt.Errorf("error subscribing to topic %s: %w", w.topic, err)
		}
	}
	s.logger.Printf("store: subscribed to topic %s", w.topic)

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			_, live := s.watches[w.id]
			delete(s.watches, w.id)
			c := s.client
			s.mu.Unlock()
			if !live || c == nil {
				return
			}
			if !c.Unsubscribe(w.topic).WaitTimeout(2 * time.Second) {
				s.logger.Printf("store: unsubscribe %s timed out", w.topic)
				return
			}
			s.logger.Printf("store: unsubscribed from topic %s", w.topic)
		})
	}
	return release, nil
}

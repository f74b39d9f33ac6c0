package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Set writes value at path as a retained message (QoS 1), so the broker
// keeps it as the current value of that key. Strings and byte slices are
// sent as-is, everything else is JSON encoded (a bool becomes true/false).
func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	s.mu.Lock()
	closed, client := s.closed, s.client
	s.mu.Unlock()
	if closed {
		return ErrStoreClosed
	}
	if client == nil {
		return errors.New("store not connected")
	}

	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", path, err)
		}
		payload = b
	}

	topic := s.Topic(path)
	token := client.Publish(topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	s.logger.Printf("store: set %s=%s", topic, payload)
	return nil
}

package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// RabbitMQConfig holds the broker connection parameters. Root is the topic
// under which the plant record lives (e.g. "cactus").
type RabbitMQConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	ClientID   string
	Root       string
	MaxRetries int
	Logger     *log.Logger
}

// brokerClient is the subset of mqtt.Client the store relies on.
type brokerClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Store is a key/value view over retained MQTT topics: the broker keeps the
// last retained message per topic, so a write is last-write-wins and a new
// subscriber immediately receives the current value.
type Store struct {
	client brokerClient
	root   string
	logger *log.Logger

	mu      sync.Mutex
	watches map[int]*watch
	nextID  int
	closed  bool
}

// Open connects to the broker, retrying with exponential backoff, and
// returns a Store ready to use. Close must be called to release it.
func Open(ctx context.Context, cfg *RabbitMQConfig) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := newStore(nil, cfg.Root, logger)

	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(true)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetOnConnectHandler(s.onConnect)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Printf("store: failed to connect to MQTT broker: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	logger.Printf("store: connected to MQTT broker at %s root=%s", connAddr, cfg.Root)
	return s, nil
}

func newStore(client brokerClient, root string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		client:  client,
		root:    strings.Trim(strings.TrimSpace(root), "/"),
		logger:  logger,
		watches: make(map[int]*watch),
	}
}

// Topic maps a store path ("", "/", "status/pump_on") to its MQTT topic.
func (s *Store) Topic(path string) string {
	p := strings.Trim(strings.TrimSpace(path), "/")
	switch {
	case p == "":
		return s.root
	case s.root == "":
		return p
	default:
		return s.root + "/" + p
	}
}

// Connected reports whether the broker link is currently up.
func (s *Store) Connected() bool {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	return c != nil && c.IsConnectionOpen()
}

// Close drops every watch and disconnects. Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ws := make([]*watch, 0, len(s.watches))
	for _, w := range s.watches {
		ws = append(ws, w)
	}
	s.watches = map[int]*watch{}
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return
	}
	for _, w := range ws {
		client.Unsubscribe(w.topic).WaitTimeout(2 * time.Second)
	}
	if client.IsConnectionOpen() {
		client.Disconnect(250)
		s.logger.Println("store: MQTT connection closed")
	}
}

func (s *Store) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.Printf("store: connection lost: %v", err)
	for _, w := range s.snapshotWatches() {
		if w.onLink != nil {
			w.onLink(false)
		}
	}
}

// onConnect fires on the first connect and on every auto-reconnect. With a
// clean session the broker forgets subscriptions, so they are restored here.
func (s *Store) onConnect(c mqtt.Client) {
	var bc brokerClient = c
	if c == nil {
		s.mu.Lock()
		bc = s.client
		s.mu.Unlock()
	}
	if bc == nil {
		return
	}
	for _, w := range s.snapshotWatches() {
		if err := w.subscribe(bc); err != nil {
			s.logger.Printf("store: resubscribe %s failed: %v", w.topic, err)
			continue
		}
		if w.onLink != nil {
			w.onLink(true)
		}
	}
}

func (s *Store) snapshotWatches() []*watch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*watch, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, w)
	}
	return out
}

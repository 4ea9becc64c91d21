package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/gavelclass/interact-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 100
)

// Event names pushed to observers. Queue, timer, and poll mutations are
// delivered as a fresh EventSnapshot; clients replace their local state.
const (
	EventSnapshot        = "snapshot"
	EventSessionUpdated  = "session_updated"
	EventUserKicked      = "user_kicked"
	EventSettingsUpdated = "settings_updated"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	SessionID int64
	Events    chan Event
	Done      chan struct{}
}

// sessionSub is one session's registry entry: its local observers and the
// context driving the single redis subscriber goroutine for that session.
type sessionSub struct {
	clients map[*Client]bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Broker fans session events out to the observers attached to this process.
// Mutations publish through redis so every replica's observers converge.
// Each session holds exactly one redis subscription, created with its first
// observer and torn down with its last.
type Broker struct {
	redis    *redisclient.Client
	sessions map[int64]*sessionSub
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:    redisClient,
		sessions: make(map[int64]*sessionSub),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *Broker) Subscribe(sessionID int64) *Client {
	client := &Client{
		SessionID: sessionID,
		Events:    make(chan Event, clientBufferSize),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	sub, ok := b.sessions[sessionID]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		sub = &sessionSub{
			clients: make(map[*Client]bool),
			ctx:     ctx,
			cancel:  cancel,
		}
		b.sessions[sessionID] = sub
		go b.subscribeToRedis(ctx, sessionID)
	}
	sub.clients[client] = true
	clientCount := len(sub.clients)
	b.mu.Unlock()

	log.Info().
		Int64("sessionId", sessionID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.sessions[client.SessionID]
	if !ok || !sub.clients[client] {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		// Last observer gone: release the redis subscription too.
		sub.cancel()
		delete(b.sessions, client.SessionID)
	}

	log.Info().
		Int64("sessionId", client.SessionID).
		Int("clientCount", len(sub.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, sessionID int64, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.SessionChannel(sessionID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, sessionID int64) {
	channel := redisclient.SessionChannel(sessionID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Int64("sessionId", sessionID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Int64("sessionId", sessionID).
				Str("channel", channel).
				Msg("redis pubsub released")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(sessionID, event)
		}
	}
}

// broadcast delivers to local observers without ever blocking: a slow
// observer's buffer fills and the event is dropped, it catches up on the
// next snapshot fetch.
func (b *Broker) broadcast(sessionID int64, event Event) {
	b.mu.RLock()
	var clients []*Client
	if sub, ok := b.sessions[sessionID]; ok {
		for client := range sub.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Int64("sessionId", sessionID).
				Str("event", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.sessions {
		sub.cancel()
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.sessions = make(map[int64]*sessionSub)
}

func (b *Broker) ClientCount(sessionID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sub, ok := b.sessions[sessionID]; ok {
		return len(sub.clients)
	}
	return 0
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, sub := range b.sessions {
		total += len(sub.clients)
	}
	return total
}

// MarshalEvent builds an Event from any payload. A payload that cannot be
// marshaled is a programmer error; it degrades to an empty object so the
// stream keeps flowing.
func MarshalEvent(eventType string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = []byte("{}")
	}
	return Event{Type: eventType, Data: data}
}

package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/web3guardian/guardian-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	ConversationID string
	Events         chan Event
	Done           chan struct{}
}

// hub is the live state for one conversation: its subscribed clients and the
// cancel func that stops the conversation's fan-out goroutine. The goroutine
// lives exactly as long as the hub does.
type hub struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Broker fans outbound replies out to transport connectors over Redis
// pub/sub, one channel per conversation. Replies that originate out-of-band
// (wallet auth completion) reach the user through here.
type Broker struct {
	redis  *redisclient.Client
	listen func(ctx context.Context, channel string) <-chan string

	mu     sync.RWMutex
	hubs   map[string]*hub
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		redis:  redisClient,
		hubs:   make(map[string]*hub),
		ctx:    ctx,
		cancel: cancel,
	}
	b.listen = b.redisListen
	return b
}

// Subscribe registers a client for a conversation's replies. The first
// subscriber starts the conversation's fan-out goroutine; the last
// Unsubscribe stops it again, so reconnecting clients never stack listeners.
func (b *Broker) Subscribe(conversationID string) *Client {
	client := &Client{
		ConversationID: conversationID,
		Events:         make(chan Event, 100),
		Done:           make(chan struct{}),
	}

	b.mu.Lock()
	h, ok := b.hubs[conversationID]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		h = &hub{clients: make(map[*Client]bool), cancel: cancel}
		b.hubs[conversationID] = h
		go b.fanOut(ctx, conversationID)
	}
	h.clients[client] = true
	clientCount := len(h.clients)
	b.mu.Unlock()

	log.Info().
		Str("conversationId", conversationID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.hubs[client.ConversationID]
	if !ok {
		return
	}

	delete(h.clients, client)
	close(client.Done)

	if len(h.clients) == 0 {
		h.cancel()
		delete(b.hubs, client.ConversationID)
	}

	log.Info().
		Str("conversationId", client.ConversationID).
		Int("clientCount", len(h.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, conversationID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.ReplyChannel(conversationID)
	return b.redis.Publish(ctx, channel, data).Err()
}

// fanOut delivers every payload published on the conversation's channel to
// its current client set. It exits when the conversation's hub is torn down
// or the broker closes.
func (b *Broker) fanOut(ctx context.Context, conversationID string) {
	msgs := b.listen(ctx, redisclient.ReplyChannel(conversationID))

	for {
		select {
		case <-ctx.Done():
			return

		case payload, ok := <-msgs:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal pubsub event")
				continue
			}

			b.mu.RLock()
			if h := b.hubs[conversationID]; h != nil {
				for client := range h.clients {
					select {
					case client.Events <- event:
					default:
						log.Warn().
							Str("conversationId", conversationID).
							Msg("sse client buffer full, dropping event")
					}
				}
			}
			b.mu.RUnlock()
		}
	}
}

// redisListen subscribes to one pub/sub channel and forwards payloads until
// ctx is cancelled.
func (b *Broker) redisListen(ctx context.Context, channel string) <-chan string {
	out := make(chan string)
	pubsub := b.redis.Subscribe(ctx, channel)

	log.Debug().Str("channel", channel).Msg("redis pubsub subscribed")

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.hubs {
		for client := range h.clients {
			close(client.Done)
		}
	}
	b.hubs = make(map[string]*hub)
}

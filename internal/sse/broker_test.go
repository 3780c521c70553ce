package sse

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus stands in for Redis pub/sub: it tracks the live listeners per
// channel and lets the test push payloads to all of them, so listener
// lifecycle and delivery counts are observable without a broker backend.
type fakeBus struct {
	mu        sync.Mutex
	listeners map[string][]chan string
}

func newFakeBus() *fakeBus {
	return &fakeBus{listeners: make(map[string][]chan string)}
}

func (f *fakeBus) listen(ctx context.Context, channel string) <-chan string {
	out := make(chan string, 10)

	f.mu.Lock()
	f.listeners[channel] = append(f.listeners[channel], out)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		live := f.listeners[channel][:0]
		for _, ch := range f.listeners[channel] {
			if ch != out {
				live = append(live, ch)
			}
		}
		f.listeners[channel] = live
	}()

	return out
}

func (f *fakeBus) send(channel, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.listeners[channel] {
		ch <- payload
	}
}

func (f *fakeBus) listenerCount(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[channel])
}

func newTestBroker(bus *fakeBus) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		listen: bus.listen,
		hubs:   make(map[string]*hub),
		ctx:    ctx,
		cancel: cancel,
	}
}

func replyPayload(t *testing.T, text string) string {
	t.Helper()
	data, err := json.Marshal(Event{Type: "reply", Data: json.RawMessage(`"` + text + `"`)})
	require.NoError(t, err)
	return string(data)
}

func drainEvents(client *Client) int {
	count := 0
	for {
		select {
		case <-client.Events:
			count++
		case <-time.After(100 * time.Millisecond):
			return count
		}
	}
}

func TestBrokerDelivery(t *testing.T) {
	bus := newFakeBus()
	broker := newTestBroker(bus)
	defer broker.Close()

	client := broker.Subscribe("conv-1")
	defer broker.Unsubscribe(client)

	assert.Eventually(t, func() bool {
		return bus.listenerCount("replies:conv-1") == 1
	}, time.Second, 10*time.Millisecond)

	bus.send("replies:conv-1", replyPayload(t, "hello"))

	select {
	case event := <-client.Events:
		assert.Equal(t, "reply", event.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBrokerListenerStopsWithLastClient(t *testing.T) {
	bus := newFakeBus()
	broker := newTestBroker(bus)
	defer broker.Close()

	client := broker.Subscribe("conv-1")
	assert.Eventually(t, func() bool {
		return bus.listenerCount("replies:conv-1") == 1
	}, time.Second, 10*time.Millisecond)

	broker.Unsubscribe(client)

	assert.Eventually(t, func() bool {
		return bus.listenerCount("replies:conv-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBrokerResubscribeDeliversOnce(t *testing.T) {
	bus := newFakeBus()
	broker := newTestBroker(bus)
	defer broker.Close()

	// reconnect cycle: the first listener must be gone before the second
	// subscription, otherwise every reply would arrive once per cycle
	first := broker.Subscribe("conv-1")
	broker.Unsubscribe(first)

	second := broker.Subscribe("conv-1")
	defer broker.Unsubscribe(second)

	assert.Eventually(t, func() bool {
		return bus.listenerCount("replies:conv-1") == 1
	}, time.Second, 10*time.Millisecond)

	bus.send("replies:conv-1", replyPayload(t, "hello"))

	assert.Equal(t, 1, drainEvents(second))
}

func TestBrokerMultipleClientsShareOneListener(t *testing.T) {
	bus := newFakeBus()
	broker := newTestBroker(bus)
	defer broker.Close()

	a := broker.Subscribe("conv-1")
	b := broker.Subscribe("conv-1")
	defer broker.Unsubscribe(b)

	assert.Eventually(t, func() bool {
		return bus.listenerCount("replies:conv-1") == 1
	}, time.Second, 10*time.Millisecond)

	bus.send("replies:conv-1", replyPayload(t, "hello"))
	assert.Equal(t, 1, drainEvents(a))
	assert.Equal(t, 1, drainEvents(b))

	// one client leaving keeps the listener alive for the other
	broker.Unsubscribe(a)
	assert.Equal(t, 1, bus.listenerCount("replies:conv-1"))
}

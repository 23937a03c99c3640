package msgbroker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *recorder) handle(msg *Message) {
	r.mu.Lock()
	r.messages = append(r.messages, *msg)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func TestLocalBrokerOrderedDelivery(t *testing.T) {
	lb := NewLocalBroker()
	defer func() { _ = lb.Close() }()

	rec := &recorder{}
	require.NoError(t, lb.Subscribe("rooms:*", rec.handle))

	const n = 50
	for i := 0; i < n; i++ {
		room := "rooms:A"
		if i%2 == 1 {
			room = "rooms:B"
		}
		require.NoError(t, lb.Publish([]byte(fmt.Sprintf("%d", i)), room))
	}

	require.Eventually(t, func() bool { return rec.len() == n }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, msg := range rec.messages {
		assert.Equal(t, fmt.Sprintf("%d", i), string(msg.Data))
		if i%2 == 1 {
			assert.Equal(t, "rooms:B", msg.Channel)
		} else {
			assert.Equal(t, "rooms:A", msg.Channel)
		}
	}
}

func TestLocalBrokerPatternMatch(t *testing.T) {
	lb := NewLocalBroker()
	defer func() { _ = lb.Close() }()

	rec := &recorder{}
	require.NoError(t, lb.Subscribe("rooms:*", rec.handle))

	require.NoError(t, lb.Publish([]byte("in"), "rooms:1234-5678"))
	require.NoError(t, lb.Publish([]byte("out"), "metrics:visits"))

	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.len())
	rec.mu.Lock()
	assert.Equal(t, "in", string(rec.messages[0].Data))
	rec.mu.Unlock()
}

func TestLocalBrokerUnsubscribe(t *testing.T) {
	lb := NewLocalBroker()
	defer func() { _ = lb.Close() }()

	rec := &recorder{}
	require.NoError(t, lb.Subscribe("rooms:*", rec.handle))
	require.NoError(t, lb.Publish([]byte("one"), "rooms:A"))
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, lb.Unsubscribe("rooms:*"))
	require.NoError(t, lb.Publish([]byte("two"), "rooms:A"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.len())
}

func TestLocalBrokerClosed(t *testing.T) {
	lb := NewLocalBroker()
	require.NoError(t, lb.Close())
	assert.Error(t, lb.Publish([]byte("x"), "rooms:A"))
	assert.NoError(t, lb.Close())
}

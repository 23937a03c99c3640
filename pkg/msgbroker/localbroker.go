package msgbroker

import (
	"errors"
	"strings"
	"sync"
)

// localBroker is an in-process MessageBroker for single-node runs and tests.
// A single dispatcher goroutine drains the queue, so delivery order equals
// publish order across all channels.
type localBroker struct {
	sync.RWMutex
	handlers map[string]MessageHandler
	queue    chan Message
	done     chan struct{}
	closed   bool
}

func NewLocalBroker() MessageBroker {
	lb := &localBroker{
		handlers: make(map[string]MessageHandler),
		queue:    make(chan Message, 1024),
		done:     make(chan struct{}),
	}
	go lb.serveMessages()
	return lb
}

func (lb *localBroker) serveMessages() {
	for {
		select {
		case <-lb.done:
			return
		case msg := <-lb.queue:
			lb.RLock()
			var handler MessageHandler
			for pattern, h := range lb.handlers {
				if patternMatch(pattern, msg.Channel) {
					handler = h
					break
				}
			}
			lb.RUnlock()
			if handler != nil {
				handler(&msg)
			}
		}
	}
}

func (lb *localBroker) Publish(msg []byte, channel string) error {
	lb.RLock()
	closed := lb.closed
	lb.RUnlock()
	if closed {
		return errors.New("broker is closed")
	}
	lb.queue <- Message{Channel: channel, Data: msg}
	return nil
}

func (lb *localBroker) Subscribe(pattern string, cb MessageHandler) error {
	lb.Lock()
	lb.handlers[pattern] = cb
	lb.Unlock()
	return nil
}

func (lb *localBroker) Unsubscribe(patterns ...string) error {
	lb.Lock()
	for _, p := range patterns {
		delete(lb.handlers, p)
	}
	lb.Unlock()
	return nil
}

func (lb *localBroker) Close() error {
	lb.Lock()
	defer lb.Unlock()
	if lb.closed {
		return nil
	}
	lb.closed = true
	close(lb.done)
	return nil
}

// patternMatch supports the glob subset redis PSUBSCRIBE is used with here:
// either an exact channel name or a trailing '*'.
func patternMatch(pattern, channel string) bool {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return strings.HasPrefix(channel, pattern[:i])
	}
	return pattern == channel
}

package websocket

import "sync"

// Subscriber is anything that can receive outbound frames. Real connections
// are *Peer; tests substitute their own.
type Subscriber interface {
	GetID() string
	Send(b []byte) error
}

// Channels keeps track of which subscribers listen on which room channel.
type Channels interface {
	Subscribe(s Subscriber, channels ...string)
	Unsubscribe(s Subscriber, channels ...string)
	GetSubscribers(channel string) []Subscriber
	Get(channel, id string) (Subscriber, bool)
}

type channels struct {
	sync.Mutex
	storage map[string]map[string]Subscriber
}

func NewChannels() Channels {
	return &channels{
		storage: make(map[string]map[string]Subscriber),
	}
}

func (h *channels) Subscribe(s Subscriber, chs ...string) {
	h.Lock()
	for _, ch := range chs {
		_, exists := h.storage[ch]
		if !exists {
			h.storage[ch] = make(map[string]Subscriber)
		}
		h.storage[ch][s.GetID()] = s
	}
	h.Unlock()
}

func (h *channels) Unsubscribe(s Subscriber, chs ...string) {
	h.Lock()
	for _, ch := range chs {
		subs, exists := h.storage[ch]
		if exists {
			delete(subs, s.GetID())
			if len(subs) == 0 {
				delete(h.storage, ch)
			}
		}
	}
	h.Unlock()
}

func (h *channels) GetSubscribers(channel string) []Subscriber {
	var result []Subscriber
	h.Lock()
	for _, s := range h.storage[channel] {
		result = append(result, s)
	}
	h.Unlock()
	return result
}

func (h *channels) Get(channel, id string) (Subscriber, bool) {
	h.Lock()
	defer h.Unlock()
	subs, exists := h.storage[channel]
	if !exists {
		return nil, false
	}
	s, exists := subs[id]
	return s, exists
}

package msgbroker

// MessageBroker carries inbound room events from the connection layer to the
// dispatcher. Delivery within one channel follows publish order; the sync
// core relies on that for per-room FIFO.
type MessageBroker interface {
	// Publish sends msg to the given channel
	Publish(msg []byte, channel string) error
	// Subscribe registers cb for every channel matching pattern
	Subscribe(pattern string, cb MessageHandler) error
	// Unsubscribe removes the given pattern subscriptions
	Unsubscribe(patterns ...string) error
	// Close stops delivery
	Close() error
}

// MessageHandler is a callback function that processes messages delivered to subscribers.
type MessageHandler func(msg *Message)

// Message is the representation of transmitted data
type Message struct {
	Channel string
	Data    []byte
}

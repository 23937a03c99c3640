package websocket

import (
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Peer wraps one upgraded connection. Writes are serialized: broadcasts,
// acks and pings can all race for the same socket.
type Peer struct {
	id   string
	conn net.Conn
	mu   sync.Mutex
}

func NewPeer(id string, conn net.Conn) *Peer {
	return &Peer{id: id, conn: conn}
}

func (p *Peer) GetID() string {
	return p.id
}

func (p *Peer) Conn() net.Conn {
	return p.conn
}

func (p *Peer) Send(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wsutil.WriteServerText(p.conn, b)
}

func (p *Peer) Ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wsutil.WriteServerMessage(p.conn, ws.OpPing, []byte("ping"))
}

func (p *Peer) Close() error {
	return p.conn.Close()
}

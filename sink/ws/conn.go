package ws

import (
	"fmt"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn owns the write side of one display connection. Writes are queued;
// a client that lets its queue fill up is disconnected rather than allowed
// to hold back the others.
type Conn struct {
	sync.Mutex
	id      string
	conn    *websocket.Conn
	wCh     chan []byte
	isClose bool
	done    chan struct{}
}

func newConn(id string, c *websocket.Conn, msgBufferCount uint32) *Conn {
	conn := &Conn{
		id:   id,
		conn: c,
		wCh:  make(chan []byte, msgBufferCount),
		done: make(chan struct{}),
	}

	go func() {
		defer close(conn.done)

		for data := range conn.wCh {
			if data == nil {
				break
			}

			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				break
			}
		}

		c.Close()
		conn.Lock()
		conn.isClose = true
		conn.Unlock()
	}()

	return conn
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) ReadMessage() ([]byte, error) {
	_, b, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message %w", err)
	}

	return b, nil
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() {
	c.Lock()
	defer c.Unlock()

	c.closeLocked()
}

func (c *Conn) closeLocked() {
	if c.isClose {
		return
	}

	c.isClose = true

	if tcp, ok := c.conn.UnderlyingConn().(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}

	// the writer may be stuck on a full queue
	select {
	case c.wCh <- nil:
	default:
		c.conn.Close()
	}
}

// WriteMessage reports false when the client was dropped.
func (c *Conn) WriteMessage(data []byte) bool {
	c.Lock()
	defer c.Unlock()

	if c.isClose {
		return false
	}

	if len(c.wCh) == cap(c.wCh) {
		c.closeLocked()

		return false
	}

	c.wCh <- data

	return true
}

func (c *Conn) String() string {
	return "websocket_conn"
}

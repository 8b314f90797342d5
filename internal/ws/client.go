package ws

import (
	"sync"

	"golang.org/x/net/websocket"
)

const clientSendBuffer = 64

// Client wraps one websocket connection. Outbound messages go through the
// buffered out channel; a peer that cannot keep up is disconnected rather
// than allowed to block publishers.
type Client struct {
	conn *websocket.Conn
	out  chan []byte

	mu       sync.RWMutex
	closed   bool
	channels map[string]struct{}
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:     conn,
		out:      make(chan []byte, clientSendBuffer),
		channels: make(map[string]struct{}),
	}
}

func (c *Client) send(payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.out <- payload:
	default:
		// Buffer full: the reader will notice the closed conn and clean up.
		_ = c.conn.Close()
	}
}

// close marks the client closed and closes the out channel. Holding the
// write lock here means no send can be mid-flight on a closed channel: a
// publisher that snapshotted this client before disconnect sees the
// closed flag instead.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	c.channels[channel] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) listChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for channel := range c.channels {
		out = append(out, channel)
	}
	return out
}

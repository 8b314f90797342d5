package ws

import "sync"

// Hub fans loan lifecycle and reminder events out to subscribed clients.
// Channels exist only while they have at least one subscriber.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Subscribe(channel string, client *Client) {
	h.mu.Lock()
	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
	h.mu.Unlock()

	client.addChannel(channel)
}

func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range client.listChannels() {
		subs := h.channels[channel]
		if subs == nil {
			continue
		}
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) Publish(channel string, payload []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(payload)
	}
}

package ws

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

// ChannelLoanEvents carries lifecycle events for every non-deleted loan.
const ChannelLoanEvents = "loans:events"

// ReminderChannel is the per-user channel reminder events are published to.
func ReminderChannel(userID string) string {
	return "user:reminders:" + userID
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// HandleWebSocket upgrades the request and serves subscribe messages until
// the peer disconnects. The user ID set by the auth middleware scopes
// reminder subscriptions to the caller's own channel.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, _ := c.Get("user_id")
	uid, _ := userID.(string)

	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn)
		go h.writer(client)
		h.reader(client, uid)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client, userID string) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
		_ = client.conn.Close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(msg.Action)) != "subscribe" {
			continue
		}
		topic := subscriptionTopic(msg, userID)
		if topic == "" {
			continue
		}
		h.hub.Subscribe(topic, client)
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}

func subscriptionTopic(msg subscribeMessage, userID string) string {
	switch strings.ToLower(strings.TrimSpace(msg.Channel)) {
	case "loans":
		return ChannelLoanEvents
	case "reminders":
		if userID == "" {
			return ""
		}
		return ReminderChannel(userID)
	default:
		return ""
	}
}

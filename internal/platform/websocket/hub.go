// Package websocket pushes live events to connected clients. Clients are
// grouped into rooms (user_<id>, role_<role>, hospital_<id>) and every event
// is delivered to one room, or to everyone for the broadcast room.
package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types pushed to clients.
const (
	EventNewNotification      = "new_notification"
	EventPendingNotifications = "pending_notifications"
	EventEmergencyAlert       = "emergency_alert"
	EventAppointmentUpdate    = "appointment_update"
	EventBedStatusUpdate      = "bed_status_update"
	EventBloodStockAlert      = "blood_stock_alert"
	EventSystemNotification   = "system_notification"
	EventSystemStats          = "system_stats"
	EventConnected            = "connected"
	EventRoomJoined           = "room_joined"
	EventRoomLeft             = "room_left"
	EventError                = "error"
	EventPong                 = "pong"
)

// BroadcastRoom delivers to every connected client.
const BroadcastRoom = "broadcast"

type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an event addressed to topic.
func NewEvent(eventType, topic string, data interface{}) (Event, error) {
	ev := Event{Type: eventType, Topic: topic, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		ev.Data = raw
	}
	return ev, nil
}

// ClientMessage is an inbound client request.
type ClientMessage struct {
	Action string   `json:"action"` // subscribe, unsubscribe, ping
	Topics []string `json:"topics"`
}

// Publisher delivers events to rooms.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Client is one connection and the identity it authenticated with.
type Client struct {
	ID         string
	UserID     string
	Role       string
	Type       string
	HospitalID string
	Topics     []string
	Send       chan []byte
}

// Hub tracks clients and their rooms.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client and joins its initial rooms.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.join(client, topic)
	}
}

// Unregister removes a client from every room and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.leave(client, topic)
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe joins the rooms the client is allowed into and returns them.
func (h *Hub) Subscribe(client *Client, topics []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var joined []string
	for _, topic := range topics {
		if !CanJoin(client, topic) || hasTopic(client, topic) {
			continue
		}
		h.join(client, topic)
		client.Topics = append(client.Topics, topic)
		joined = append(joined, topic)
	}
	return joined
}

// Unsubscribe leaves the given rooms and returns the ones actually left.
func (h *Hub) Unsubscribe(client *Client, topics []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	remove := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		remove[t] = struct{}{}
	}

	var left []string
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if _, rm := remove[t]; rm {
			h.leave(client, t)
			left = append(left, t)
			continue
		}
		remaining = append(remaining, t)
	}
	client.Topics = remaining
	return left
}

func (h *Hub) join(client *Client, topic string) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) leave(client *Client, topic string) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

func hasTopic(client *Client, topic string) bool {
	for _, t := range client.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// CanJoin decides whether a client may subscribe to a room on request.
// Admins may join any room. Everyone else may join their own user and role
// rooms; hospital accounts their own hospital room; admins and ambulance
// drivers emergency_* rooms; doctors and users appointment_* rooms.
func CanJoin(client *Client, topic string) bool {
	switch {
	case client.Role == "admin":
		return true
	case topic == UserRoom(client.UserID), topic == RoleRoom(client.Role):
		return true
	case strings.HasPrefix(topic, "hospital_"):
		return client.Type == "hospital" && client.HospitalID != "" && topic == HospitalRoom(client.HospitalID)
	case strings.HasPrefix(topic, "emergency_"):
		return client.Role == "ambulance_driver"
	case strings.HasPrefix(topic, "appointment_"):
		return client.Role == "doctor" || client.Role == "user"
	}
	return false
}

// Broadcast sends an event to every client in topic. Slow clients whose
// buffer is full miss the event.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("failed to marshal websocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[topic] {
		h.deliver(client, data)
	}
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal websocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.all {
		h.deliver(client, data)
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Debug().Str("client_id", client.ID).Msg("websocket client buffer full, dropping event")
	}
}

// SendTo writes an event to a single client.
func (h *Hub) SendTo(client *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.all[client]; ok {
		h.deliver(client, data)
	}
}

// Publish delivers locally. It implements Publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	if event.Topic == BroadcastRoom {
		h.BroadcastAll(event)
		return nil
	}
	h.Broadcast(event.Topic, event)
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// RoleCounts groups connected clients by role.
func (h *Hub) RoleCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int)
	for c := range h.all {
		out[c.Role]++
	}
	return out
}

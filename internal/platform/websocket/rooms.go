package websocket

import (
	"context"
	"fmt"
)

func UserRoom(userID string) string         { return "user_" + userID }
func RoleRoom(role string) string           { return "role_" + role }
func HospitalRoom(hospitalID string) string { return "hospital_" + hospitalID }

// Notifier addresses events to rooms through a Publisher.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) emit(ctx context.Context, eventType, topic string, data interface{}) error {
	ev, err := NewEvent(eventType, topic, data)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	return n.pub.Publish(ctx, ev)
}

func (n *Notifier) NotifyUser(ctx context.Context, userID, eventType string, data interface{}) error {
	return n.emit(ctx, eventType, UserRoom(userID), data)
}

func (n *Notifier) NotifyRole(ctx context.Context, role, eventType string, data interface{}) error {
	return n.emit(ctx, eventType, RoleRoom(role), data)
}

func (n *Notifier) NotifyHospital(ctx context.Context, hospitalID, eventType string, data interface{}) error {
	return n.emit(ctx, eventType, HospitalRoom(hospitalID), data)
}

// BroadcastSystem sends a system_notification to every connected client.
func (n *Notifier) BroadcastSystem(ctx context.Context, data interface{}) error {
	return n.emit(ctx, EventSystemNotification, BroadcastRoom, data)
}

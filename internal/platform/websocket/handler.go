package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4 << 10
)

// TokenParser validates the access token a client connects with.
type TokenParser interface {
	ParseAccess(raw string) (*auth.Principal, error)
}

// ConnectHook runs once a client has joined its rooms, e.g. to replay
// unread notifications.
type ConnectHook func(ctx context.Context, client *Client)

type Handler struct {
	hub         *Hub
	tokens      TokenParser
	revocations auth.RevocationStore
	onConnect   ConnectHook
	logger      zerolog.Logger
	upgrader    gorillawebsocket.Upgrader
}

func NewHandler(hub *Hub, tokens TokenParser, revocations auth.RevocationStore, onConnect ConnectHook, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:         hub,
		tokens:      tokens,
		revocations: revocations,
		onConnect:   onConnect,
		logger:      logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the web frontend; identity comes from the token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnect)
}

// HandleConnect authenticates the ?token= access token (or bearer header),
// upgrades the connection and joins the caller's user, role and hospital
// rooms.
func (h *Handler) HandleConnect(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		raw = auth.BearerToken(c)
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	p, err := h.tokens.ParseAccess(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if h.revocations != nil {
		revoked, err := h.revocations.IsRevoked(c.Request().Context(), p.JTI)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "unable to verify token")
		}
		if revoked {
			return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
		}
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		return nil
	}

	client := newClient(p)
	h.hub.Register(client)
	h.logger.Info().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("websocket client connected")

	go h.writePump(client, ws)

	if ev, err := NewEvent(EventConnected, UserRoom(client.UserID), map[string]interface{}{
		"status": "success",
		"rooms":  client.Topics,
	}); err == nil {
		h.hub.SendTo(client, ev)
	}
	if h.onConnect != nil {
		h.onConnect(context.WithoutCancel(c.Request().Context()), client)
	}

	go h.readPump(client, ws)
	return nil
}

func newClient(p *auth.Principal) *Client {
	client := &Client{
		ID:     uuid.NewString(),
		UserID: p.ID.String(),
		Role:   p.Role,
		Type:   p.Type,
		Send:   make(chan []byte, 256),
	}
	client.Topics = []string{UserRoom(client.UserID), RoleRoom(client.Role)}
	if p.HospitalID != nil {
		client.HospitalID = p.HospitalID.String()
		client.Topics = append(client.Topics, HospitalRoom(client.HospitalID))
	}
	return client
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
		h.logger.Info().Str("client_id", client.ID).Msg("websocket client disconnected")
	}()

	ws.SetReadLimit(maxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.reply(client, EventError, map[string]string{"message": "malformed message"})
			continue
		}
		h.process(client, msg)
	}
}

func (h *Handler) process(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		joined := h.hub.Subscribe(client, msg.Topics)
		if len(joined) < len(msg.Topics) {
			h.reply(client, EventError, map[string]string{"message": "access denied to room"})
		}
		if len(joined) > 0 {
			h.reply(client, EventRoomJoined, map[string][]string{"rooms": joined})
		}
	case "unsubscribe":
		left := h.hub.Unsubscribe(client, msg.Topics)
		h.reply(client, EventRoomLeft, map[string][]string{"rooms": left})
	case "ping":
		h.reply(client, EventPong, map[string]time.Time{"timestamp": time.Now().UTC()})
	default:
		h.reply(client, EventError, map[string]string{"message": "unknown action"})
	}
}

func (h *Handler) reply(client *Client, eventType string, data interface{}) {
	ev, err := NewEvent(eventType, UserRoom(client.UserID), data)
	if err != nil {
		return
	}
	h.hub.SendTo(client, ev)
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

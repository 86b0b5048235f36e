package notifications

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
	"github.com/hms/hms/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications", auth.RequireAuth())
	g.GET("/my-notifications", h.MyNotifications)
	g.POST("/mark-read/:id", h.MarkRead)
	g.POST("/mark-all-read", h.MarkAllRead)
	g.GET("/unread-count", h.UnreadCount)
	g.DELETE("/delete/:id", h.Delete)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/send", h.Send)
	admin.POST("/broadcast", h.Broadcast)
	admin.GET("/templates", h.Templates)
	admin.POST("/send-template", h.SendTemplate)
}

func callerID(c echo.Context) uuid.UUID {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	return p.ID
}

func (h *Handler) MyNotifications(c echo.Context) error {
	pg := pagination.FromContext(c)
	unreadOnly := c.QueryParam("unread_only") == "true"
	items, total, err := h.svc.MyNotifications(c.Request().Context(), callerID(c), unreadOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "notifications retrieved successfully", pagination.NewResponse(items, total, pg))
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.MarkRead(c.Request().Context(), callerID(c), id); err != nil {
		return err
	}
	return response.OK(c, "notification marked as read", nil)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	n, err := h.svc.MarkAllRead(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return response.OK(c, "all notifications marked as read", map[string]int64{"updated": n})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	n, err := h.svc.UnreadCount(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return response.OK(c, "unread count retrieved successfully", map[string]int{"unread_count": n})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), callerID(c), id); err != nil {
		return err
	}
	return response.OK(c, "notification deleted successfully", nil)
}

func (h *Handler) GetSettings(c echo.Context) error {
	return response.OK(c, "settings retrieved successfully", h.svc.Settings(c.Request().Context(), callerID(c)))
}

// UpdateSettings merges the body over the caller's current settings.
func (h *Handler) UpdateSettings(c echo.Context) error {
	ctx := c.Request().Context()
	settings := h.svc.Settings(ctx, callerID(c))
	if err := c.Bind(&settings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateSettings(ctx, callerID(c), settings)
	if err != nil {
		return err
	}
	return response.OK(c, "settings updated successfully", updated)
}

func (h *Handler) Send(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.Send(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.OK(c, "notifications sent", result)
}

func (h *Handler) Broadcast(c echo.Context) error {
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.Broadcast(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.OK(c, "broadcast sent", result)
}

func (h *Handler) Templates(c echo.Context) error {
	return response.OK(c, "templates retrieved successfully", h.svc.Templates())
}

func (h *Handler) SendTemplate(c echo.Context) error {
	var req TemplateSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.SendTemplate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.OK(c, "template notifications sent", result)
}

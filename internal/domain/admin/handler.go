package admin

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
	g := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	g.POST("/create", h.CreateAdmin)
	g.GET("/dashboard/stats", h.DashboardStats)
	g.GET("/logs", h.ListLogs)
}

func (h *Handler) CreateAdmin(c echo.Context) error {
	var req CreateAdminRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	a, err := h.svc.CreateAdmin(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return response.Created(c, "admin created successfully", a)
}

func (h *Handler) DashboardStats(c echo.Context) error {
	stats, err := h.svc.DashboardStats(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, "dashboard statistics retrieved successfully", stats)
}

func (h *Handler) ListLogs(c echo.Context) error {
	pg := pagination.FromContext(c)
	var adminID *uuid.UUID
	if raw := c.QueryParam("admin_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid admin_id")
		}
		adminID = &id
	}
	logs, total, err := h.svc.ListLogs(c.Request().Context(), adminID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "admin logs retrieved successfully", pagination.NewResponse(logs, total, pg))
}

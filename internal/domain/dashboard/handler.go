package dashboard

import (
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireAuth())
	g.GET("", h.Get)
	g.GET("/", h.Get)
}

func (h *Handler) Get(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	d, err := h.svc.ForPrincipal(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return response.OK(c, "dashboard retrieved successfully", d)
}

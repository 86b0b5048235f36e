package user

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
	g := api.Group("/user")

	self := g.Group("", auth.RequireType(auth.TypeUser))
	self.PUT("/profile/update", h.UpdateProfile)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/all", h.ListUsers)
	admin.GET("/stats", h.Stats)
	admin.PUT("/update-role/:id", h.UpdateRole)
	admin.DELETE("/delete/:id", h.DeleteUser)

	staff := g.Group("", auth.RequireRole(auth.RoleHospitalAdmin))
	staff.GET("/search", h.Search)

	g.GET("/:id", h.GetUser, auth.RequireAuth())
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), p.ID, req)
	if err != nil {
		return err
	}
	return response.OK(c, "profile updated successfully", u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{
		"role":   c.QueryParam("role"),
		"search": c.QueryParam("search"),
	}
	users, total, err := h.svc.ListUsers(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "users retrieved successfully", pagination.NewResponse(users, total, pg))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	u, err := h.svc.GetUser(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return response.OK(c, "user retrieved successfully", u)
}

func (h *Handler) UpdateRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	u, err := h.svc.UpdateRole(c.Request().Context(), p, id, req.Role)
	if err != nil {
		return err
	}
	return response.OK(c, "user role updated successfully", u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.DeleteUser(c.Request().Context(), p, id); err != nil {
		return err
	}
	return response.OK(c, "user deleted successfully", nil)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, "user statistics retrieved successfully", stats)
}

func (h *Handler) Search(c echo.Context) error {
	users, err := h.svc.QuickSearch(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return response.OK(c, "search results", users)
}

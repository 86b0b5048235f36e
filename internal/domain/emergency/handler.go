package emergency

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

// RegisterRoutes mounts /emergency. The call endpoint is public; an access
// token, when present, attaches the caller's identity.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/emergency")
	g.POST("/call", h.Call)
	g.GET("/ambulances/available", h.AvailableAmbulances, auth.RequireAuth())

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/all", h.ListEmergencies)
	admin.GET("/:id", h.GetEmergency)
	admin.PUT("/update/:id", h.UpdateEmergency)

	g.POST("/ambulance/register", h.RegisterAmbulance, auth.RequireRole(auth.RoleHospitalAdmin))
	g.PUT("/ambulance/:id/status", h.UpdateAmbulanceStatus, auth.RequireRole(auth.RoleHospitalAdmin, auth.RoleAmbulanceDriver))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Call(c echo.Context) error {
	var req CallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := Caller{IP: c.RealIP()}
	if p, ok := auth.PrincipalFromContext(c.Request().Context()); ok && p.Type == auth.TypeUser {
		id := p.ID
		caller.UserID = &id
	}
	e, err := h.svc.Call(c.Request().Context(), caller, req)
	if err != nil {
		return err
	}
	return response.Created(c, "emergency reported successfully", e)
}

func (h *Handler) ListEmergencies(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{
		"type":   c.QueryParam("type"),
		"status": c.QueryParam("status"),
	}
	items, total, err := h.svc.ListEmergencies(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "emergencies retrieved successfully", pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetEmergency(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEmergency(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "emergency retrieved successfully", e)
}

func (h *Handler) UpdateEmergency(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.UpdateEmergency(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "emergency updated successfully", e)
}

func (h *Handler) RegisterAmbulance(c echo.Context) error {
	var req RegisterAmbulanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	a, err := h.svc.RegisterAmbulance(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return response.Created(c, "ambulance registered successfully", a)
}

func (h *Handler) UpdateAmbulanceStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req AmbulanceStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	a, err := h.svc.UpdateAmbulanceStatus(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "ambulance status updated successfully", a)
}

func (h *Handler) AvailableAmbulances(c echo.Context) error {
	params := map[string]string{
		"hospital_id": c.QueryParam("hospital_id"),
		"type":        c.QueryParam("type"),
	}
	items, err := h.svc.AvailableAmbulances(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return response.OK(c, "available ambulances retrieved successfully", items)
}

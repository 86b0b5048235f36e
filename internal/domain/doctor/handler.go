package doctor

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
	g := api.Group("/doctor")
	g.GET("/all", h.ListDoctors)
	g.GET("/:id", h.GetDoctor)
	g.GET("/:id/schedule", h.ListSchedule)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/register", h.RegisterDoctor)
	admin.PUT("/update/:id", h.UpdateDoctor)
	admin.POST("/:id/hospitals", h.LinkHospital)

	g.POST("/schedule", h.CreateSchedule, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.RegisterDoctor(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.Created(c, "doctor registered successfully", d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{
		"specialisation": c.QueryParam("specialisation"),
		"hospital_id":    c.QueryParam("hospital_id"),
		"available":      c.QueryParam("available"),
	}
	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "doctors retrieved successfully", pagination.NewResponse(doctors, total, pg))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "doctor retrieved successfully", d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "doctor updated successfully", d)
}

func (h *Handler) LinkHospital(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req LinkHospitalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.LinkHospital(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "hospital linked successfully", d)
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	sched, err := h.svc.CreateSchedule(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return response.Created(c, "schedule created successfully", sched)
}

func (h *Handler) ListSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	schedules, err := h.svc.ListSchedule(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "schedule retrieved successfully", schedules)
}

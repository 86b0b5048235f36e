package appointment

import (
	"net/http"
	"time"

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
	g := api.Group("/appointment", auth.RequireAuth())
	g.GET("/available-slots", h.AvailableSlots)
	g.GET("/my-appointments", h.MyAppointments)
	g.POST("/opd/book", h.Book)
	g.GET("/opd/:id", h.GetAppointment)
	g.PUT("/opd/update/:id", h.UpdateAppointment)
	g.DELETE("/opd/cancel/:id", h.CancelAppointment)

	mgmt := g.Group("", auth.RequireRole(auth.RoleHospitalAdmin))
	mgmt.POST("/opd/create", h.CreateOPD)
	mgmt.POST("/opd/:id/slots/create", h.CreateSlot)

	g.GET("/hospital/:id/appointments", h.HospitalAppointments,
		auth.RequireRole(auth.RoleDoctor, auth.RoleHospitalAdmin))
}

func principal(c echo.Context) *auth.Principal {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	return p
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateOPD(c echo.Context) error {
	var req CreateOPDRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.CreateOPD(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return response.Created(c, "OPD created successfully", o)
}

func (h *Handler) CreateSlot(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req CreateSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slot, err := h.svc.CreateSlot(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return response.Created(c, "slot created successfully", slot)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Book(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return response.Created(c, "appointment booked successfully", a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return response.OK(c, "appointment retrieved successfully", a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "appointment updated successfully", a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.CancelAppointment(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return response.OK(c, "appointment cancelled successfully", a)
}

func (h *Handler) MyAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{
		"status": c.QueryParam("status"),
		"type":   c.QueryParam("type"),
	}
	items, total, err := h.svc.MyAppointments(c.Request().Context(), principal(c), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "appointments retrieved successfully", pagination.NewResponse(items, total, pg))
}

func (h *Handler) HospitalAppointments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	params := map[string]string{
		"status": c.QueryParam("status"),
		"date":   c.QueryParam("date"),
	}
	items, total, err := h.svc.HospitalAppointments(c.Request().Context(), principal(c), id, params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "appointments retrieved successfully", pagination.NewResponse(items, total, pg))
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	raw := c.QueryParam("hospital_id")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "hospital_id is required")
	}
	hospitalID, err := uuid.Parse(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
	}
	q := SlotQuery{HospitalID: hospitalID, Department: c.QueryParam("department")}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		q.DoctorID = &id
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		q.Date = &d
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return response.OK(c, "available slots retrieved successfully", slots)
}

package hospital

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
	g := api.Group("/hospital")

	g.GET("/all", h.ListHospitals)
	g.GET("/categories", h.ListCategories)
	g.GET("/:id", h.GetHospital)
	g.GET("/:id/floors", h.ListFloors)
	g.GET("/:id/wards", h.ListWards)
	g.GET("/ward/:id", h.GetWard)
	g.GET("/ward/:id/beds", h.ListBeds)
	g.GET("/bed/:id", h.GetBed)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/register", h.RegisterHospital)
	admin.DELETE("/delete/:id", h.DeleteHospital)

	// Ownership of the target hospital is checked by the service.
	staff := g.Group("", auth.RequireRole(auth.RoleHospitalAdmin))
	staff.PUT("/update/:id", h.UpdateHospital)
	staff.POST("/:id/floors/create", h.CreateFloor)
	staff.POST("/ward/create", h.CreateWard)
	staff.POST("/ward/:id/bed/create", h.CreateBed)
	staff.PUT("/bed/update/:id", h.UpdateBed)
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

func (h *Handler) RegisterHospital(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reg, err := h.svc.RegisterHospital(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return response.Created(c, "hospital registered successfully", reg)
}

func (h *Handler) ListHospitals(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{
		"type":       c.QueryParam("type"),
		"location":   c.QueryParam("location"),
		"opd_status": c.QueryParam("opd_status"),
	}
	hospitals, total, err := h.svc.ListHospitals(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "hospitals retrieved successfully", pagination.NewResponse(hospitals, total, pg))
}

func (h *Handler) GetHospital(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	detail, err := h.svc.GetHospital(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "hospital retrieved successfully", detail)
}

func (h *Handler) UpdateHospital(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hosp, err := h.svc.UpdateHospital(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "hospital updated successfully", hosp)
}

func (h *Handler) DeleteHospital(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteHospital(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return response.OK(c, "hospital deleted successfully", nil)
}

func (h *Handler) CreateFloor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req CreateFloorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.CreateFloor(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return response.Created(c, "floor created successfully", f)
}

func (h *Handler) ListFloors(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	floors, err := h.svc.ListFloors(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "floors retrieved successfully", floors)
}

func (h *Handler) ListWards(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	wards, err := h.svc.ListWards(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "wards retrieved successfully", wards)
}

func (h *Handler) CreateWard(c echo.Context) error {
	var req CreateWardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.CreateWard(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return response.Created(c, "ward created successfully", w)
}

func (h *Handler) GetWard(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	w, err := h.svc.GetWard(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "ward retrieved successfully", w)
}

func (h *Handler) CreateBed(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req CreateBedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.CreateBed(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return response.Created(c, "bed created successfully", b)
}

func (h *Handler) ListBeds(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	beds, err := h.svc.ListBeds(c.Request().Context(), id, c.QueryParam("status"))
	if err != nil {
		return err
	}
	return response.OK(c, "beds retrieved successfully", beds)
}

func (h *Handler) GetBed(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBed(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "bed retrieved successfully", b)
}

func (h *Handler) UpdateBed(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateBedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.UpdateBed(c.Request().Context(), principal(c), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "bed updated successfully", b)
}

func (h *Handler) ListCategories(c echo.Context) error {
	cats, err := h.svc.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, "ward categories retrieved successfully", cats)
}

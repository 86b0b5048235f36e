package bloodbank

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
	g := api.Group("/bloodbank", auth.RequireAuth())
	g.GET("/all", h.ListBanks)
	g.GET("/requests", h.ListRequests)
	g.POST("/request", h.CreateRequest)
	g.GET("/:id", h.GetBank)
	g.GET("/:id/stock", h.Stock)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/register", h.RegisterBank)
	admin.POST("/:id/addstock", h.AddStock)
	admin.PUT("/request/:id/status", h.UpdateRequestStatus)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) RegisterBank(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.RegisterBank(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.Created(c, "blood bank registered successfully", b)
}

func (h *Handler) ListBanks(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{
		"location":   c.QueryParam("location"),
		"blood_type": c.QueryParam("blood_type"),
	}
	banks, total, err := h.svc.ListBanks(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "blood banks retrieved successfully", pagination.NewResponse(banks, total, pg))
}

func (h *Handler) GetBank(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBank(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "blood bank retrieved successfully", b)
}

func (h *Handler) AddStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req AddStockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.AddStock(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "stock added successfully", report)
}

func (h *Handler) Stock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	report, err := h.svc.Stock(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "stock retrieved successfully", report)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	r, err := h.svc.CreateRequest(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return response.Created(c, "blood request submitted successfully", r)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{"status": c.QueryParam("status")}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	items, total, err := h.svc.ListRequests(c.Request().Context(), p, params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "blood requests retrieved successfully", pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateRequestStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.UpdateRequestStatus(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return response.OK(c, "blood request updated successfully", r)
}

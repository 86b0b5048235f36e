package reporting

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/export"
	"github.com/hms/hms/pkg/response"
)

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the reporting API routes. Hospital admins reach
// the hospital-scoped reports; admins reach everything.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleHospitalAdmin))
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
	g.GET("/hospital-statistics", h.HospitalStatistics)
	g.POST("/export/csv", h.ExportCSV)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/user-activity", h.UserActivity)
	admin.GET("/analytics/summary", h.AnalyticsSummary)
}

func principal(c echo.Context) *auth.Principal {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	return p
}

func dateQuery(c echo.Context, name string) (time.Time, error) {
	t, err := ParseDate(c.QueryParam(name))
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return t, nil
}

func rangeQuery(c echo.Context) (time.Time, time.Time, error) {
	start, err := dateQuery(c, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := dateQuery(c, "end_date")
	return start, end, err
}

func hospitalQuery(c echo.Context) (*uuid.UUID, error) {
	raw := c.QueryParam("hospital_id")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
	}
	return &id, nil
}

// ListMeasures returns the measure definitions the caller may evaluate.
func (h *Handler) ListMeasures(c echo.Context) error {
	return response.OK(c, "measures retrieved successfully", h.svc.Measures(principal(c)))
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	start, end, err := rangeQuery(c)
	if err != nil {
		return err
	}
	hospitalID, err := hospitalQuery(c)
	if err != nil {
		return err
	}
	params := Params{Start: start, End: end, HospitalID: hospitalID, Role: c.QueryParam("role")}
	report, err := h.svc.EvaluateMeasure(c.Request().Context(), principal(c), c.Param("id"), params)
	if err != nil {
		return err
	}
	return response.OK(c, "measure evaluated successfully", report)
}

func (h *Handler) HospitalStatistics(c echo.Context) error {
	start, end, err := rangeQuery(c)
	if err != nil {
		return err
	}
	hospitalID, err := hospitalQuery(c)
	if err != nil {
		return err
	}
	report, err := h.svc.HospitalStatistics(c.Request().Context(), principal(c), hospitalID, start, end)
	if err != nil {
		return err
	}
	return response.OK(c, "hospital statistics generated successfully", report)
}

func (h *Handler) UserActivity(c echo.Context) error {
	start, end, err := rangeQuery(c)
	if err != nil {
		return err
	}
	report, err := h.svc.UserActivity(c.Request().Context(), c.QueryParam("role"), start, end)
	if err != nil {
		return err
	}
	return response.OK(c, "user activity report generated successfully", report)
}

func (h *Handler) AnalyticsSummary(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid days")
		}
		days = n
	}
	summary, err := h.svc.Summary(c.Request().Context(), days)
	if err != nil {
		return err
	}
	return response.OK(c, "analytics summary retrieved successfully", summary)
}

// ExportCSV streams the regenerated report as a file download.
func (h *Handler) ExportCSV(c echo.Context) error {
	var req ExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body, err := h.svc.ExportCSV(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return export.Attachment(c, "hospital_report", h.svc.now(), export.ContentTypeCSV, body)
}

package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/export"
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
	g := api.Group("/audit", auth.RequireAuth())
	g.POST("/log-action", h.LogAction)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/logs", h.Logs)
	admin.GET("/security-summary", h.SecuritySummary)
	admin.GET("/user-activity-trail/:id", h.UserTrail)
	admin.POST("/system-event", h.SystemEvent)
	admin.GET("/compliance-report", h.ComplianceReport)
	admin.GET("/failed-logins", h.FailedLogins)
	admin.GET("/data-access-patterns", h.DataAccessPatterns)
	admin.POST("/export-logs", h.Export)
}

func intQuery(c echo.Context, name string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func dateQuery(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := ParseDate(v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return t, nil
}

func (h *Handler) Logs(c echo.Context) error {
	req := ExportRequest{
		StartDate: c.QueryParam("start_date"),
		EndDate:   c.QueryParam("end_date"),
		UserID:    c.QueryParam("user_id"),
		EventType: c.QueryParam("event_type"),
		RiskLevel: c.QueryParam("risk_level"),
		Status:    c.QueryParam("status"),
	}
	f, err := ExportFilter(req)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f.Limit, f.Offset = pg.Limit, pg.Offset

	items, total, err := h.svc.Search(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return response.OK(c, "audit logs retrieved successfully", pagination.NewResponse(nonNil(items), total, pg))
}

func (h *Handler) SecuritySummary(c echo.Context) error {
	summary, err := h.svc.SecuritySummary(c.Request().Context(), intQuery(c, "days", 7))
	if err != nil {
		return err
	}
	return response.OK(c, "security summary retrieved successfully", summary)
}

func (h *Handler) UserTrail(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.UserTrail(c.Request().Context(), id, intQuery(c, "days", defaultSearchDays), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return response.OK(c, "user activity trail retrieved successfully", pagination.NewResponse(nonNil(items), total, pg))
}

func (h *Handler) LogAction(c echo.Context) error {
	var req LogActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	l, err := h.svc.LogAction(c.Request().Context(), p, req, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	return response.Created(c, "action logged successfully", l)
}

func (h *Handler) SystemEvent(c echo.Context) error {
	var req SystemEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	l, err := h.svc.SystemEvent(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return response.Created(c, "system event logged successfully", l)
}

func (h *Handler) ComplianceReport(c echo.Context) error {
	start, err := dateQuery(c, "start_date")
	if err != nil {
		return err
	}
	end, err := dateQuery(c, "end_date")
	if err != nil {
		return err
	}
	report, err := h.svc.ComplianceReport(c.Request().Context(), start, end)
	if err != nil {
		return err
	}
	return response.OK(c, "compliance report generated successfully", report)
}

func (h *Handler) FailedLogins(c echo.Context) error {
	report, err := h.svc.FailedLogins(c.Request().Context(), intQuery(c, "hours", 24))
	if err != nil {
		return err
	}
	return response.OK(c, "failed login report retrieved successfully", report)
}

func (h *Handler) DataAccessPatterns(c echo.Context) error {
	patterns, err := h.svc.DataAccessPatterns(c.Request().Context(), intQuery(c, "days", 7))
	if err != nil {
		return err
	}
	return response.OK(c, "data access patterns retrieved successfully", patterns)
}

// Export streams the file directly rather than wrapping it in the envelope.
func (h *Handler) Export(c echo.Context) error {
	var req ExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := ExportFilter(req)
	if err != nil {
		return err
	}
	body, contentType, err := h.svc.Export(c.Request().Context(), req.Format, f)
	if err != nil {
		return err
	}
	return export.Attachment(c, "audit_logs", h.svc.now(), contentType, body)
}

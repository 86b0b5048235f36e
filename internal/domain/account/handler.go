package account

import (
	"net/http"
	"strings"

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
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/admin/login", h.AdminLogin)
	g.POST("/hospital/login", h.HospitalLogin)
	g.POST("/refresh", h.Refresh)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)

	authed := g.Group("", auth.RequireAuth())
	authed.POST("/logout", h.Logout)
	authed.GET("/profile", h.Profile)
	authed.POST("/change-password", h.ChangePassword)
}

func clientInfo(c echo.Context) ClientInfo {
	return ClientInfo{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.Created(c, "user registered successfully", session)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session, err := h.svc.Login(c.Request().Context(), req, clientInfo(c))
	if err != nil {
		return err
	}
	return response.OK(c, "login successful", session)
}

func (h *Handler) AdminLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session, err := h.svc.AdminLogin(c.Request().Context(), req, clientInfo(c))
	if err != nil {
		return err
	}
	return response.OK(c, "admin login successful", session)
}

func (h *Handler) HospitalLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session, err := h.svc.HospitalLogin(c.Request().Context(), req, clientInfo(c))
	if err != nil {
		return err
	}
	return response.OK(c, "hospital login successful", session)
}

// Refresh reads the refresh token from the body, falling back to the bearer header.
func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	raw := req.RefreshToken
	if raw == "" {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			raw = strings.TrimSpace(parts[1])
		}
	}
	token, err := h.svc.Refresh(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	return response.OK(c, "token refreshed successfully", token)
}

func (h *Handler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.Logout(c.Request().Context(), p, req.RefreshToken); err != nil {
		return err
	}
	return response.OK(c, "logged out successfully", nil)
}

func (h *Handler) Profile(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	profile, err := h.svc.Profile(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return response.OK(c, "profile retrieved successfully", profile)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.ChangePassword(c.Request().Context(), p, req); err != nil {
		return err
	}
	return response.OK(c, "password changed successfully", nil)
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return response.OK(c, "if the email exists a reset link has been sent", nil)
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req); err != nil {
		return err
	}
	return response.OK(c, "password reset successfully", nil)
}

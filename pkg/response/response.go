// Package response renders the JSON envelope shared by every endpoint.
package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/pkg/apperr"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c echo.Context, message string, data interface{}) error {
	return JSON(c, http.StatusOK, message, data)
}

// Created writes a 201 success envelope.
func Created(c echo.Context, message string, data interface{}) error {
	return JSON(c, http.StatusCreated, message, data)
}

// JSON writes a success envelope with the given status.
func JSON(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope.
func Fail(c echo.Context, status int, message string, fields map[string]string) error {
	return c.JSON(status, Envelope{Success: false, Message: message, Errors: fields})
}

// HTTPErrorHandler renders errors returned from handlers and middleware as
// failure envelopes. Internal errors are logged and masked.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message, fields := resolve(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = Fail(c, status, message, fields)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

// Status is the status code a request ends with: the one already written, or
// the one HTTPErrorHandler will write for err.
func Status(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	status, _, _ := resolve(err)
	return status
}

func resolve(err error) (int, string, map[string]string) {
	if ae, ok := apperr.As(err); ok {
		if ae.Kind == apperr.KindInternal {
			return http.StatusInternalServerError, "internal server error", nil
		}
		return ae.Status(), ae.Message, ae.Fields
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		}
		return he.Code, msg, nil
	}

	return http.StatusInternalServerError, "internal server error", nil
}

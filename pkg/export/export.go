// Package export renders tabular results as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeJSON = "application/json"
)

// CSV encodes header followed by rows.
func CSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename builds prefix_YYYYMMDD_HHMMSS.ext for the content type.
func Filename(prefix string, at time.Time, contentType string) string {
	ext := "json"
	if contentType == ContentTypeCSV {
		ext = "csv"
	}
	return prefix + "_" + at.UTC().Format("20060102_150405") + "." + ext
}

// Attachment sends body as a file download instead of a JSON envelope.
func Attachment(c echo.Context, prefix string, at time.Time, contentType string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+Filename(prefix, at, contentType)+`"`)
	return c.Blob(http.StatusOK, contentType, body)
}

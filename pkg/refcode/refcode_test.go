package refcode

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Format(t *testing.T) {
	now := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	code := New("HOSP", now, 6)
	assert.Regexp(t, regexp.MustCompile(`^HOSP20260309[A-Z0-9]{6}$`), code)
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := New("SLOT", time.Now(), 8)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	caracas := time.FixedZone("VET", -4*60*60)
	at := time.Date(2024, 2, 1, 20, 30, 0, 0, caracas)
	assert.Equal(t, "2024-02-02T00:30:00Z", formatTimePtr(&at))

	utc := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-02-01T00:00:00Z", formatTimePtr(&utc))
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntitlementGrantCovers(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	g := &EntitlementGrant{ValidFrom: from, ValidUntil: until}

	assert.False(t, g.Covers(from.Add(-time.Nanosecond)))
	assert.True(t, g.Covers(from))
	assert.True(t, g.Covers(from.AddDate(0, 0, 10)))
	assert.True(t, g.Covers(until))
	assert.False(t, g.Covers(until.Add(time.Nanosecond)))
}

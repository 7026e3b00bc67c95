package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	stop := operationTimer("widget_poll", log, clock)
	now = now.Add(2 * time.Second)

	assert.Equal(t, 2*time.Second, stop())
	assert.Contains(t, buf.String(), `"operation":"widget_poll"`)
	assert.NotContains(t, buf.String(), "Slow operation detected")
}

func TestOperationTimer_WarnsWhenSlow(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	stop := operationTimer("widget_poll", log, clock)
	now = now.Add(SlowOperationThreshold + time.Second)
	stop()

	assert.Contains(t, buf.String(), "Slow operation detected")
}

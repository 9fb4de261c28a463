package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	current := base
	timer := startTimerWith(func() time.Time { return current })

	assert.Equal(t, int64(0), timer.ElapsedMs())

	current = base.Add(1500*time.Millisecond + 400*time.Microsecond)
	assert.Equal(t, int64(1500), timer.ElapsedMs())
	assert.Equal(t, 1500*time.Millisecond, timer.Elapsed())
}

func TestZeroTimer(t *testing.T) {
	var timer Timer
	assert.Equal(t, int64(0), timer.ElapsedMs())
	assert.Equal(t, time.Duration(0), timer.Elapsed())
}

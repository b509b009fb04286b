package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCooldown(t *testing.T) {
	assert.Equal(t, "01:00", FormatCooldown(60*time.Second))
	assert.Equal(t, "00:59", FormatCooldown(59*time.Second))
	assert.Equal(t, "00:00", FormatCooldown(0))
	assert.Equal(t, "00:00", FormatCooldown(-5*time.Second))
	assert.Equal(t, "01:15", FormatCooldown(75*time.Second))
	assert.Equal(t, "10:00", FormatCooldown(10*time.Minute))
}

func TestFormatCooldownRoundsPartialSecondsUp(t *testing.T) {
	// The display must not read 00:00 while any cooldown remains.
	assert.Equal(t, "00:01", FormatCooldown(300*time.Millisecond))
	assert.Equal(t, "01:00", FormatCooldown(59*time.Second+500*time.Millisecond))
}

func TestCooldownTicksDownToZero(t *testing.T) {
	// A 60 second window, observed once per second: resend stays blocked
	// for 60 ticks and opens after the last one.
	remaining := 60 * time.Second
	for tick := 0; tick < 60; tick++ {
		assert.Greater(t, remaining, time.Duration(0), "tick %d", tick)
		remaining -= time.Second
	}
	assert.Equal(t, time.Duration(0), remaining)
	assert.Equal(t, "00:00", FormatCooldown(remaining))
}

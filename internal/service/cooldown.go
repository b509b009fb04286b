package service

import (
	"fmt"
	"time"
)

// FormatCooldown renders a remaining cooldown as mm:ss for display next to
// the resend button. Negative durations clamp to zero; partial seconds
// round up so the display never reads 00:00 while the cooldown still holds.
func FormatCooldown(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	secs := int((remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Package format provides shared string, unit and time formatting utilities.
package format

import (
	"strconv"
	"strings"
	"time"
)

// units are the calendar steps used by Elapsed, largest first.
var units = []struct {
	step   time.Duration
	suffix string
}{
	{24 * time.Hour, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
	{time.Second, "s"},
}

// Elapsed renders d with its two most significant units: "45s", "5m 30s",
// "2h 15m", "3d 4h". Sub-second durations are "0s"; the sign is dropped.
func Elapsed(d time.Duration) string {
	d = d.Abs()
	if d < time.Second {
		return "0s"
	}

	var parts []string
	for _, u := range units {
		if len(parts) == 0 && d < u.step {
			continue
		}
		n := d / u.step
		d -= n * u.step
		parts = append(parts, strconv.FormatInt(int64(n), 10)+u.suffix)
		if len(parts) == 2 {
			break
		}
	}
	return strings.Join(parts, " ")
}

// justNow is the age under which Ago stops counting.
const justNow = 10 * time.Second

// Ago renders how long before now t was, in its largest unit: "30s ago",
// "5m ago", "2d ago". A zero t is "never".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Abs()
	if d < justNow {
		return "just now"
	}
	head, _, _ := strings.Cut(Elapsed(d), " ")
	return head + " ago"
}

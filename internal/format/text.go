package format

import (
	"fmt"
	"strings"
	"time"
)

// Emoji for the kinds of thing Pulse reports on.
var emoji = map[string]string{
	"reminder": "⏰",
	"habit":    "💪",
	"task":     "📝",
	"report":   "📊",
	"health":   "💚",
	"file":     "📁",
	"settings": "⚙️",
	"success":  "✅",
	"error":    "❌",
	"streak":   "🔥",
}

// Emoji returns the marker for kind, or "" for unknown kinds.
func Emoji(kind string) string {
	return emoji[kind]
}

// Decorate prefixes text with the marker for kind.
func Decorate(kind, text string) string {
	if e := emoji[kind]; e != "" {
		return e + " " + text
	}
	return text
}

// ProgressBar draws done/total as a bar of width cells followed by the
// percentage, e.g. "▓▓▓░░ 60%".
func ProgressBar(done, total, width int) string {
	if width <= 0 {
		width = 10
	}
	pct := Percent(done, total)
	filled := pct * width / 100
	return strings.Repeat("▓", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %d%%", pct)
}

// Percent returns done/total as a whole percentage clamped to 0..100.
func Percent(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return done * 100 / total
}

// RelativeTime describes t relative to now: "in 3 hours", "2 days ago",
// "now".
func RelativeTime(t, now time.Time) string {
	d := t.Sub(now)
	future := d > 0
	if !future {
		d = -d
	}

	var n int
	var unit string
	switch {
	case d >= 24*time.Hour:
		n, unit = int(d/(24*time.Hour)), "day"
	case d >= time.Hour:
		n, unit = int(d/time.Hour), "hour"
	case d >= time.Minute:
		n, unit = int(d/time.Minute), "minute"
	default:
		return "now"
	}
	if n != 1 {
		unit += "s"
	}
	if future {
		return fmt.Sprintf("in %d %s", n, unit)
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// Truncate shortens s to max runes, ending with "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// Package dateparse resolves the informal date expressions people type
// into chat ("tomorrow at 6pm", "in 20 minutes", "friday") into a
// concrete time in the caller's location.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is used when a day is named without a time of day.
const DefaultHour = 9

var (
	relativePattern = regexp.MustCompile(`(?i)\bin (\d+)\s*(minute|min|hour|hr|day)s?\b`)
	clockPattern    = regexp.MustCompile(`(?i)\bat (\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	bareTimePattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	tomorrowPattern = regexp.MustCompile(`(?i)\btomorrow\b`)
	todayPattern    = regexp.MustCompile(`(?i)\b(today|tonight)\b`)
	weekdayPattern  = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	nextPattern     = regexp.MustCompile(`(?i)\bnext (week|month)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parse finds a date expression in text relative to now. The result is
// in now's location. Relative offsets ("in 2 hours") win over everything
// else; otherwise a named day and a clock time are combined. A named day
// without a time lands at DefaultHour; a clock time without a day lands
// on the next occurrence of that time. "today" alone means the top of
// the next hour.
func Parse(text string, now time.Time) (time.Time, bool) {
	if m := relativePattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		switch strings.ToLower(m[2]) {
		case "minute", "min":
			return now.Add(time.Duration(n) * time.Minute), true
		case "hour", "hr":
			return now.Add(time.Duration(n) * time.Hour), true
		default:
			return now.AddDate(0, 0, n), true
		}
	}

	hour, minute, hasClock := clock(text)
	day, hasDay, isToday := namedDay(text, now)

	switch {
	case hasDay && hasClock:
		return at(day, hour, minute), true
	case hasDay && isToday:
		return at(now, now.Hour(), 0).Add(time.Hour), true
	case hasDay:
		return at(day, DefaultHour, 0), true
	case hasClock:
		t := at(now, hour, minute)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true
	}
	return time.Time{}, false
}

// namedDay returns the calendar day text refers to.
func namedDay(text string, now time.Time) (day time.Time, ok, today bool) {
	switch {
	case tomorrowPattern.MatchString(text):
		return now.AddDate(0, 0, 1), true, false
	case todayPattern.MatchString(text):
		return now, true, true
	}
	if m := nextPattern.FindStringSubmatch(text); m != nil {
		if strings.EqualFold(m[1], "week") {
			return now.AddDate(0, 0, 7), true, false
		}
		return now.AddDate(0, 1, 0), true, false
	}
	if m := weekdayPattern.FindStringSubmatch(text); m != nil {
		target := weekdays[strings.ToLower(m[1])]
		days := int(target - now.Weekday())
		if days <= 0 {
			days += 7
		}
		return now.AddDate(0, 0, days), true, false
	}
	return time.Time{}, false, false
}

// clock extracts a 24-hour time from "at 6", "at 18:30", "6pm" or
// "7:15 am".
func clock(text string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		m = bareTimePattern.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// Format renders t for chat replies, e.g. "Wed, Mar 4, 2026, 06:00 PM".
func Format(t time.Time) string {
	return t.Format("Mon, Jan 2, 2006, 03:04 PM")
}

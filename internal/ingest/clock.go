package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// weekdayOrder is the fixed Monday through Sunday ordering applied wherever
// weekday sets are formatted for display.
var weekdayOrder = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// weekdayNames maps full names and three letter abbreviations to the
// canonical capitalized weekday name.
var weekdayNames = map[string]string{
	"monday": "Monday", "mon": "Monday",
	"tuesday": "Tuesday", "tue": "Tuesday",
	"wednesday": "Wednesday", "wed": "Wednesday",
	"thursday": "Thursday", "thu": "Thursday",
	"friday": "Friday", "fri": "Friday",
	"saturday": "Saturday", "sat": "Saturday",
	"sunday": "Sunday", "sun": "Sunday",
}

// ParseWeekdays extracts canonical weekday names from free text. Comma,
// semicolon, slash, and whitespace all act as separators; unrecognized
// tokens are dropped; duplicates collapse. The result is ordered Monday
// through Sunday regardless of input order, and is empty when no token
// matched.
func ParseWeekdays(raw string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || unicode.IsSpace(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if name, ok := weekdayNames[token]; ok {
			seen[name] = struct{}{}
		}
	}

	days := make([]string, 0, len(seen))
	for _, name := range weekdayOrder {
		if _, ok := seen[name]; ok {
			days = append(days, name)
		}
	}
	return days
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s*([AaPp])\.?[Mm]\.?)?$`)

// ParseTimeOfDay normalizes a time value to a 24-hour "HH:MM" string. Three
// input shapes are accepted: a 12-hour clock with AM/PM suffix, a 24-hour
// clock (both optionally carrying seconds), and a spreadsheet fractional-day
// decimal in [0, 1). Everything else reports ok=false.
func ParseTimeOfDay(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if m := clockPattern.FindStringSubmatch(s); m != nil {
		return clockFromMatch(m)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return clockFromFraction(f)
	}

	return "", false
}

func clockFromMatch(m []string) (string, bool) {
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return "", false
	}
	if m[3] != "" {
		if sec, _ := strconv.Atoi(m[3]); sec > 59 {
			return "", false
		}
	}

	meridiem := strings.ToLower(m[4])
	switch meridiem {
	case "":
		if hour > 23 {
			return "", false
		}
	case "a":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	case "p":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// clockFromFraction reinterprets a numeric cell value as a fraction of 24
// hours. Binary workbook readers hand back raw fractions for time formatted
// cells, so any value in [0, 1) that lands on an hour below 24 is
// opportunistically treated as a time.
func clockFromFraction(f float64) (string, bool) {
	if f < 0 || f >= 1 {
		return "", false
	}
	total := int(math.Round(f * 86400))
	hour := total / 3600
	if hour >= 24 {
		return "", false
	}
	minute := (total % 3600) / 60
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// MinutesOfDay converts a parseable time-of-day value to minutes after
// midnight.
func MinutesOfDay(clock string) (int, bool) {
	normalized, ok := ParseTimeOfDay(clock)
	if !ok {
		return 0, false
	}
	hour, _ := strconv.Atoi(normalized[:2])
	minute, _ := strconv.Atoi(normalized[3:])
	return hour*60 + minute, true
}

// DurationMinutes computes the length of a meeting window in minutes.
// Unparseable inputs and non-positive durations report ok=false.
func DurationMinutes(start, end string) (int, bool) {
	s, ok := MinutesOfDay(start)
	if !ok {
		return 0, false
	}
	e, ok := MinutesOfDay(end)
	if !ok {
		return 0, false
	}
	if e <= s {
		return 0, false
	}
	return e - s, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ParseDate parses a calendar date from the common text layouts or from a
// spreadsheet serial number. MM/DD ordering is tried before DD/MM, so the
// latter only applies to values the former rejects.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

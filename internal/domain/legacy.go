package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// clock layouts of toLocaleTimeString() as stored by the first app versions
var clockLayouts = []string{
	"3:04:05 PM",
	"15:04:05",
	"3:04 PM",
	"15:04",
}

// textFromJSON reads a field stored either as a JSON string or as a bare
// value. Numbers keep their literal text, null becomes empty.
func textFromJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// ParseClockTime puts a locale clock time such as "10:30:00 AM" on the
// calendar day of date.
func ParseClockTime(date, clock string) (time.Time, bool) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, false
	}
	clock = strings.NewReplacer("\u202f", " ", "\u00a0", " ").Replace(strings.TrimSpace(clock))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(clock)); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// timeFromJSON decodes a timestamp field. ok is false when the field is
// absent or null; clockOnly marks values that were a bare clock time.
func timeFromJSON(raw json.RawMessage, date string) (t time.Time, ok bool, clockOnly bool) {
	text := textFromJSON(raw)
	if text == "" {
		return time.Time{}, false, false
	}
	if t, err := ParseTimestamp(text); err == nil {
		return t, true, false
	}
	if t, ok := ParseClockTime(date, text); ok {
		return t, true, true
	}
	return time.Time{}, true, false
}

func (w *Workout) UnmarshalJSON(data []byte) error {
	type plain Workout
	var aux struct {
		plain
		StartTime json.RawMessage `json:"startTime"`
		EndTime   json.RawMessage `json:"endTime"`
		Duration  json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	decoded := Workout(aux.plain)
	decoded.Duration = textFromJSON(aux.Duration)

	// unreadable start times fall back to the zero time
	decoded.StartTime, _, _ = timeFromJSON(aux.StartTime, decoded.Date)

	if end, present, clockOnly := timeFromJSON(aux.EndTime, decoded.Date); present {
		switch {
		case end.IsZero():
			// finished, end unknown
			end = decoded.StartTime
		case clockOnly && end.Before(decoded.StartTime):
			// finished after midnight
			end = end.Add(24 * time.Hour)
		}
		decoded.EndTime = &end
	}

	*w = decoded
	return nil
}

func (m *Meal) UnmarshalJSON(data []byte) error {
	type plain Meal
	var aux struct {
		plain
		Calories json.RawMessage `json:"calories"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	decoded := Meal(aux.plain)
	decoded.Calories = textFromJSON(aux.Calories)
	*m = decoded
	return nil
}

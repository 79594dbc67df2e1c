package stats

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"

	"github.com/2beens/fittrack/internal/domain"
)

const (
	UnknownMonth      = "Unknown"
	DefaultRecentSize = 5
)

type MonthGroup struct {
	Month    string           `json:"month"`
	Workouts []domain.Workout `json:"workouts"`
	Count    int              `json:"count"`
}

type Summary struct {
	TotalWorkouts int              `json:"totalWorkouts"`
	TotalMinutes  int              `json:"totalMinutes"`
	Recent        []domain.Workout `json:"recent"`
}

// ParseError marks one record whose numeric text field was skipped.
type ParseError struct {
	ID    string
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record [%s] field [%s] value %q: %s", e.ID, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MonthLabel returns "<Month> <year>" from the workout date, falling back to
// the start time and finally to UnknownMonth.
func MonthLabel(w domain.Workout) string {
	if t, err := domain.ParseDate(w.Date); err == nil {
		return t.Format("January 2006")
	}
	if !w.StartTime.IsZero() {
		return w.StartTime.Format("January 2006")
	}
	return UnknownMonth
}

// GroupByMonth groups workouts by month label. Groups appear in first-seen
// order and keep the input order inside each group.
func GroupByMonth(workouts []domain.Workout) []MonthGroup {
	var groups []MonthGroup
	index := make(map[string]int)
	for _, w := range workouts {
		label := MonthLabel(w)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, MonthGroup{Month: label})
		}
		groups[i].Workouts = append(groups[i].Workouts, w)
		groups[i].Count++
	}
	return groups
}

// TotalCalories sums meal calories. Records with non-numeric or negative
// values are skipped and reported in the returned error; the sum of the
// valid records is always returned.
func TotalCalories(meals []domain.Meal) (int, error) {
	total := 0
	var errs error
	for _, m := range meals {
		n, err := domain.ParseNonNegativeInt(m.Calories)
		if err != nil {
			errs = multierr.Append(errs, &ParseError{ID: m.ID, Field: "calories", Value: m.Calories, Err: err})
			continue
		}
		total = addSaturating(total, n)
	}
	return total, errs
}

// TotalDuration sums workout durations in minutes. An empty duration is an
// unfinished workout and counts as zero.
func TotalDuration(workouts []domain.Workout) (int, error) {
	total := 0
	var errs error
	for _, w := range workouts {
		if w.Duration == "" {
			continue
		}
		n, err := domain.ParseNonNegativeInt(w.Duration)
		if err != nil {
			errs = multierr.Append(errs, &ParseError{ID: w.ID, Field: "duration", Value: w.Duration, Err: err})
			continue
		}
		total = addSaturating(total, n)
	}
	return total, errs
}

// addSaturating adds two non-negative values, stopping at math.MaxInt.
func addSaturating(total, n int) int {
	if n > math.MaxInt-total {
		return math.MaxInt
	}
	return total + n
}

// ComputeDuration returns the whole minutes between start and end, never
// negative.
func ComputeDuration(start, end time.Time) int {
	minutes := int(end.Sub(start) / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}

// Recent returns the last n workouts, newest first.
func Recent(workouts []domain.Workout, n int) []domain.Workout {
	if n <= 0 {
		return []domain.Workout{}
	}
	if n > len(workouts) {
		n = len(workouts)
	}
	out := make([]domain.Workout, 0, n)
	for i := len(workouts) - 1; i >= len(workouts)-n; i-- {
		out = append(out, workouts[i])
	}
	return out
}

// MealsOn returns meals logged on the calendar day of date.
func MealsOn(meals []domain.Meal, date time.Time) []domain.Meal {
	y, m, d := date.Date()
	out := []domain.Meal{}
	for _, meal := range meals {
		t, err := domain.ParseDate(meal.Date)
		if err != nil {
			continue
		}
		if ty, tm, td := t.Date(); ty == y && tm == m && td == d {
			out = append(out, meal)
		}
	}
	return out
}

// Summarize builds the statistics overview. Durations that fail to parse are
// left out of TotalMinutes and reported in the error.
func Summarize(workouts []domain.Workout, recent int) (Summary, error) {
	minutes, err := TotalDuration(workouts)
	return Summary{
		TotalWorkouts: len(workouts),
		TotalMinutes:  minutes,
		Recent:        Recent(workouts, recent),
	}, err
}

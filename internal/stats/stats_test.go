package stats

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/2beens/fittrack/internal/domain"
)

func TestTotalCalories(t *testing.T) {
	total, err := TotalCalories(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	total, err = TotalCalories([]domain.Meal{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	total, err = TotalCalories([]domain.Meal{
		{ID: "1", Calories: "100"},
		{ID: "2", Calories: "250"},
	})
	require.NoError(t, err)
	assert.Equal(t, 350, total)
}

func TestTotalCalories_SkipsInvalidRecords(t *testing.T) {
	meals := []domain.Meal{
		{ID: "1", Calories: "100"},
		{ID: "2", Calories: "lots"},
		{ID: "3", Calories: "-40"},
		{ID: "4", Calories: "250"},
	}

	total, err := TotalCalories(meals)
	assert.Equal(t, 350, total)
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)

	var parseErr *ParseError
	require.True(t, errors.As(errs[0], &parseErr))
	assert.Equal(t, "2", parseErr.ID)
	assert.Equal(t, "calories", parseErr.Field)
	require.True(t, errors.As(errs[1], &parseErr))
	assert.Equal(t, "3", parseErr.ID)
}

func TestTotalDuration(t *testing.T) {
	workouts := []domain.Workout{
		{ID: "1", Duration: "45"},
		{ID: "2"}, // unfinished
		{ID: "3", Duration: "30"},
		{ID: "4", Duration: "abc"},
	}

	total, err := TotalDuration(workouts)
	assert.Equal(t, 75, total)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)

	total, err = TotalDuration(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestTotals_Saturate(t *testing.T) {
	huge := strconv.Itoa(math.MaxInt - 10)

	total, err := TotalCalories([]domain.Meal{
		{ID: "1", Calories: huge},
		{ID: "2", Calories: "500"},
		{ID: "3", Calories: huge},
	})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, total)

	total, err = TotalDuration([]domain.Workout{
		{ID: "1", Duration: "20"},
		{ID: "2", Duration: huge},
	})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, total)
}

func TestComputeDuration(t *testing.T) {
	start, err := domain.ParseTimestamp("2024-01-01T10:00:00")
	require.NoError(t, err)
	end, err := domain.ParseTimestamp("2024-01-01T10:45:00")
	require.NoError(t, err)

	assert.Equal(t, 45, ComputeDuration(start, end))
	// floor, not round
	assert.Equal(t, 45, ComputeDuration(start, end.Add(59*time.Second)))
	// clamped
	assert.Equal(t, 0, ComputeDuration(end, start))
	assert.Equal(t, 0, ComputeDuration(start, start))
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "January 2024", MonthLabel(domain.Workout{Date: "2024-01-15"}))
	assert.Equal(t, "March 2023", MonthLabel(domain.Workout{Date: "3/2/2023"}))
	assert.Equal(t, "July 2022", MonthLabel(domain.Workout{
		Date:      "garbage",
		StartTime: time.Date(2022, 7, 4, 9, 0, 0, 0, time.UTC),
	}))
	assert.Equal(t, UnknownMonth, MonthLabel(domain.Workout{}))
}

func TestGroupByMonth(t *testing.T) {
	workouts := []domain.Workout{
		{ID: "1", Date: "2024-02-01"},
		{ID: "2", Date: "2024-01-10"},
		{ID: "3", Date: "2024-02-20"},
		{ID: "4", Date: "???"},
		{ID: "5", Date: "2024-01-02"},
	}

	groups := GroupByMonth(workouts)
	require.Len(t, groups, 3)

	assert.Equal(t, "February 2024", groups[0].Month)
	assert.Equal(t, []string{"1", "3"}, ids(groups[0].Workouts))
	assert.Equal(t, 2, groups[0].Count)

	assert.Equal(t, "January 2024", groups[1].Month)
	assert.Equal(t, []string{"2", "5"}, ids(groups[1].Workouts))

	assert.Equal(t, UnknownMonth, groups[2].Month)
	assert.Equal(t, 1, groups[2].Count)

	// input untouched
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(workouts))
}

func TestGroupByMonth_StableAndExhaustive(t *testing.T) {
	f := gofakeit.New(2024)
	for run := 0; run < 50; run++ {
		n := f.Number(0, 60)
		workouts := make([]domain.Workout, 0, n)
		for i := 0; i < n; i++ {
			date := f.DateRange(
				time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			)
			workouts = append(workouts, domain.Workout{
				ID:   f.UUID(),
				Date: domain.FormatDate(date),
			})
		}

		groups := GroupByMonth(workouts)

		// exhaustive: every record in exactly one group, counts add up
		seen := make(map[string]int)
		sum := 0
		for _, g := range groups {
			assert.Equal(t, len(g.Workouts), g.Count)
			sum += g.Count
			for _, w := range g.Workouts {
				seen[w.ID]++
				assert.Equal(t, g.Month, MonthLabel(w))
			}
		}
		assert.Equal(t, len(workouts), sum)
		for _, w := range workouts {
			assert.Equal(t, 1, seen[w.ID])
		}

		// group order is first occurrence order of labels
		var firstSeen []string
		known := map[string]bool{}
		for _, w := range workouts {
			if l := MonthLabel(w); !known[l] {
				known[l] = true
				firstSeen = append(firstSeen, l)
			}
		}
		var groupOrder []string
		for _, g := range groups {
			groupOrder = append(groupOrder, g.Month)
		}
		assert.Equal(t, firstSeen, groupOrder)

		// stable: relative input order kept inside every group
		position := make(map[string]int)
		for i, w := range workouts {
			position[w.ID] = i
		}
		for _, g := range groups {
			for i := 1; i < len(g.Workouts); i++ {
				assert.Less(t, position[g.Workouts[i-1].ID], position[g.Workouts[i].ID])
			}
		}
	}
}

func TestRecent(t *testing.T) {
	workouts := []domain.Workout{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	assert.Equal(t, []string{"3", "2"}, ids(Recent(workouts, 2)))
	assert.Equal(t, []string{"3", "2", "1"}, ids(Recent(workouts, 10)))
	assert.Empty(t, Recent(workouts, 0))
	assert.Empty(t, Recent(nil, 5))
	assert.Equal(t, []string{"1", "2", "3"}, ids(workouts))
}

func TestMealsOn(t *testing.T) {
	meals := []domain.Meal{
		{ID: "1", Date: "2024-01-01"},
		{ID: "2", Date: "1/2/2024"},
		{ID: "3", Date: "2024-01-02"},
		{ID: "4", Date: "bad"},
	}
	day := time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC)

	on := MealsOn(meals, day)
	require.Len(t, on, 2)
	assert.Equal(t, "2", on[0].ID)
	assert.Equal(t, "3", on[1].ID)

	assert.Empty(t, MealsOn(meals, day.AddDate(1, 0, 0)))
}

func TestSummarize(t *testing.T) {
	workouts := []domain.Workout{
		{ID: "1", Duration: "30"},
		{ID: "2", Duration: "45"},
		{ID: "3"},
	}
	s, err := Summarize(workouts, DefaultRecentSize)
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalWorkouts)
	assert.Equal(t, 75, s.TotalMinutes)
	assert.Equal(t, []string{"3", "2", "1"}, ids(s.Recent))
}

func ids(workouts []domain.Workout) []string {
	out := make([]string, 0, len(workouts))
	for _, w := range workouts {
		out = append(out, w.ID)
	}
	return out
}

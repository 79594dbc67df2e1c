package domain

import "time"

// Exercise categories offered by the workout form. Exercise names are not
// restricted to this list.
var ExerciseCategories = []string{"Abs", "Back", "Biceps", "Cardio", "Chest", "Legs"}

type Exercise struct {
	Name   string   `json:"name"`
	Sets   int      `json:"sets"`
	Reps   *int     `json:"reps,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

type Workout struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Date       string     `json:"date"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Bodyweight string     `json:"bodyweight,omitempty"`
	Notes      string     `json:"notes"`
	Exercises  []Exercise `json:"exercises"`
	// Duration is whole minutes as text, set once when the workout is finished.
	Duration string `json:"duration,omitempty"`
}

func (w Workout) RecordID() string { return w.ID }

func (w Workout) Finished() bool {
	return w.EndTime != nil
}

// Clone returns a copy sharing no memory with w.
func (w Workout) Clone() Workout {
	if w.EndTime != nil {
		end := *w.EndTime
		w.EndTime = &end
	}
	if w.Exercises != nil {
		exercises := make([]Exercise, len(w.Exercises))
		for i, e := range w.Exercises {
			if e.Reps != nil {
				reps := *e.Reps
				e.Reps = &reps
			}
			if e.Weight != nil {
				weight := *e.Weight
				e.Weight = &weight
			}
			exercises[i] = e
		}
		w.Exercises = exercises
	}
	return w
}

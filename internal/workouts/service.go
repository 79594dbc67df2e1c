package workouts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/records"
	"github.com/2beens/fittrack/internal/stats"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
)

const (
	CollectionKey      = "workouts"
	defaultWorkoutName = "Workout"
)

var (
	ErrDraftNotFound   = errors.New("draft not found")
	ErrInvalidExercise = errors.New("invalid exercise")
	ErrInvalidWorkout  = errors.New("invalid workout")
)

type StartParams struct {
	Name      string     `json:"name"`
	StartTime *time.Time `json:"startTime,omitempty"`
}

type DraftPatch struct {
	Name       *string    `json:"name,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Bodyweight *string    `json:"bodyweight,omitempty"`
	StartTime  *time.Time `json:"startTime,omitempty"`
}

// QuickAdd is a finished workout logged with only a name and minutes.
type QuickAdd struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
}

type workoutStore = records.Store[domain.Workout]

type Service struct {
	registry *records.Registry[*workoutStore]
	drafts   *draftBook
	ids      *records.IDGenerator
	metrics  *metrics.Manager
	now      func() time.Time
}

func NewService(kv kvstore.Store, partitionByUser bool, metricsManager *metrics.Manager) *Service {
	return &Service{
		registry: records.NewRegistry(CollectionKey, partitionByUser, func(key string) *workoutStore {
			return records.NewStore[domain.Workout](kv, key)
		}),
		drafts:  newDraftBook(),
		ids:     records.NewIDGenerator(),
		metrics: metricsManager,
		now:     time.Now,
	}
}

func (s *Service) store(ctx context.Context, sess *auth.Session) (*workoutStore, error) {
	if sess == nil {
		return nil, auth.ErrNoSession
	}
	store, err := s.registry.Open(ctx, sess.UserID)
	if err != nil {
		var decodeErr *records.DecodeError
		if errors.As(err, &decodeErr) {
			log.Warnf("workouts collection [%s] could not be decoded, starting empty: %s", decodeErr.Key, decodeErr.Err)
			if s.metrics != nil {
				s.metrics.CounterDecodeErrors.With(prometheus.Labels{"collection": CollectionKey}).Inc()
			}
			return store, nil
		}
		return nil, fmt.Errorf("open workouts: %w", err)
	}
	return store, nil
}

func (s *Service) observeWriteErr(err error) {
	if err == nil || !records.IsWriteError(err) {
		return
	}
	log.Errorf("workouts write failed, keeping in-memory state: %s", err)
	if s.metrics != nil {
		s.metrics.CounterWriteErrors.With(prometheus.Labels{"collection": CollectionKey}).Inc()
	}
}

func (s *Service) setDraftsGauge(delta float64) {
	if s.metrics != nil {
		s.metrics.GaugeDrafts.Add(delta)
	}
}

func (s *Service) StartDraft(_ context.Context, sess *auth.Session, params StartParams) (domain.Workout, error) {
	if sess == nil {
		return domain.Workout{}, auth.ErrNoSession
	}

	start := s.now()
	if params.StartTime != nil && !params.StartTime.IsZero() {
		start = *params.StartTime
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = defaultWorkoutName
	}

	w := domain.Workout{
		ID:        s.ids.Next(),
		Name:      name,
		Date:      domain.FormatDate(start),
		StartTime: start,
		Exercises: []domain.Exercise{},
	}
	s.drafts.put(sess.UserID, w)
	s.setDraftsGauge(1)
	return w, nil
}

func (s *Service) Draft(sess *auth.Session, id string) (domain.Workout, error) {
	if sess == nil {
		return domain.Workout{}, auth.ErrNoSession
	}
	w, ok := s.drafts.get(sess.UserID, id)
	if !ok {
		return domain.Workout{}, ErrDraftNotFound
	}
	return w, nil
}

func (s *Service) Drafts(sess *auth.Session) []domain.Workout {
	if sess == nil {
		return []domain.Workout{}
	}
	return s.drafts.list(sess.UserID)
}

// UpdateDraft edits a draft. A new start time also moves the calendar date.
func (s *Service) UpdateDraft(sess *auth.Session, id string, patch DraftPatch) (domain.Workout, error) {
	if sess == nil {
		return domain.Workout{}, auth.ErrNoSession
	}
	return s.drafts.update(sess.UserID, id, func(w *domain.Workout) error {
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return fmt.Errorf("%w: name empty", ErrInvalidWorkout)
			}
			w.Name = name
		}
		if patch.Notes != nil {
			w.Notes = *patch.Notes
		}
		if patch.Bodyweight != nil {
			w.Bodyweight = strings.TrimSpace(*patch.Bodyweight)
		}
		if patch.StartTime != nil && !patch.StartTime.IsZero() {
			w.StartTime = *patch.StartTime
			w.Date = domain.FormatDate(*patch.StartTime)
		}
		return nil
	})
}

func validateExercise(ex domain.Exercise) error {
	switch {
	case strings.TrimSpace(ex.Name) == "":
		return fmt.Errorf("%w: name empty", ErrInvalidExercise)
	case ex.Sets < 0:
		return fmt.Errorf("%w: sets negative", ErrInvalidExercise)
	case ex.Reps != nil && *ex.Reps < 0:
		return fmt.Errorf("%w: reps negative", ErrInvalidExercise)
	case ex.Weight != nil && *ex.Weight < 0:
		return fmt.Errorf("%w: weight negative", ErrInvalidExercise)
	}
	return nil
}

func (s *Service) AddExercise(sess *auth.Session, id string, ex domain.Exercise) (domain.Workout, error) {
	if sess == nil {
		return domain.Workout{}, auth.ErrNoSession
	}
	if err := validateExercise(ex); err != nil {
		return domain.Workout{}, err
	}
	ex.Name = strings.TrimSpace(ex.Name)
	return s.drafts.update(sess.UserID, id, func(w *domain.Workout) error {
		w.Exercises = append(w.Exercises, ex)
		return nil
	})
}

// FinishDraft stamps the end time and duration and appends the workout to
// the collection. On a *records.WriteError the workout is still finished
// and returned together with the error.
func (s *Service) FinishDraft(ctx context.Context, sess *auth.Session, id string) (_ domain.Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.finish")
	span.SetAttributes(attribute.String("workout.id", id))
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	store, err := s.store(ctx, sess)
	if err != nil {
		return domain.Workout{}, err
	}

	draft, ok := s.drafts.get(sess.UserID, id)
	if !ok {
		return domain.Workout{}, ErrDraftNotFound
	}

	end := s.now()
	if end.Before(draft.StartTime) {
		end = draft.StartTime
	}
	draft.EndTime = &end
	draft.Duration = strconv.Itoa(stats.ComputeDuration(draft.StartTime, end))

	if err := store.Add(ctx, draft); err != nil {
		if !records.IsWriteError(err) {
			return domain.Workout{}, fmt.Errorf("finish workout: %w", err)
		}
		s.observeWriteErr(err)
		s.finished(sess.UserID, id)
		return draft, err
	}

	s.finished(sess.UserID, id)
	return draft, nil
}

func (s *Service) finished(owner, id string) {
	if s.drafts.remove(owner, id) {
		s.setDraftsGauge(-1)
	}
	if s.metrics != nil {
		s.metrics.CounterWorkoutsFinished.Inc()
	}
}

func (s *Service) DiscardDraft(sess *auth.Session, id string) error {
	if sess == nil {
		return auth.ErrNoSession
	}
	if !s.drafts.remove(sess.UserID, id) {
		return ErrDraftNotFound
	}
	s.setDraftsGauge(-1)
	return nil
}

// Add logs an already finished workout from a name and duration in minutes.
func (s *Service) Add(ctx context.Context, sess *auth.Session, params QuickAdd) (_ domain.Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.add")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return domain.Workout{}, fmt.Errorf("%w: name empty", ErrInvalidWorkout)
	}
	minutes, err := domain.ParseNonNegativeInt(params.Duration)
	if err != nil {
		return domain.Workout{}, fmt.Errorf("%w: duration: %s", ErrInvalidWorkout, err)
	}
	if minutes > domain.MaxWorkoutMinutes {
		return domain.Workout{}, fmt.Errorf("%w: duration above %d minutes", ErrInvalidWorkout, domain.MaxWorkoutMinutes)
	}

	store, err := s.store(ctx, sess)
	if err != nil {
		return domain.Workout{}, err
	}

	end := s.now()
	start := end.Add(-time.Duration(minutes) * time.Minute)
	w := domain.Workout{
		ID:        s.ids.Next(),
		Name:      name,
		Date:      domain.FormatDate(end),
		StartTime: start,
		EndTime:   &end,
		Exercises: []domain.Exercise{},
		Duration:  strconv.Itoa(minutes),
	}

	if err := store.Add(ctx, w); err != nil {
		if !records.IsWriteError(err) {
			return domain.Workout{}, fmt.Errorf("add workout: %w", err)
		}
		s.observeWriteErr(err)
		return w, err
	}
	return w, nil
}

func (s *Service) Remove(ctx context.Context, sess *auth.Session, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.remove")
	span.SetAttributes(attribute.String("workout.id", id))
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	store, err := s.store(ctx, sess)
	if err != nil {
		return err
	}
	err = store.Remove(ctx, id)
	s.observeWriteErr(err)
	return err
}

func (s *Service) List(ctx context.Context, sess *auth.Session) (_ []domain.Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.list")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	store, err := s.store(ctx, sess)
	if err != nil {
		return nil, err
	}
	return store.List(), nil
}

func (s *Service) Months(ctx context.Context, sess *auth.Session) ([]stats.MonthGroup, error) {
	workouts, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	groups := stats.GroupByMonth(workouts)
	if groups == nil {
		groups = []stats.MonthGroup{}
	}
	return groups, nil
}

// Summary returns the statistics overview. Unparseable durations are logged
// and left out of the total.
func (s *Service) Summary(ctx context.Context, sess *auth.Session) (stats.Summary, error) {
	workouts, err := s.List(ctx, sess)
	if err != nil {
		return stats.Summary{}, err
	}
	summary, parseErr := stats.Summarize(workouts, stats.DefaultRecentSize)
	if parseErr != nil {
		log.Warnf("workouts summary, skipped records: %s", parseErr)
	}
	return summary, nil
}

func (s *Service) ExerciseCategories() []string {
	out := make([]string, len(domain.ExerciseCategories))
	copy(out, domain.ExerciseCategories)
	return out
}

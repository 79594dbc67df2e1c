package meals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/records"
	"github.com/2beens/fittrack/internal/stats"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
)

const CollectionKey = "meals"

var (
	ErrInvalidMeal     = errors.New("invalid meal")
	ErrInvalidCalories = errors.New("calories must be a whole non-negative number")
)

// CalorieTotal is the sum over a set of meals. Skipped lists the ids of
// meals whose calories could not be read.
type CalorieTotal struct {
	Date     string   `json:"date,omitempty"`
	Calories int      `json:"calories"`
	Skipped  []string `json:"skipped"`
}

type mealStore = records.Store[domain.Meal]

type Service struct {
	registry *records.Registry[*mealStore]
	ids      *records.IDGenerator
	metrics  *metrics.Manager
	now      func() time.Time
}

func NewService(kv kvstore.Store, partitionByUser bool, metricsManager *metrics.Manager) *Service {
	return &Service{
		registry: records.NewRegistry(CollectionKey, partitionByUser, func(key string) *mealStore {
			return records.NewStore[domain.Meal](kv, key)
		}),
		ids:     records.NewIDGenerator(),
		metrics: metricsManager,
		now:     time.Now,
	}
}

func (s *Service) store(ctx context.Context, sess *auth.Session) (*mealStore, error) {
	if sess == nil {
		return nil, auth.ErrNoSession
	}
	store, err := s.registry.Open(ctx, sess.UserID)
	if err != nil {
		var decodeErr *records.DecodeError
		if errors.As(err, &decodeErr) {
			log.Warnf("meals collection [%s] could not be decoded, starting empty: %s", decodeErr.Key, decodeErr.Err)
			if s.metrics != nil {
				s.metrics.CounterDecodeErrors.With(prometheus.Labels{"collection": CollectionKey}).Inc()
			}
			return store, nil
		}
		return nil, fmt.Errorf("open meals: %w", err)
	}
	return store, nil
}

func (s *Service) observeWriteErr(err error) {
	if err == nil || !records.IsWriteError(err) {
		return
	}
	log.Errorf("meals write failed, keeping in-memory state: %s", err)
	if s.metrics != nil {
		s.metrics.CounterWriteErrors.With(prometheus.Labels{"collection": CollectionKey}).Inc()
	}
}

func validate(name, calories string) (string, string, error) {
	name = strings.TrimSpace(name)
	calories = strings.TrimSpace(calories)
	if name == "" {
		return "", "", fmt.Errorf("%w: name empty", ErrInvalidMeal)
	}
	n, err := domain.ParseNonNegativeInt(calories)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidCalories, calories)
	}
	if n > domain.MaxMealCalories {
		return "", "", fmt.Errorf("%w: %d is above %d", ErrInvalidCalories, n, domain.MaxMealCalories)
	}
	return name, calories, nil
}

// Add logs a meal for today. On a *records.WriteError the meal is kept in
// memory and returned together with the error.
func (s *Service) Add(ctx context.Context, sess *auth.Session, name, calories string) (_ domain.Meal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.meals.add")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	name, calories, err = validate(name, calories)
	if err != nil {
		return domain.Meal{}, err
	}

	store, err := s.store(ctx, sess)
	if err != nil {
		return domain.Meal{}, err
	}

	meal := domain.Meal{
		ID:       s.ids.Next(),
		Name:     name,
		Calories: calories,
		Date:     domain.FormatDate(s.now()),
	}
	if err := store.Add(ctx, meal); err != nil {
		if !records.IsWriteError(err) {
			return domain.Meal{}, fmt.Errorf("add meal: %w", err)
		}
		s.observeWriteErr(err)
		if s.metrics != nil {
			s.metrics.CounterMealsAdded.Inc()
		}
		return meal, err
	}

	if s.metrics != nil {
		s.metrics.CounterMealsAdded.Inc()
	}
	return meal, nil
}

// Update edits name and/or calories of a meal. Nil fields stay unchanged.
func (s *Service) Update(ctx context.Context, sess *auth.Session, id string, name, calories *string) (_ domain.Meal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.meals.update")
	span.SetAttributes(attribute.String("meal.id", id))
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	store, err := s.store(ctx, sess)
	if err != nil {
		return domain.Meal{}, err
	}

	current, ok := store.Get(id)
	if !ok {
		return domain.Meal{}, fmt.Errorf("%w: %s", records.ErrRecordNotFound, id)
	}
	newName, newCalories := current.Name, current.Calories
	if name != nil {
		newName = *name
	}
	if calories != nil {
		newCalories = *calories
	}
	newName, newCalories, err = validate(newName, newCalories)
	if err != nil {
		return domain.Meal{}, err
	}

	err = store.Update(ctx, id, func(m *domain.Meal) {
		m.Name = newName
		m.Calories = newCalories
	})
	updated, _ := store.Get(id)
	if err != nil {
		s.observeWriteErr(err)
		return updated, err
	}
	return updated, nil
}

func (s *Service) Remove(ctx context.Context, sess *auth.Session, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.meals.remove")
	span.SetAttributes(attribute.String("meal.id", id))
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	store, err := s.store(ctx, sess)
	if err != nil {
		return err
	}
	err = store.Remove(ctx, id)
	s.observeWriteErr(err)
	return err
}

func (s *Service) List(ctx context.Context, sess *auth.Session) (_ []domain.Meal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.meals.list")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	store, err := s.store(ctx, sess)
	if err != nil {
		return nil, err
	}
	return store.List(), nil
}

// Total sums calories over all meals, or over the meals of one day when date
// is set. Meals with unreadable calories are logged and listed as skipped.
func (s *Service) Total(ctx context.Context, sess *auth.Session, date *time.Time) (CalorieTotal, error) {
	meals, err := s.List(ctx, sess)
	if err != nil {
		return CalorieTotal{}, err
	}

	result := CalorieTotal{Skipped: []string{}}
	if date != nil {
		meals = stats.MealsOn(meals, *date)
		result.Date = domain.FormatDate(*date)
	}

	total, parseErr := stats.TotalCalories(meals)
	result.Calories = total
	for _, e := range multierr.Errors(parseErr) {
		var pe *stats.ParseError
		if errors.As(e, &pe) {
			result.Skipped = append(result.Skipped, pe.ID)
		}
	}
	if parseErr != nil {
		log.Warnf("meals total, skipped records: %s", parseErr)
	}
	return result, nil
}

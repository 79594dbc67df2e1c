package migrate

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/meals"
	"github.com/2beens/fittrack/internal/profile"
	"github.com/2beens/fittrack/internal/records"
	"github.com/2beens/fittrack/internal/workouts"
)

type Source interface {
	kvstore.Store
	kvstore.Lister
}

type Result struct {
	Key     string
	Records int
}

// Run copies every workouts, meals and userProfile key, shared or per user,
// and every user account from one backend to another. Keys that fail are reported in the returned
// error and skipped; the rest are still copied.
func Run(ctx context.Context, from Source, to kvstore.Store, dryRun bool) ([]Result, error) {
	var results []Result
	var errs error

	for _, baseKey := range []string{auth.UsersBaseKey, workouts.CollectionKey, meals.CollectionKey, profile.DocumentKey} {
		keys, err := from.Keys(ctx, baseKey)
		if err != nil {
			return results, fmt.Errorf("list keys [%s]: %w", baseKey, err)
		}

		for _, key := range keys {
			if !belongsTo(key, baseKey) {
				continue
			}

			target := to
			if dryRun {
				target = kvstore.NewMemoryStore()
			}

			n, err := copyKey(ctx, from, target, baseKey, key)
			if err != nil {
				log.Errorf("migrate [%s]: %s", key, err)
				errs = multierr.Append(errs, err)
				continue
			}
			log.Infof("migrated [%s]: %d records", key, n)
			results = append(results, Result{Key: key, Records: n})
		}
	}

	return results, errs
}

// belongsTo filters out keys that only share a prefix, e.g. "mealsArchive".
func belongsTo(key, baseKey string) bool {
	return key == baseKey || strings.HasPrefix(key, baseKey+"||")
}

func copyKey(ctx context.Context, from, to kvstore.Store, baseKey, key string) (int, error) {
	switch baseKey {
	case workouts.CollectionKey:
		return records.CopyCollection[domain.Workout](ctx, from, to, key)
	case meals.CollectionKey:
		return records.CopyCollection[domain.Meal](ctx, from, to, key)
	case profile.DocumentKey:
		if err := records.CopyDocument[domain.Profile](ctx, from, to, key); err != nil {
			return 0, err
		}
		return 1, nil
	case auth.UsersBaseKey:
		if err := records.CopyDocument[auth.User](ctx, from, to, key); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown key kind: %s", baseKey)
	}
}

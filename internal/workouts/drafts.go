package workouts

import (
	"sort"
	"sync"

	"github.com/2beens/fittrack/internal/domain"
)

// draftBook holds unfinished workouts per user. Drafts live in memory only
// until they are finished or discarded.
type draftBook struct {
	mutex  sync.Mutex
	drafts map[string]map[string]domain.Workout
}

func newDraftBook() *draftBook {
	return &draftBook{
		drafts: make(map[string]map[string]domain.Workout),
	}
}

func (b *draftBook) put(owner string, w domain.Workout) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	userDrafts, ok := b.drafts[owner]
	if !ok {
		userDrafts = make(map[string]domain.Workout)
		b.drafts[owner] = userDrafts
	}
	userDrafts[w.ID] = w
}

func (b *draftBook) get(owner, id string) (domain.Workout, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	w, ok := b.drafts[owner][id]
	return w, ok
}

// update applies fn to the draft under the book lock.
func (b *draftBook) update(owner, id string, fn func(w *domain.Workout) error) (domain.Workout, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	w, ok := b.drafts[owner][id]
	if !ok {
		return domain.Workout{}, ErrDraftNotFound
	}
	if err := fn(&w); err != nil {
		return domain.Workout{}, err
	}
	b.drafts[owner][id] = w
	return w, nil
}

func (b *draftBook) remove(owner, id string) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	userDrafts, ok := b.drafts[owner]
	if !ok {
		return false
	}
	if _, ok := userDrafts[id]; !ok {
		return false
	}
	delete(userDrafts, id)
	if len(userDrafts) == 0 {
		delete(b.drafts, owner)
	}
	return true
}

// list returns the owner's drafts ordered by id, i.e. by creation.
func (b *draftBook) list(owner string) []domain.Workout {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	out := make([]domain.Workout, 0, len(b.drafts[owner]))
	for _, w := range b.drafts[owner] {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].ID) != len(out[j].ID) {
			return len(out[i].ID) < len(out[j].ID)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

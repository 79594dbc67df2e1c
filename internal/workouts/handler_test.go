package workouts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/kvstore/kvstoremock"
	"github.com/2beens/fittrack/internal/stats"
	"github.com/2beens/fittrack/pkg"
)

func newTestRouter(service *Service, session *auth.Session) *mux.Router {
	r := mux.NewRouter()
	if session != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.ContextWithSession(req.Context(), session)))
			})
		})
	}
	NewHandler(service).SetupRoutes(r)
	return r
}

func doRequest(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandler_Unauthorized(t *testing.T) {
	s, _, _ := newTestService(kvstore.NewMemoryStore(), false)
	r := newTestRouter(s, nil)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/workouts"},
		{http.MethodPost, "/workouts"},
		{http.MethodGet, "/workouts/stats"},
		{http.MethodPost, "/workouts/drafts"},
		{http.MethodDelete, "/workouts/123"},
	} {
		rr := doRequest(t, r, tc.method, tc.target, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.target)
	}

	// categories need no session
	rr := doRequest(t, r, http.MethodGet, "/exercises/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var categories []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &categories))
	assert.Equal(t, domain.ExerciseCategories, categories)
}

func TestHandler_DraftFlow(t *testing.T) {
	s, clock, _ := newTestService(kvstore.NewMemoryStore(), false)
	r := newTestRouter(s, testSession)

	rr := doRequest(t, r, http.MethodPost, "/workouts/drafts", StartParams{Name: "Pull"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var draft domain.Workout
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &draft))
	assert.Equal(t, "Pull", draft.Name)
	require.NotEmpty(t, draft.ID)

	rr = doRequest(t, r, http.MethodGet, "/workouts/drafts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var drafts []domain.Workout
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &drafts))
	assert.Len(t, drafts, 1)

	notes := "grip gave out"
	rr = doRequest(t, r, http.MethodPut, "/workouts/drafts/"+draft.ID, DraftPatch{Notes: &notes})
	require.Equal(t, http.StatusOK, rr.Code)

	reps := 8
	rr = doRequest(t, r, http.MethodPost, "/workouts/drafts/"+draft.ID+"/exercises", domain.Exercise{Name: "Back", Sets: 4, Reps: &reps})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, r, http.MethodPost, "/workouts/drafts/"+draft.ID+"/exercises", domain.Exercise{Name: "", Sets: 4})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, r, http.MethodGet, "/workouts/drafts/"+draft.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &draft))
	assert.Equal(t, "grip gave out", draft.Notes)
	assert.Len(t, draft.Exercises, 1)

	clock.now = clock.now.Add(time.Hour)
	rr = doRequest(t, r, http.MethodPost, "/workouts/drafts/"+draft.ID+"/finish", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var finished domain.Workout
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &finished))
	assert.Equal(t, "60", finished.Duration)

	rr = doRequest(t, r, http.MethodGet, "/workouts/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, r, http.MethodGet, "/workouts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, finished.ID, list.Workouts[0].ID)
}

func TestHandler_DiscardDraft(t *testing.T) {
	s, _, _ := newTestService(kvstore.NewMemoryStore(), false)
	r := newTestRouter(s, testSession)

	draft, err := s.StartDraft(context.Background(), testSession, StartParams{Name: "Abs"})
	require.NoError(t, err)

	rr := doRequest(t, r, http.MethodDelete, "/workouts/drafts/"+draft.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = doRequest(t, r, http.MethodDelete, "/workouts/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_AddRemoveAndStats(t *testing.T) {
	s, _, _ := newTestService(kvstore.NewMemoryStore(), false)
	r := newTestRouter(s, testSession)

	rr := doRequest(t, r, http.MethodPost, "/workouts", QuickAdd{Name: "Run", Duration: "25"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var added domain.Workout
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))

	rr = doRequest(t, r, http.MethodPost, "/workouts", QuickAdd{Name: "Run", Duration: "abc"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/workouts", bytes.NewReader([]byte("{not json")))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, r, http.MethodGet, "/workouts/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary stats.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalWorkouts)
	assert.Equal(t, 25, summary.TotalMinutes)

	rr = doRequest(t, r, http.MethodGet, "/workouts/months", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var groups []stats.MonthGroup
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "January 2024", groups[0].Month)

	rr = doRequest(t, r, http.MethodDelete, "/workouts/"+added.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var deleted DeleteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &deleted))
	assert.Equal(t, added.ID, deleted.DeletedID)

	rr = doRequest(t, r, http.MethodGet, "/workouts/stats", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.TotalWorkouts)
	assert.Empty(t, summary.Recent)
}

func TestHandler_WriteFailureIsTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := kvstoremock.NewMockStore(ctrl)
	kv.EXPECT().Get(gomock.Any(), CollectionKey).Return("", kvstore.ErrKeyNotFound)
	kv.EXPECT().Set(gomock.Any(), CollectionKey, gomock.Any()).Return(errors.New("disk full"))

	s, _, _ := newTestService(kv, false)
	r := newTestRouter(s, testSession)

	rr := doRequest(t, r, http.MethodPost, "/workouts", QuickAdd{Name: "Run", Duration: "25"})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp struct {
		Notice string         `json:"notice"`
		Data   domain.Workout `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, pkg.NotPersistedNotice, resp.Notice)
	assert.Equal(t, "Run", resp.Data.Name)

	// still visible for this process
	rr = doRequest(t, r, http.MethodGet, "/workouts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestHandler_ReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := kvstoremock.NewMockStore(ctrl)
	kv.EXPECT().Get(gomock.Any(), CollectionKey).Return("", errors.New("connection refused"))

	s, _, _ := newTestService(kv, false)
	r := newTestRouter(s, testSession)

	rr := doRequest(t, r, http.MethodGet, "/workouts", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

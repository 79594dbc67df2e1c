package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v9"
	"github.com/go-redis/redismock/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/config"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/meals"
	"github.com/2beens/fittrack/internal/profile"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/workouts"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(context.Context, string, redis_rate.Limit) (*redis_rate.Result, error) {
	return &redis_rate.Result{Allowed: 1}, nil
}

const testToken = "test-token"

func newTestServer(t *testing.T, kv kvstore.Store, partition bool) *Server {
	t.Helper()

	checker := auth.NewLoginTestChecker()
	checker.Sessions[testToken] = &auth.Session{Token: testToken, UserID: "user-1", Email: "ana@fittrack.test"}
	checker.Sessions["other-token"] = &auth.Session{Token: "other-token", UserID: "user-2", Email: "bob@fittrack.test"}

	metricsManager := metrics.NewTestManager()
	return &Server{
		config: &config.Config{
			StorageBackend:        config.StorageBackendMemory,
			PartitionByUser:       partition,
			AllowedOrigins:        []string{"https://fittrack.app"},
			SignInRateLimitPerMin: 15,
		},
		versionInfo:     "test",
		kv:              kv,
		loginChecker:    checker,
		authService:     auth.NewAuthService(time.Hour, nil, nil, nil),
		workoutsService: workouts.NewService(kv, partition, metricsManager),
		mealsService:    meals.NewService(kv, partition, metricsManager),
		profileService:  profile.NewService(kv, partition, metricsManager),
		metricsManager:  metricsManager,
		otelShutdown:    func() {},
	}
}

func do(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_RouterSetup(t *testing.T) {
	s := newTestServer(t, kvstore.NewMemoryStore(), false)
	r := s.routerSetup(allowAllLimiter{})

	rr := do(t, r, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodGet, "/exercises/categories", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodGet, "/workouts", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, r, http.MethodGet, "/workouts", "bad-token", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, r, http.MethodGet, "/workouts", testToken, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodGet, "/a/session", testToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var session auth.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, "user-1", session.UserID)

	rr = do(t, r, http.MethodGet, "/nothing-here", testToken, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestServer_EggsAndToast(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestServer(t, kv, false)
	r := s.routerSetup(allowAllLimiter{})

	rr := do(t, r, http.MethodPost, "/meals", testToken, `{"name":"Eggs","calories":"200"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var eggs domain.Meal
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &eggs))

	total := func() int {
		rr := do(t, r, http.MethodGet, "/meals/total", testToken, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp meals.CalorieTotal
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp.Calories
	}
	assert.Equal(t, 200, total())

	rr = do(t, r, http.MethodPost, "/meals", testToken, `{"name":"Toast","calories":"150"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var toast domain.Meal
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &toast))
	assert.Equal(t, 350, total())

	rr = do(t, r, http.MethodDelete, "/meals/"+eggs.ID, testToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 150, total())

	payload, err := kv.Get(context.Background(), meals.CollectionKey)
	require.NoError(t, err)
	var persisted []domain.Meal
	require.NoError(t, json.Unmarshal([]byte(payload), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, toast, persisted[0])

	assert.Equal(t, float64(2), testutil.ToFloat64(s.metricsManager.CounterMealsAdded))
}

func TestServer_PartitionByUser(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestServer(t, kv, true)
	r := s.routerSetup(allowAllLimiter{})

	rr := do(t, r, http.MethodPost, "/workouts", testToken, `{"name":"Swim","duration":"30"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, r, http.MethodGet, "/workouts", "other-token", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list workouts.ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Total)

	keys, err := kv.Keys(context.Background(), "workouts")
	require.NoError(t, err)
	assert.Equal(t, []string{"workouts||user-1"}, keys)
}

func TestNewRecordBackend(t *testing.T) {
	ctx := context.Background()
	rdb, _ := redismock.NewClientMock()
	defer func() {
		assert.NoError(t, rdb.Close())
	}()

	store, err := NewRecordBackend(ctx, &config.Config{StorageBackend: config.StorageBackendRedis}, rdb, nil)
	require.NoError(t, err)
	assert.IsType(t, &kvstore.RedisStore{}, store)

	store, err = NewRecordBackend(ctx, &config.Config{StorageBackend: config.StorageBackendMemory}, rdb, nil)
	require.NoError(t, err)
	assert.IsType(t, &kvstore.MemoryStore{}, store)

	store, err = NewRecordBackend(ctx, &config.Config{
		StorageBackend:    config.StorageBackendDisk,
		DiskStoreRootPath: t.TempDir(),
	}, rdb, nil)
	require.NoError(t, err)
	assert.IsType(t, &kvstore.DiskStore{}, store)

	_, err = NewRecordBackend(ctx, &config.Config{StorageBackend: config.StorageBackendPostgres}, rdb, nil)
	assert.Error(t, err)

	_, err = NewRecordBackend(ctx, &config.Config{StorageBackend: "floppy"}, rdb, nil)
	assert.Error(t, err)
}

func TestServer_CleanupSessionsStops(t *testing.T) {
	s := newTestServer(t, kvstore.NewMemoryStore(), false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.cleanupSessions(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sessions cleanup did not stop")
	}
}

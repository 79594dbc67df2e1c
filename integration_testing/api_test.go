//go:build integration_test || all_tests

package integration_testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/meals"
	"github.com/2beens/fittrack/internal/migrate"
	"github.com/2beens/fittrack/internal/stats"
	testingpkg "github.com/2beens/fittrack/pkg/testing"
)

func doRequest(ctx context.Context, t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) signUpAndIn(ctx context.Context, email string) *auth.SignInResponse {
	t := s.T()
	creds := auth.Credentials{Email: email, Password: "s3cret-pass"}

	status, _ := doRequest(ctx, t, http.MethodPost, "/a/signup", "", creds)
	require.Equal(t, http.StatusCreated, status)

	status, body := doRequest(ctx, t, http.MethodPost, "/a/signin", "", creds)
	require.Equal(t, http.StatusOK, status)

	var resp auth.SignInResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	return &resp
}

func (s *IntegrationTestSuite) TestAuth() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status, body := doRequest(ctx, t, http.MethodPost, "/a/signin", "", auth.Credentials{Email: "nobody@fittrack.test", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "Invalid email or password.")

	status, body = doRequest(ctx, t, http.MethodPost, "/a/signup", "", auth.Credentials{Email: "no-at-sign", Password: "s3cret-pass"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "Please enter a valid email address.")

	signIn := s.signUpAndIn(ctx, "auth@fittrack.test")

	status, body = doRequest(ctx, t, http.MethodGet, "/a/session", signIn.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var session auth.Session
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, "auth@fittrack.test", session.Email)

	status, _ = doRequest(ctx, t, http.MethodGet, "/a/signout", signIn.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doRequest(ctx, t, http.MethodGet, "/workouts", signIn.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func (s *IntegrationTestSuite) TestMeals_EggsAndToast() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signIn := s.signUpAndIn(ctx, "meals@fittrack.test")
	token := signIn.Token

	total := func() int {
		status, body := doRequest(ctx, t, http.MethodGet, "/meals/total", token, nil)
		require.Equal(t, http.StatusOK, status)
		var resp meals.CalorieTotal
		require.NoError(t, json.Unmarshal(body, &resp))
		return resp.Calories
	}
	assert.Equal(t, 0, total())

	status, body := doRequest(ctx, t, http.MethodPost, "/meals", token, map[string]string{"name": "Eggs", "calories": "200"})
	require.Equal(t, http.StatusCreated, status)
	var eggs domain.Meal
	require.NoError(t, json.Unmarshal(body, &eggs))
	assert.Equal(t, 200, total())

	status, body = doRequest(ctx, t, http.MethodPost, "/meals", token, map[string]string{"name": "Toast", "calories": "150"})
	require.Equal(t, http.StatusCreated, status)
	var toast domain.Meal
	require.NoError(t, json.Unmarshal(body, &toast))
	assert.Equal(t, 350, total())

	status, _ = doRequest(ctx, t, http.MethodDelete, "/meals/"+eggs.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 150, total())

	var payload string
	key := meals.CollectionKey + "||" + signIn.Session.UserID
	require.NoError(t, s.DB.QueryRowContext(ctx, "SELECT value FROM kv_entry WHERE key = $1", key).Scan(&payload))
	var persisted []domain.Meal
	require.NoError(t, json.Unmarshal([]byte(payload), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, toast, persisted[0])
}

func (s *IntegrationTestSuite) TestWorkouts_DraftToStats() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.signUpAndIn(ctx, "workouts@fittrack.test").Token

	status, body := doRequest(ctx, t, http.MethodPost, "/workouts/drafts", token, map[string]string{"name": "Leg day"})
	require.Equal(t, http.StatusCreated, status)
	var draft domain.Workout
	require.NoError(t, json.Unmarshal(body, &draft))

	reps := 12
	status, _ = doRequest(ctx, t, http.MethodPost, fmt.Sprintf("/workouts/drafts/%s/exercises", draft.ID), token,
		domain.Exercise{Name: "Legs", Sets: 4, Reps: &reps})
	require.Equal(t, http.StatusOK, status)

	status, body = doRequest(ctx, t, http.MethodPost, fmt.Sprintf("/workouts/drafts/%s/finish", draft.ID), token, nil)
	require.Equal(t, http.StatusCreated, status)
	var finished domain.Workout
	require.NoError(t, json.Unmarshal(body, &finished))
	assert.True(t, finished.Finished())

	status, _ = doRequest(ctx, t, http.MethodPost, "/workouts", token, map[string]string{"name": "Swim", "duration": "40"})
	require.Equal(t, http.StatusCreated, status)

	status, body = doRequest(ctx, t, http.MethodGet, "/workouts/stats", token, nil)
	require.Equal(t, http.StatusOK, status)
	var summary stats.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 2, summary.TotalWorkouts)
	assert.GreaterOrEqual(t, summary.TotalMinutes, 40)
	require.Len(t, summary.Recent, 2)
	assert.Equal(t, "Swim", summary.Recent[0].Name)

	// another account does not see them
	otherToken := s.signUpAndIn(ctx, "other@fittrack.test").Token
	status, body = doRequest(ctx, t, http.MethodGet, "/workouts/stats", otherToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 0, summary.TotalWorkouts)
}

func (s *IntegrationTestSuite) TestRedisStoreAndMigrate() {
	t := s.T()
	ctx, rdb := testingpkg.GetRedisClientAndCtx(t, s.redisPort)
	defer func() {
		assert.NoError(t, rdb.Close())
	}()

	source := kvstore.NewMemoryStore()
	require.NoError(t, source.Set(ctx, "meals||migrated-user", `[{"id":"1","name":"Oats","calories":"300","date":"2024-01-01"}]`))
	require.NoError(t, source.Set(ctx, "workouts||migrated-user", `{broken`))

	target := kvstore.NewRedisStore(rdb, "migrate-test||")
	results, err := migrate.Run(ctx, source, target, false)
	require.Error(t, err)
	assert.Equal(t, []migrate.Result{{Key: "meals||migrated-user", Records: 1}}, results)

	payload, err := target.Get(ctx, "meals||migrated-user")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1","name":"Oats","calories":"300","date":"2024-01-01"}]`, payload)

	keys, err := target.Keys(ctx, "meals")
	require.NoError(t, err)
	assert.Equal(t, []string{"meals||migrated-user"}, keys)

	_, err = target.Get(ctx, "workouts||migrated-user")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

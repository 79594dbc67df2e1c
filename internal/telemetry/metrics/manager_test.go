package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	require.NotNil(t, m)

	m.CounterMealsAdded.Inc()
	m.CounterMealsAdded.Inc()
	m.CounterDecodeErrors.WithLabelValues("workouts").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		byName[f.GetName()] = f
	}

	mealsAdded, ok := byName["backend_test_server_meals_added"]
	require.True(t, ok)
	assert.Equal(t, 2.0, mealsAdded.GetMetric()[0].GetCounter().GetValue())

	decodeErrors, ok := byName["backend_test_server_decode_errors"]
	require.True(t, ok)
	require.Len(t, decodeErrors.GetMetric(), 1)
	assert.Equal(t, "collection", decodeErrors.GetMetric()[0].GetLabel()[0].GetName())
	assert.Equal(t, "workouts", decodeErrors.GetMetric()[0].GetLabel()[0].GetValue())
}

func TestSetupPrometheus(t *testing.T) {
	reg := SetupPrometheus()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

package kvstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
)

var _ Store = (*InstrumentedStore)(nil)

// InstrumentedStore wraps a Store with spans and prometheus counters.
type InstrumentedStore struct {
	next    Store
	backend string
	metrics *metrics.Manager
}

func NewInstrumentedStore(next Store, backend string, metricsManager *metrics.Manager) *InstrumentedStore {
	return &InstrumentedStore{
		next:    next,
		backend: backend,
		metrics: metricsManager,
	}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "kvstore.get")
	span.SetAttributes(keyAttributes(s.backend, key)...)
	defer func(begin time.Time) {
		// a missing key is a normal outcome
		if errors.Is(err, ErrKeyNotFound) {
			s.observe("get", "not_found", begin)
			tracing.EndSpanWithErrCheck(span, nil)
			return
		}
		s.observe("get", status(err), begin)
		tracing.EndSpanWithErrCheck(span, err)
	}(time.Now())

	return s.next.Get(ctx, key)
}

func (s *InstrumentedStore) Set(ctx context.Context, key, value string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "kvstore.set")
	span.SetAttributes(append(
		keyAttributes(s.backend, key),
		attribute.Int("kv.value_size", len(value)),
	)...)
	defer func(begin time.Time) {
		s.observe("set", status(err), begin)
		tracing.EndSpanWithErrCheck(span, err)
	}(time.Now())

	return s.next.Set(ctx, key, value)
}

// keyAttributes records only the base of a key. The owner part after "||"
// is a user id or an email and never leaves the process.
func keyAttributes(backend, key string) []attribute.KeyValue {
	base, _, owned := strings.Cut(key, "||")
	return []attribute.KeyValue{
		attribute.String("kv.backend", backend),
		attribute.String("kv.key", base),
		attribute.Bool("kv.key_owned", owned),
	}
}

func (s *InstrumentedStore) observe(op, status string, begin time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.CounterKVOps.With(prometheus.Labels{"op": op, "status": status}).Inc()
	s.metrics.HistogramKVOpDuration.With(prometheus.Labels{"op": op}).Observe(time.Since(begin).Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

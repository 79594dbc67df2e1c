package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/domain"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/records"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
)

const DocumentKey = "userProfile"

type profileDoc = records.Document[domain.Profile]

type Service struct {
	registry *records.Registry[*profileDoc]
	metrics  *metrics.Manager
}

func NewService(kv kvstore.Store, partitionByUser bool, metricsManager *metrics.Manager) *Service {
	return &Service{
		registry: records.NewRegistry(DocumentKey, partitionByUser, func(key string) *profileDoc {
			return records.NewDocument[domain.Profile](kv, key)
		}),
		metrics: metricsManager,
	}
}

func (s *Service) document(ctx context.Context, sess *auth.Session) (*profileDoc, error) {
	if sess == nil {
		return nil, auth.ErrNoSession
	}
	doc, err := s.registry.Open(ctx, sess.UserID)
	if err != nil {
		if records.IsDecodeError(err) {
			log.Warnf("profile could not be decoded, starting empty: %s", err)
			if s.metrics != nil {
				s.metrics.CounterDecodeErrors.With(prometheus.Labels{"collection": DocumentKey}).Inc()
			}
			return doc, nil
		}
		return nil, fmt.Errorf("open profile: %w", err)
	}
	return doc, nil
}

// Get returns the stored profile, or an empty one if none was saved yet.
func (s *Service) Get(ctx context.Context, sess *auth.Session) (_ domain.Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.profile.get")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	doc, err := s.document(ctx, sess)
	if err != nil {
		return domain.Profile{}, err
	}
	return doc.Get(), nil
}

func (s *Service) Save(ctx context.Context, sess *auth.Session, p domain.Profile) (_ domain.Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.profile.save")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	doc, err := s.document(ctx, sess)
	if err != nil {
		return domain.Profile{}, err
	}

	p.Name = strings.TrimSpace(p.Name)
	p.Weight = strings.TrimSpace(p.Weight)
	p.Height = strings.TrimSpace(p.Height)
	p.Goal = strings.TrimSpace(p.Goal)

	if err := doc.Save(ctx, p); err != nil {
		var writeErr *records.WriteError
		if errors.As(err, &writeErr) {
			log.Errorf("profile write failed, keeping in-memory state: %s", writeErr)
			if s.metrics != nil {
				s.metrics.CounterWriteErrors.With(prometheus.Labels{"collection": DocumentKey}).Inc()
			}
		}
		return p, err
	}
	return p, nil
}

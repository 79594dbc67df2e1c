package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fittrack/internal/telemetry/tracing"
)

const sessionCacheSize = 10 * 1024 * 1024

var _ Checker = (*LoginChecker)(nil)
var _ Checker = (*LoginTestChecker)(nil)

type Checker interface {
	Session(ctx context.Context, token string) (*Session, error)
}

// LoginChecker resolves session tokens, with a short lived in-process cache
// in front of redis.
type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
	cache       *freecache.Cache
	cacheTTL    time.Duration
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client, cacheTTL time.Duration) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
		cache:       freecache.NewCache(sessionCacheSize),
		cacheTTL:    cacheTTL,
	}
}

func (c *LoginChecker) Session(ctx context.Context, token string) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.checker.session")
	defer func() {
		if errors.Is(err, ErrNoSession) {
			tracing.EndSpanWithErrCheck(span, nil)
			return
		}
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if token == "" {
		return nil, ErrNoSession
	}

	payload, err := c.cache.Get([]byte(token))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Warnf("session cache get: %s", err)
		}
		cmd := c.redisClient.Get(ctx, sessionKeyPrefix+token)
		if err := cmd.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrNoSession
			}
			return nil, fmt.Errorf("get session: %w", err)
		}
		payload = []byte(cmd.Val())
		// freecache treats 0 as "never expires"
		if expireSeconds := int(c.cacheTTL.Seconds()); expireSeconds > 0 {
			if err := c.cache.Set([]byte(token), payload, expireSeconds); err != nil {
				log.Warnf("session cache set: %s", err)
			}
		}
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		c.Forget(token)
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if session.ExpiredAt(time.Now(), c.ttl) {
		c.Forget(token)
		return nil, ErrNoSession
	}

	return &session, nil
}

// Forget drops a token from the cache, e.g. on sign out.
func (c *LoginChecker) Forget(token string) {
	c.cache.Del([]byte(token))
}

type LoginTestChecker struct {
	Sessions map[string]*Session
}

func NewLoginTestChecker() *LoginTestChecker {
	return &LoginTestChecker{
		Sessions: map[string]*Session{},
	}
}

func (c *LoginTestChecker) Session(_ context.Context, token string) (*Session, error) {
	session, ok := c.Sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	return session, nil
}

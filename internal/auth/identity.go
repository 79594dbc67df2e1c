package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/pkg"
)

const (
	// UsersBaseKey prefixes one kv entry per user: users||<email>.
	UsersBaseKey      = "users"
	usersKeyPrefix    = UsersBaseKey + "||"
	MinPasswordLength = 6
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*User, error)
	Verify(ctx context.Context, email, password string) (*User, error)
}

var _ IdentityProvider = (*KVIdentityProvider)(nil)

// KVIdentityProvider keeps users in the key-value store, one entry per
// lower-cased email.
type KVIdentityProvider struct {
	kv       kvstore.Store
	hashCost int
	// sign-up is check-then-set
	mutex sync.Mutex
}

func NewKVIdentityProvider(kv kvstore.Store, hashCost int) *KVIdentityProvider {
	return &KVIdentityProvider{
		kv:       kv,
		hashCost: hashCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userKey(email string) string {
	return usersKeyPrefix + normalizeEmail(email)
}

func (p *KVIdentityProvider) SignUp(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, newAuthError(ErrInvalidEmail, "Please enter a valid email address.")
	}
	if len(password) < MinPasswordLength {
		return nil, newAuthError(ErrWeakPassword, fmt.Sprintf("Password should be at least %d characters.", MinPasswordLength))
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, err := p.kv.Get(ctx, userKey(email)); err == nil {
		return nil, newAuthError(ErrUserExists, "An account with this email already exists.")
	} else if !errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	hash, err := pkg.HashPasswordWithCost(password, p.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	userJson, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	if err := p.kv.Set(ctx, userKey(email), string(userJson)); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	return user, nil
}

func (p *KVIdentityProvider) Verify(ctx context.Context, email, password string) (*User, error) {
	payload, err := p.kv.Get(ctx, userKey(email))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, newAuthError(ErrInvalidCredentials, "Invalid email or password.")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	var user User
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}

	if !pkg.CheckPasswordHash(password, user.PasswordHash) {
		return nil, newAuthError(ErrInvalidCredentials, "Invalid email or password.")
	}

	return &user, nil
}

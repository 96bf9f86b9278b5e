package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const tokenKeyPrefix = "storefront:token:"

// refreshLead is how far ahead of a JWT's expiry the scheduled refresh
// fires.
const refreshLead = 5 * time.Minute

// Manager owns the bearer credential lifecycle: acquisition on sign-in,
// persistence, scheduled and on-demand refresh, and removal on sign-out.
// All other components read the token through Token(); only the manager
// writes it.
type Manager struct {
	provider Provider
	store    TokenStore
	interval time.Duration
	log      *zap.Logger

	mu       sync.RWMutex
	token    string
	storeKey string
	ready    bool
}

func NewManager(provider Provider, store TokenStore, interval time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		interval: interval,
		log:      log,
	}
}

// errEmptyToken marks the provider answering with no token at all: an
// authoritative "not authenticated", as opposed to a transient outage.
var errEmptyToken = errors.New("identity provider returned empty token")

// Acquire requests a token for the currently signed-in principal. If the
// provider reports no principal or returns no token, the manager settles
// into a not-ready state instead of failing: callers treat an absent
// token as "not authenticated". When the provider errors, a previously
// persisted unexpired token is restored from the store so a restarted
// process (or peer replica) keeps its session through a provider outage.
func (m *Manager) Acquire(ctx context.Context) {
	if !m.provider.SignedIn() {
		m.reset()
		return
	}
	err := m.obtain(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, errEmptyToken) && m.adoptPersisted(ctx) {
		return
	}
	m.log.Warn("token acquisition failed, continuing unauthenticated", zap.Error(err))
}

// Refresh re-requests a token and overwrites the persisted value. Both
// the scheduled loop and dependent callers recovering from a 401 funnel
// through this one implementation.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.provider.SignedIn() {
		m.reset()
		return fmt.Errorf("no signed-in principal")
	}
	return m.obtain(ctx)
}

// obtain is the single fetch-and-persist implementation behind Acquire
// and Refresh.
func (m *Manager) obtain(ctx context.Context) error {
	principal, ok := m.provider.Principal()
	if !ok {
		m.reset()
		return fmt.Errorf("no signed-in principal")
	}

	token, err := m.provider.FetchToken(ctx)
	if err != nil {
		m.reset()
		return fmt.Errorf("fetching token: %w", err)
	}
	if token == "" {
		m.reset()
		return errEmptyToken
	}

	key := tokenKeyPrefix + principal.ID
	if err := m.store.Save(ctx, key, token); err != nil {
		// Persistence failure is not fatal for the in-memory credential.
		m.log.Warn("failed to persist token", zap.Error(err))
	}

	m.mu.Lock()
	m.token = token
	m.storeKey = key
	m.ready = true
	m.mu.Unlock()

	m.log.Debug("bearer credential refreshed", zap.String("principal", principal.ID))
	return nil
}

// adoptPersisted restores the credential a previous process persisted
// for the signed-in principal. Expired JWTs are discarded; opaque tokens
// are taken as-is.
func (m *Manager) adoptPersisted(ctx context.Context) bool {
	principal, ok := m.provider.Principal()
	if !ok {
		return false
	}
	key := tokenKeyPrefix + principal.ID
	token, err := m.store.Load(ctx, key)
	if err != nil || token == "" {
		return false
	}
	if exp, ok := tokenExpiry(token); ok && !time.Now().Before(exp) {
		return false
	}

	m.mu.Lock()
	m.token = token
	m.storeKey = key
	m.ready = true
	m.mu.Unlock()

	m.log.Info("restored persisted credential", zap.String("principal", principal.ID))
	return true
}

// Clear removes the persisted credential on sign-out.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	key := m.storeKey
	m.token = ""
	m.storeKey = ""
	m.ready = false
	m.mu.Unlock()

	if key != "" {
		if err := m.store.Delete(ctx, key); err != nil {
			m.log.Warn("failed to delete persisted token", zap.Error(err))
		}
	}
}

func (m *Manager) reset() {
	m.mu.Lock()
	m.token = ""
	m.ready = false
	m.mu.Unlock()
}

// Ready reports whether a valid credential is held.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Token returns the current bearer credential, if any.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.ready && m.token != ""
}

// Principal exposes the signed-in identity for checkout prefill.
func (m *Manager) Principal() (Principal, bool) {
	return m.provider.Principal()
}

// Run refreshes the credential on a schedule until ctx is cancelled.
// When the token is a JWT the next refresh is moved ahead of its expiry;
// opaque tokens fall back to the fixed interval.
func (m *Manager) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(m.nextRefreshIn())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := m.Refresh(ctx); err != nil {
				m.log.Warn("scheduled token refresh failed", zap.Error(err))
			}
		}
	}
}

// nextRefreshIn computes the delay before the next scheduled refresh.
func (m *Manager) nextRefreshIn() time.Duration {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if exp, ok := tokenExpiry(token); ok {
		until := time.Until(exp) - refreshLead
		if until < time.Minute {
			return time.Minute
		}
		if until < m.interval {
			return until
		}
	}
	return m.interval
}

// tokenExpiry peeks (without verifying) at a JWT's exp claim.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}

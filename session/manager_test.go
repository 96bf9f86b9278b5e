package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	signedIn  bool
	principal Principal
	tokens    []string // consumed per fetch; last value repeats
	fetchErr  error
	fetches   int
}

func (p *fakeProvider) SignedIn() bool { return p.signedIn }

func (p *fakeProvider) Principal() (Principal, bool) {
	if !p.signedIn {
		return Principal{}, false
	}
	return p.principal, true
}

func (p *fakeProvider) FetchToken(_ context.Context) (string, error) {
	p.fetches++
	if p.fetchErr != nil {
		return "", p.fetchErr
	}
	if len(p.tokens) == 0 {
		return "", nil
	}
	token := p.tokens[0]
	if len(p.tokens) > 1 {
		p.tokens = p.tokens[1:]
	}
	return token, nil
}

func newTestManager(p *fakeProvider, store TokenStore) *Manager {
	logger, _ := zap.NewDevelopment()
	return NewManager(p, store, 45*time.Minute, logger)
}

func TestAcquire_SignedOutStaysNotReady(t *testing.T) {
	m := newTestManager(&fakeProvider{signedIn: false}, NewMemoryStore())

	m.Acquire(context.Background())

	assert.False(t, m.Ready())
	_, ok := m.Token()
	assert.False(t, ok)
}

func TestAcquire_EmptyTokenFailsSilently(t *testing.T) {
	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}}
	m := newTestManager(p, NewMemoryStore())

	m.Acquire(context.Background())

	assert.False(t, m.Ready(), "absence of a token means not authenticated, not an error")
}

func TestAcquire_PersistsAndMarksReady(t *testing.T) {
	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, tokens: []string{"tok-1"}}
	store := NewMemoryStore()
	m := newTestManager(p, store)

	m.Acquire(context.Background())

	require.True(t, m.Ready())
	token, ok := m.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)

	persisted, err := store.Load(context.Background(), "storefront:token:u1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", persisted)
}

func TestRefresh_OverwritesPersistedToken(t *testing.T) {
	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, tokens: []string{"tok-1", "tok-2"}}
	store := NewMemoryStore()
	m := newTestManager(p, store)

	m.Acquire(context.Background())
	require.NoError(t, m.Refresh(context.Background()))

	token, _ := m.Token()
	assert.Equal(t, "tok-2", token)

	persisted, _ := store.Load(context.Background(), "storefront:token:u1")
	assert.Equal(t, "tok-2", persisted)
	assert.Equal(t, 2, p.fetches)
}

func TestRefresh_SignedOutErrors(t *testing.T) {
	m := newTestManager(&fakeProvider{signedIn: false}, NewMemoryStore())

	err := m.Refresh(context.Background())

	require.Error(t, err)
	assert.False(t, m.Ready())
}

func TestRefresh_FetchFailureResetsReady(t *testing.T) {
	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, tokens: []string{"tok-1"}}
	m := newTestManager(p, NewMemoryStore())
	m.Acquire(context.Background())
	require.True(t, m.Ready())

	p.fetchErr = errors.New("provider unavailable")
	err := m.Refresh(context.Background())

	require.Error(t, err)
	assert.False(t, m.Ready(), "a failed refresh must not leave a stale ready flag")
}

func TestAcquire_RestoresPersistedTokenWhenProviderUnavailable(t *testing.T) {
	store := NewMemoryStore()
	first := newTestManager(&fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, tokens: []string{"tok-1"}}, store)
	first.Acquire(context.Background())
	require.True(t, first.Ready())

	// A restarted process shares the store but cannot reach the provider.
	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, fetchErr: errors.New("provider unavailable")}
	m := newTestManager(p, store)
	m.Acquire(context.Background())

	require.True(t, m.Ready(), "the persisted credential must carry the session through a provider outage")
	token, ok := m.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)
}

func TestAcquire_ExpiredPersistedTokenIsNotRestored(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u1", "exp": float64(time.Now().Add(-time.Minute).Unix())}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "storefront:token:u1", expired))

	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, fetchErr: errors.New("provider unavailable")}
	m := newTestManager(p, store)
	m.Acquire(context.Background())

	assert.False(t, m.Ready())
}

func TestAcquire_EmptyTokenDoesNotRestorePersisted(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "storefront:token:u1", "tok-old"))

	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}}
	m := newTestManager(p, store)
	m.Acquire(context.Background())

	assert.False(t, m.Ready(), "an empty provider token means not authenticated, not an outage")
}

func TestClear_DeletesPersistedCredential(t *testing.T) {
	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, tokens: []string{"tok-1"}}
	store := NewMemoryStore()
	m := newTestManager(p, store)
	m.Acquire(context.Background())

	m.Clear(context.Background())

	assert.False(t, m.Ready())
	persisted, _ := store.Load(context.Background(), "storefront:token:u1")
	assert.Empty(t, persisted)
}

func TestNextRefreshIn_UsesJWTExpiryWhenSooner(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u1", "exp": float64(time.Now().Add(20 * time.Minute).Unix())}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, tokens: []string{token}}
	m := newTestManager(p, NewMemoryStore())
	m.Acquire(context.Background())

	next := m.nextRefreshIn()
	assert.Less(t, next, 16*time.Minute, "refresh should run ahead of the 20m expiry")
	assert.GreaterOrEqual(t, next, time.Minute)
}

func TestNextRefreshIn_OpaqueTokenFallsBackToInterval(t *testing.T) {
	p := &fakeProvider{signedIn: true, principal: Principal{ID: "u1"}, tokens: []string{"opaque-token"}}
	m := newTestManager(p, NewMemoryStore())
	m.Acquire(context.Background())

	assert.Equal(t, 45*time.Minute, m.nextRefreshIn())
}

package store_test

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/models"
	"github.com/bakehouse-in/storefront/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock backend API ----

type mockAPI struct {
	cart        *models.Cart
	favorites   models.FavoriteSet
	cartErrs    []error // consumed one per cart call
	favErrs     []error
	cartCalls   int
	toggleCalls int
}

func (m *mockAPI) nextCartErr() error {
	if len(m.cartErrs) == 0 {
		return nil
	}
	err := m.cartErrs[0]
	m.cartErrs = m.cartErrs[1:]
	return err
}

func (m *mockAPI) nextFavErr() error {
	if len(m.favErrs) == 0 {
		return nil
	}
	err := m.favErrs[0]
	m.favErrs = m.favErrs[1:]
	return err
}

func (m *mockAPI) cartCall() (*models.Cart, error) {
	m.cartCalls++
	if err := m.nextCartErr(); err != nil {
		return nil, err
	}
	return m.cart, nil
}

func (m *mockAPI) GetCart(_ context.Context) (*models.Cart, error) { return m.cartCall() }
func (m *mockAPI) AddCartItem(_ context.Context, _ string, _ int) (*models.Cart, error) {
	return m.cartCall()
}
func (m *mockAPI) UpdateCartItem(_ context.Context, _ string, _ int) (*models.Cart, error) {
	return m.cartCall()
}
func (m *mockAPI) RemoveCartItem(_ context.Context, _ string) (*models.Cart, error) {
	return m.cartCall()
}
func (m *mockAPI) ClearCart(_ context.Context) (*models.Cart, error) { return m.cartCall() }

func (m *mockAPI) GetFavorites(_ context.Context) (models.FavoriteSet, error) {
	if err := m.nextFavErr(); err != nil {
		return nil, err
	}
	return m.favorites, nil
}

// ToggleFavorite behaves like the backend: it flips membership and
// returns the full updated set.
func (m *mockAPI) ToggleFavorite(_ context.Context, productID string) (models.FavoriteSet, error) {
	m.toggleCalls++
	if err := m.nextFavErr(); err != nil {
		return nil, err
	}
	if m.favorites.Has(productID) {
		out := models.FavoriteSet{}
		for _, id := range m.favorites {
			if id != productID {
				out = append(out, id)
			}
		}
		m.favorites = out
	} else {
		m.favorites = append(m.favorites, productID)
	}
	return append(models.FavoriteSet(nil), m.favorites...), nil
}

// ---- mock session manager ----

type mockSession struct {
	ready        bool
	refreshErr   error
	refreshCalls int
}

func (m *mockSession) Ready() bool { return m.ready }
func (m *mockSession) Refresh(_ context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

func newTestStore(api *mockAPI, sess *mockSession) *store.CommerceStore {
	logger, _ := zap.NewDevelopment()
	return store.NewCommerceStore(api, sess, logger)
}

func serverCart(lines ...models.CartLine) *models.Cart {
	return &models.Cart{Items: lines}
}

// ---- tests ----

func TestAddToCart_SignedOutRejectsWithAuthRequired(t *testing.T) {
	api := &mockAPI{}
	s := newTestStore(api, &mockSession{ready: false})

	err := s.AddToCart(context.Background(), "p1", 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuthRequired))
	assert.Zero(t, api.cartCalls, "no network call should be made while signed out")
	assert.Empty(t, s.Cart().Items, "cart must remain empty")
}

func TestAddToCart_RejectsNonPositiveQuantity(t *testing.T) {
	api := &mockAPI{}
	s := newTestStore(api, &mockSession{ready: true})

	err := s.AddToCart(context.Background(), "p1", 0)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Zero(t, api.cartCalls)
}

func TestCartMutation_ReplacesNotMerges(t *testing.T) {
	api := &mockAPI{cart: serverCart(models.CartLine{ID: "l1", ProductID: "p1", Price: 100, Quantity: 1})}
	sess := &mockSession{ready: true}
	s := newTestStore(api, sess)

	require.NoError(t, s.AddToCart(context.Background(), "p1", 1))
	assert.Len(t, s.Cart().Items, 1)

	// The server's next response omits l1 entirely; the local cart must
	// equal exactly the server response, not a merge.
	api.cart = serverCart(models.CartLine{ID: "l2", ProductID: "p2", Price: 55, Quantity: 2})
	require.NoError(t, s.AddToCart(context.Background(), "p2", 2))

	got := s.Cart()
	require.Len(t, got.Items, 1)
	assert.Equal(t, "l2", got.Items[0].ID)
}

func TestRetryOnce_RecoversFromSingle401(t *testing.T) {
	api := &mockAPI{
		cart:     serverCart(models.CartLine{ID: "l1", ProductID: "p1", Price: 100, Quantity: 1}),
		cartErrs: []error{apperrors.Wrap(apperrors.ErrTokenExpired, errors.New("stale token"))},
	}
	sess := &mockSession{ready: true}
	s := newTestStore(api, sess)

	err := s.AddToCart(context.Background(), "p1", 1)

	require.NoError(t, err)
	assert.Equal(t, 1, sess.refreshCalls, "exactly one refresh")
	assert.Equal(t, 2, api.cartCalls, "original call plus one retry")
	assert.Len(t, s.Cart().Items, 1)
}

func TestRetryOnce_SecondFailureIsTerminal(t *testing.T) {
	expired := apperrors.Wrap(apperrors.ErrTokenExpired, errors.New("stale token"))
	api := &mockAPI{cartErrs: []error{expired, expired}}
	sess := &mockSession{ready: true}
	s := newTestStore(api, sess)

	err := s.AddToCart(context.Background(), "p1", 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))
	assert.Equal(t, 1, sess.refreshCalls, "refresh must not loop")
	assert.Equal(t, 2, api.cartCalls, "exactly one retry, then terminal")
	assert.Empty(t, s.Cart().Items, "failed mutation must not touch local state")
}

func TestRetryOnce_SkipsRetryWhenRefreshFails(t *testing.T) {
	expired := apperrors.Wrap(apperrors.ErrTokenExpired, errors.New("stale token"))
	api := &mockAPI{cartErrs: []error{expired}}
	sess := &mockSession{ready: true, refreshErr: errors.New("provider unavailable")}
	s := newTestStore(api, sess)

	err := s.AddToCart(context.Background(), "p1", 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))
	assert.Equal(t, 1, api.cartCalls, "no retry without a fresh token")
}

func TestToggleFavorite_TwiceRestoresOriginalSet(t *testing.T) {
	api := &mockAPI{favorites: models.FavoriteSet{"p1"}}
	s := newTestStore(api, &mockSession{ready: true})

	require.NoError(t, s.ToggleFavorite(context.Background(), "p2"))
	assert.True(t, s.Favorites().Has("p2"))

	require.NoError(t, s.ToggleFavorite(context.Background(), "p2"))
	got := s.Favorites()
	assert.False(t, got.Has("p2"))
	assert.Equal(t, models.FavoriteSet{"p1"}, got)
}

func TestLoad_UnauthenticatedIsNoOp(t *testing.T) {
	api := &mockAPI{cart: serverCart(models.CartLine{ID: "l1", Quantity: 1})}
	s := newTestStore(api, &mockSession{ready: false})

	err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Zero(t, api.cartCalls)
	assert.Empty(t, s.Cart().Items)
}

func TestLoad_PopulatesCartAndFavorites(t *testing.T) {
	api := &mockAPI{
		cart:      serverCart(models.CartLine{ID: "l1", ProductID: "p1", Price: 80, Quantity: 3}),
		favorites: models.FavoriteSet{"p1", "p9"},
	}
	s := newTestStore(api, &mockSession{ready: true})

	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, 3, s.ItemCount())
	assert.Equal(t, 240.0, s.Subtotal())
	assert.True(t, s.Favorites().Has("p9"))
}

func TestDerivedAccessors_ComputedFromLines(t *testing.T) {
	api := &mockAPI{cart: serverCart(
		models.CartLine{ID: "l1", Price: 120, Quantity: 2},
		models.CartLine{ID: "l2", Price: 65, Quantity: 3},
	)}
	s := newTestStore(api, &mockSession{ready: true})
	require.NoError(t, s.AddToCart(context.Background(), "p1", 1))

	assert.Equal(t, 5, s.ItemCount())
	assert.Equal(t, 120*2+65*3.0, s.Subtotal())
}

// Package store holds the client-side mirror of the user's cart and
// favorites. Every mutation round-trips to the backend and the local
// state is replaced wholesale from the authoritative response, so the
// mirror can never diverge from server truth after a write.
package store

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/models"
	"go.uber.org/zap"
)

// CommerceAPI is the slice of the backend client the store depends on.
type CommerceAPI interface {
	GetCart(ctx context.Context) (*models.Cart, error)
	AddCartItem(ctx context.Context, productID string, quantity int) (*models.Cart, error)
	UpdateCartItem(ctx context.Context, lineID string, quantity int) (*models.Cart, error)
	RemoveCartItem(ctx context.Context, lineID string) (*models.Cart, error)
	ClearCart(ctx context.Context) (*models.Cart, error)
	GetFavorites(ctx context.Context) (models.FavoriteSet, error)
	ToggleFavorite(ctx context.Context, productID string) (models.FavoriteSet, error)
}

// Sessions is the slice of the session manager the store depends on.
type Sessions interface {
	Ready() bool
	Refresh(ctx context.Context) error
}

// CommerceStore is the single source of truth for the active identity's
// cart and favorites. Mutations are not serialized against each other;
// if two are in flight the last server response to arrive wins for the
// whole collection. Callers wanting stricter ordering debounce upstream.
type CommerceStore struct {
	api     CommerceAPI
	session Sessions
	log     *zap.Logger

	mu        sync.RWMutex
	cart      models.Cart
	favorites models.FavoriteSet
}

func NewCommerceStore(api CommerceAPI, session Sessions, log *zap.Logger) *CommerceStore {
	return &CommerceStore{
		api:     api,
		session: session,
		log:     log,
	}
}

// Load fetches cart and favorites in parallel and populates the store.
// While unauthenticated it is a no-op, not an error.
func (s *CommerceStore) Load(ctx context.Context) error {
	if !s.session.Ready() {
		return nil
	}

	type cartResult struct {
		cart *models.Cart
		err  error
	}
	type favResult struct {
		favs models.FavoriteSet
		err  error
	}

	cartCh := make(chan cartResult, 1)
	favCh := make(chan favResult, 1)

	go func() {
		cart, err := s.fetchCart(ctx)
		cartCh <- cartResult{cart, err}
	}()
	go func() {
		favs, err := s.fetchFavorites(ctx)
		favCh <- favResult{favs, err}
	}()

	cr := <-cartCh
	fr := <-favCh

	if cr.err != nil {
		return cr.err
	}
	if fr.err != nil {
		return fr.err
	}

	s.mu.Lock()
	s.cart = *cr.cart
	s.favorites = fr.favs
	s.mu.Unlock()

	s.log.Debug("commerce state loaded",
		zap.Int("cart_lines", len(cr.cart.Items)),
		zap.Int("favorites", len(fr.favs)),
	)
	return nil
}

// AddToCart requires a signed-in principal; otherwise the operation is
// rejected with ErrAuthRequired so the UI can prompt sign-in.
func (s *CommerceStore) AddToCart(ctx context.Context, productID string, quantity int) error {
	if !s.session.Ready() {
		return apperrors.ErrAuthRequired
	}
	if quantity < 1 {
		return apperrors.Wrap(apperrors.ErrValidation, errors.New("quantity must be at least 1"))
	}
	return s.syncCart(ctx, func(ctx context.Context) (*models.Cart, error) {
		return s.api.AddCartItem(ctx, productID, quantity)
	})
}

// UpdateQuantity sets a line's quantity. Zero is not a valid quantity;
// removal is a distinct operation.
func (s *CommerceStore) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if !s.session.Ready() {
		return apperrors.ErrAuthRequired
	}
	if quantity < 1 {
		return apperrors.Wrap(apperrors.ErrValidation, errors.New("quantity must be at least 1"))
	}
	return s.syncCart(ctx, func(ctx context.Context) (*models.Cart, error) {
		return s.api.UpdateCartItem(ctx, lineID, quantity)
	})
}

// Remove deletes a cart line.
func (s *CommerceStore) Remove(ctx context.Context, lineID string) error {
	if !s.session.Ready() {
		return apperrors.ErrAuthRequired
	}
	return s.syncCart(ctx, func(ctx context.Context) (*models.Cart, error) {
		return s.api.RemoveCartItem(ctx, lineID)
	})
}

// Clear empties the cart. The checkout orchestrator is its only caller
// besides the UI.
func (s *CommerceStore) Clear(ctx context.Context) error {
	if !s.session.Ready() {
		return apperrors.ErrAuthRequired
	}
	return s.syncCart(ctx, s.api.ClearCart)
}

// ToggleFavorite flips membership for a product. The server's full
// updated set replaces the local one.
func (s *CommerceStore) ToggleFavorite(ctx context.Context, productID string) error {
	if !s.session.Ready() {
		return apperrors.ErrAuthRequired
	}
	favs, err := s.withRetryFavorites(ctx, func(ctx context.Context) (models.FavoriteSet, error) {
		return s.api.ToggleFavorite(ctx, productID)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.favorites = favs
	s.mu.Unlock()
	return nil
}

// syncCart runs a cart call under the retry-once-on-401 policy and, on
// success, replaces the whole cart with the server's response.
func (s *CommerceStore) syncCart(ctx context.Context, call func(context.Context) (*models.Cart, error)) error {
	cart, err := s.withRetryCart(ctx, call)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cart = *cart
	s.mu.Unlock()
	return nil
}

// withRetryCart implements the bounded 401 recovery: exactly one token
// refresh followed by exactly one retry, then the failure is terminal.
func (s *CommerceStore) withRetryCart(ctx context.Context, call func(context.Context) (*models.Cart, error)) (*models.Cart, error) {
	cart, err := call(ctx)
	if err == nil || !errors.Is(err, apperrors.ErrTokenExpired) {
		return cart, err
	}

	s.log.Debug("authorization failure, refreshing token once")
	if rerr := s.session.Refresh(ctx); rerr != nil {
		return nil, err
	}
	return call(ctx)
}

func (s *CommerceStore) withRetryFavorites(ctx context.Context, call func(context.Context) (models.FavoriteSet, error)) (models.FavoriteSet, error) {
	favs, err := call(ctx)
	if err == nil || !errors.Is(err, apperrors.ErrTokenExpired) {
		return favs, err
	}

	s.log.Debug("authorization failure, refreshing token once")
	if rerr := s.session.Refresh(ctx); rerr != nil {
		return nil, err
	}
	return call(ctx)
}

func (s *CommerceStore) fetchCart(ctx context.Context) (*models.Cart, error) {
	return s.withRetryCart(ctx, s.api.GetCart)
}

func (s *CommerceStore) fetchFavorites(ctx context.Context) (models.FavoriteSet, error) {
	return s.withRetryFavorites(ctx, s.api.GetFavorites)
}

// Cart returns a snapshot copy of the current cart.
func (s *CommerceStore) Cart() models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Favorites returns a snapshot copy of the current favorite set.
func (s *CommerceStore) Favorites() models.FavoriteSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(models.FavoriteSet(nil), s.favorites...)
}

// ItemCount is the sum of line quantities, computed on read.
func (s *CommerceStore) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ItemCount()
}

// Subtotal is Σ(price × quantity), computed on read so it cannot drift
// from line data.
func (s *CommerceStore) Subtotal() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Subtotal()
}

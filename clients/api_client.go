package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/models"
	"go.uber.org/zap"
)

// TokenSource supplies the current bearer credential. The session manager
// implements it; absence of a token means the request goes out
// unauthenticated and the backend decides.
type TokenSource interface {
	Token() (string, bool)
}

// APIClient is the HTTP client for the bakehouse backend REST surface.
// Every call is bounded by the configured timeout and carries the current
// bearer credential.
type APIClient struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

func NewAPIClient(baseURL string, timeout time.Duration, tokens TokenSource, log *zap.Logger) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log,
	}
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := a.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return a.asError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, fmt.Errorf("decoding %s %s: %w", method, path, err))
	}
	return nil
}

func (a *APIClient) asError(resp *http.Response) error {
	var eb errorBody
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Error
	if msg == "" {
		msg = eb.Message
	}
	if msg == "" {
		msg = string(raw)
	}
	cause := fmt.Errorf("upstream error: status=%d body=%s", resp.StatusCode, msg)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperrors.Wrap(apperrors.ErrTokenExpired, cause)
	case http.StatusBadRequest:
		return apperrors.Wrap(apperrors.ErrValidation, cause)
	default:
		return apperrors.New(resp.StatusCode, msg, cause)
	}
}

// GetCart returns the full current cart.
func (a *APIClient) GetCart(ctx context.Context) (*models.Cart, error) {
	var cart models.Cart
	if err := a.do(ctx, http.MethodGet, "/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddCartItem adds a product to the cart and returns the full cart.
func (a *APIClient) AddCartItem(ctx context.Context, productID string, quantity int) (*models.Cart, error) {
	payload := map[string]interface{}{"productId": productID, "quantity": quantity}
	var cart models.Cart
	if err := a.do(ctx, http.MethodPost, "/cart/items", payload, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpdateCartItem sets a line's quantity and returns the full cart.
func (a *APIClient) UpdateCartItem(ctx context.Context, lineID string, quantity int) (*models.Cart, error) {
	payload := map[string]interface{}{"quantity": quantity}
	var cart models.Cart
	if err := a.do(ctx, http.MethodPut, "/cart/items/"+lineID, payload, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// RemoveCartItem deletes a line and returns the full cart.
func (a *APIClient) RemoveCartItem(ctx context.Context, lineID string) (*models.Cart, error) {
	var cart models.Cart
	if err := a.do(ctx, http.MethodDelete, "/cart/items/"+lineID, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// ClearCart empties the cart and returns the (empty) cart.
func (a *APIClient) ClearCart(ctx context.Context) (*models.Cart, error) {
	var cart models.Cart
	if err := a.do(ctx, http.MethodDelete, "/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetFavorites returns the full favorite set.
func (a *APIClient) GetFavorites(ctx context.Context) (models.FavoriteSet, error) {
	var favs models.FavoriteSet
	if err := a.do(ctx, http.MethodGet, "/favorites", nil, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

// ToggleFavorite flips membership for a product and returns the full
// updated set. Idempotent pairwise: toggling twice restores the set.
func (a *APIClient) ToggleFavorite(ctx context.Context, productID string) (models.FavoriteSet, error) {
	var favs models.FavoriteSet
	if err := a.do(ctx, http.MethodPost, "/favorites/"+productID+"/toggle", nil, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

// CreateOrder persists a new order record.
func (a *APIClient) CreateOrder(ctx context.Context, req *models.OrderRequest) (*models.Order, error) {
	var order models.Order
	if err := a.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreatePaymentOrder opens a payment session with the gateway via the
// backend and returns the gateway session identifiers.
func (a *APIClient) CreatePaymentOrder(ctx context.Context, amount float64, orderID, currency string) (*models.PaymentSession, error) {
	payload := map[string]interface{}{"amount": amount, "orderId": orderID, "currency": currency}
	var session models.PaymentSession
	if err := a.do(ctx, http.MethodPost, "/payment/create-order", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// VerifyPayment runs server-side signature verification for a captured
// payment. A non-2xx response means verification did not pass.
func (a *APIClient) VerifyPayment(ctx context.Context, v models.PaymentVerification) error {
	return a.do(ctx, http.MethodPost, "/payment/verify", v, nil)
}

// ReportPaymentFailure is best-effort failure logging. Its own failure is
// swallowed; the checkout flow never depends on it.
func (a *APIClient) ReportPaymentFailure(ctx context.Context, orderID, reason string) {
	payload := map[string]interface{}{"orderId": orderID, "error": reason}
	if err := a.do(ctx, http.MethodPost, "/payment/failure", payload, nil); err != nil {
		a.log.Warn("failed to report payment failure",
			zap.String("gateway_order_id", orderID),
			zap.Error(err),
		)
	}
}

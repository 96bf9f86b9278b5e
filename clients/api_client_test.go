package clients_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bakehouse-in/storefront/clients"
	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, bool) {
	return s.token, s.token != ""
}

func newClient(t *testing.T, handler http.Handler, token string) (*clients.APIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger, _ := zap.NewDevelopment()
	return clients.NewAPIClient(srv.URL, 5*time.Second, staticTokens{token: token}, logger), srv
}

func TestAddCartItem_SendsBearerAndDecodesFullCart(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/cart/items", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(models.Cart{Items: []models.CartLine{
			{ID: "l1", ProductID: "p1", Name: "Sourdough Loaf", Price: 120, Quantity: 2},
		}})
	})
	client, _ := newClient(t, handler, "tok-1")

	cart, err := client.AddCartItem(context.Background(), "p1", 2)

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "p1", gotBody["productId"])
	assert.Equal(t, 2.0, gotBody["quantity"])
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Sourdough Loaf", cart.Items[0].Name)
}

func TestDo_Maps401ToTokenExpired(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
	})
	client, _ := newClient(t, handler, "stale")

	_, err := client.GetCart(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))
}

func TestDo_Maps400ToValidation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "quantity out of range"})
	})
	client, _ := newClient(t, handler, "tok-1")

	_, err := client.UpdateCartItem(context.Background(), "l1", 999)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestDo_TransportFailureMapsToNetwork(t *testing.T) {
	client, srv := newClient(t, http.NotFoundHandler(), "tok-1")
	srv.Close()

	_, err := client.GetCart(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNetwork))
}

func TestToggleFavorite_ReturnsFullSet(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/favorites/p2/toggle", r.URL.Path)
		json.NewEncoder(w).Encode([]string{"p1", "p2"})
	})
	client, _ := newClient(t, handler, "tok-1")

	favs, err := client.ToggleFavorite(context.Background(), "p2")

	require.NoError(t, err)
	assert.Equal(t, models.FavoriteSet{"p1", "p2"}, favs)
}

func TestCreateOrder_PostsPayloadAndDecodesOrder(t *testing.T) {
	var got models.OrderRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(models.Order{ID: "o1", TotalAmount: got.TotalAmount})
	})
	client, _ := newClient(t, handler, "tok-1")

	order, err := client.CreateOrder(context.Background(), &models.OrderRequest{
		PaymentMethod:  "cod",
		Subtotal:       240,
		DeliveryCharge: 40,
		TotalAmount:    280,
	})

	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, 280.0, got.TotalAmount)
	assert.Equal(t, "cod", got.PaymentMethod)
}

func TestVerifyPayment_NonOKIsError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment/verify", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid signature"})
	})
	client, _ := newClient(t, handler, "tok-1")

	err := client.VerifyPayment(context.Background(), models.PaymentVerification{
		GatewayOrderID:   "gw1",
		GatewayPaymentID: "pay1",
		GatewaySignature: "sig",
	})

	require.Error(t, err)
}

func TestReportPaymentFailure_SwallowsErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, _ := newClient(t, handler, "tok-1")

	// must not panic or surface anything
	client.ReportPaymentFailure(context.Background(), "gw1", "card declined")
}

package models

import "time"

// Payment status values. Online orders are created already Paid; COD
// orders start Pending.
const (
	PaymentPending = "Pending"
	PaymentPaid    = "Paid"
)

// Order lifecycle statuses. Forward-only, except Cancelled which may be
// entered from any pre-terminal state.
const (
	OrderPending        = "Pending"
	OrderConfirmed      = "Confirmed"
	OrderPreparing      = "Preparing"
	OrderOutForDelivery = "Out for Delivery"
	OrderDelivered      = "Delivered"
	OrderCancelled      = "Cancelled"
)

// OrderItem is a line item snapshotted at order time.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Order is immutable once created. Exactly one order is created per
// successful checkout; for the online path, creation is deferred until
// payment verification succeeds.
type Order struct {
	ID               string      `json:"id"`
	Items            []OrderItem `json:"items"`
	DeliveryAddress  Address     `json:"deliveryAddress"`
	PaymentMethod    string      `json:"paymentMethod"`
	PaymentStatus    string      `json:"paymentStatus"`
	Status           string      `json:"status"`
	Subtotal         float64     `json:"subtotal"`
	DeliveryCharge   float64     `json:"deliveryCharge"`
	TotalAmount      float64     `json:"totalAmount"`
	GatewayOrderID   string      `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string      `json:"gatewayPaymentId,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// OrderRequest is the payload for POST /orders.
type OrderRequest struct {
	Items            []OrderItem `json:"items"`
	DeliveryAddress  Address     `json:"deliveryAddress"`
	PaymentMethod    string      `json:"paymentMethod"`
	Subtotal         float64     `json:"subtotal"`
	DeliveryCharge   float64     `json:"deliveryCharge"`
	TotalAmount      float64     `json:"totalAmount"`
	PaymentStatus    string      `json:"paymentStatus,omitempty"`
	GatewayOrderID   string      `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string      `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string      `json:"gatewaySignature,omitempty"`
}

// OrderItemsFromCart snapshots cart lines into order items.
func OrderItemsFromCart(cart Cart) []OrderItem {
	items := make([]OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}
	return items
}

// PaymentSession identifies a payment session opened with the gateway
// through the backend (POST /payment/create-order).
type PaymentSession struct {
	GatewayOrderID string  `json:"gatewayOrderId"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Receipt        string  `json:"receipt"`
}

// PaymentVerification is the payload for POST /payment/verify.
type PaymentVerification struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewaySignature string `json:"gatewaySignature"`
	OrderID          string `json:"orderId"`
}

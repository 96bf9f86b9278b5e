package checkout

import (
	"context"
	"fmt"

	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/gateway"
	"github.com/bakehouse-in/storefront/models"
	"github.com/bakehouse-in/storefront/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartSource is the slice of the commerce store checkout depends on: a
// read-only snapshot plus the one mutation checkout is allowed, clearing
// the cart after a completed order.
type CartSource interface {
	Cart() models.Cart
	Clear(ctx context.Context) error
}

// OrdersAPI is the slice of the backend client checkout depends on.
type OrdersAPI interface {
	CreateOrder(ctx context.Context, req *models.OrderRequest) (*models.Order, error)
	CreatePaymentOrder(ctx context.Context, amount float64, orderID, currency string) (*models.PaymentSession, error)
	VerifyPayment(ctx context.Context, v models.PaymentVerification) error
	ReportPaymentFailure(ctx context.Context, orderID, reason string)
}

// Identity exposes the signed-in principal for gateway prefill.
type Identity interface {
	Principal() (session.Principal, bool)
}

// PostPaymentError is the one unrecoverable checkout failure: payment
// was captured and verified but the order record could not be saved.
// It is never retried automatically; re-submitting order creation could
// double-charge or duplicate an order for a payment already captured.
type PostPaymentError struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Cause            error
}

func (e *PostPaymentError) Error() string {
	return fmt.Sprintf(
		"your payment was received but the order could not be saved; please contact support with reference %s",
		e.GatewayPaymentID,
	)
}

func (e *PostPaymentError) Unwrap() error { return e.Cause }

func (e *PostPaymentError) Is(target error) bool {
	return target == apperrors.ErrPostPaymentPersistence
}

// Orchestrator drives the checkout state machine and is the sole writer
// of new order records.
type Orchestrator struct {
	cart     CartSource
	api      OrdersAPI
	gw       gateway.Gateway
	identity Identity
	pricing  models.PricingRules
	currency string
	log      *zap.Logger
}

func NewOrchestrator(cart CartSource, api OrdersAPI, gw gateway.Gateway, identity Identity, pricing models.PricingRules, currency string, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cart:     cart,
		api:      api,
		gw:       gw,
		identity: identity,
		pricing:  pricing,
		currency: currency,
		log:      log,
	}
}

// buildRequest snapshots the cart and prices it. The cart-view delivery
// rule is authoritative here too: the charge applies below the threshold
// and is zero at or above it.
func (o *Orchestrator) buildRequest(addr models.Address, method Method) (*models.OrderRequest, error) {
	snapshot := o.cart.Cart()
	if len(snapshot.Items) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrValidation, fmt.Errorf("cart is empty"))
	}

	totals := o.pricing.Quote(snapshot.Subtotal())
	return &models.OrderRequest{
		Items:           models.OrderItemsFromCart(snapshot),
		DeliveryAddress: addr,
		PaymentMethod:   string(method),
		Subtotal:        totals.Subtotal,
		DeliveryCharge:  totals.DeliveryCharge,
		TotalAmount:     totals.GrandTotal,
	}, nil
}

// PlaceCODOrder runs the synchronous cash-on-delivery path: one order
// creation, then one cart clear, in that order. A failure leaves no
// partial state behind because neither an order nor a payment exists yet.
func (o *Orchestrator) PlaceCODOrder(ctx context.Context, co *Session) (*models.Order, error) {
	addr, method, err := co.begin()
	if err != nil {
		return nil, err
	}
	defer co.finish()

	if method != MethodCOD {
		return nil, apperrors.Wrap(apperrors.ErrValidation, fmt.Errorf("selected payment method is %q", method))
	}

	req, err := o.buildRequest(addr, MethodCOD)
	if err != nil {
		return nil, err
	}

	order, err := o.api.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	o.clearCart(ctx, order.ID)

	o.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("payment_method", string(MethodCOD)),
		zap.Float64("total", order.TotalAmount),
	)
	return order, nil
}

// PayOnline runs the asynchronous two-phase path: open a gateway
// session, await its callback, verify the payment server-side, and only
// after verification succeeds create the order as Paid. The cart is
// cleared only after order creation succeeds.
func (o *Orchestrator) PayOnline(ctx context.Context, co *Session) (*models.Order, error) {
	addr, method, err := co.begin()
	if err != nil {
		return nil, err
	}
	defer co.finish()

	if method != MethodOnline {
		return nil, apperrors.Wrap(apperrors.ErrValidation, fmt.Errorf("selected payment method is %q", method))
	}

	req, err := o.buildRequest(addr, MethodOnline)
	if err != nil {
		return nil, err
	}

	receipt := uuid.NewString()
	ps, err := o.api.CreatePaymentOrder(ctx, req.TotalAmount, receipt, o.currency)
	if err != nil {
		return nil, err
	}
	co.notePaymentSession(*ps)

	result, err := o.awaitGateway(ctx, ps, receipt)
	if err != nil {
		// Pre-verification failure: fully recoverable, the user retries
		// payment from scratch.
		o.api.ReportPaymentFailure(ctx, ps.GatewayOrderID, err.Error())
		return nil, apperrors.Wrap(apperrors.ErrPaymentGateway, err)
	}

	verification := models.PaymentVerification{
		GatewayOrderID:   result.GatewayOrderID,
		GatewayPaymentID: result.GatewayPaymentID,
		GatewaySignature: result.GatewaySignature,
		OrderID:          receipt,
	}
	if err := o.api.VerifyPayment(ctx, verification); err != nil {
		o.api.ReportPaymentFailure(ctx, ps.GatewayOrderID, err.Error())
		return nil, apperrors.Wrap(apperrors.ErrPaymentGateway, err)
	}

	req.PaymentStatus = models.PaymentPaid
	req.GatewayOrderID = result.GatewayOrderID
	req.GatewayPaymentID = result.GatewayPaymentID
	req.GatewaySignature = result.GatewaySignature

	order, err := o.api.CreateOrder(ctx, req)
	if err != nil {
		// Payment is already captured and verified. The cart is left
		// intact and the failure is escalated with the gateway reference;
		// it must never be retried silently.
		o.log.Error("order persistence failed after verified payment",
			zap.String("gateway_order_id", result.GatewayOrderID),
			zap.String("gateway_payment_id", result.GatewayPaymentID),
			zap.Error(err),
		)
		return nil, &PostPaymentError{
			GatewayOrderID:   result.GatewayOrderID,
			GatewayPaymentID: result.GatewayPaymentID,
			Cause:            err,
		}
	}

	o.clearCart(ctx, order.ID)

	o.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("payment_method", string(MethodOnline)),
		zap.String("gateway_payment_id", result.GatewayPaymentID),
		zap.Float64("total", order.TotalAmount),
	)
	return order, nil
}

// awaitGateway opens the embedded checkout UI and blocks until it
// reports back or ctx ends.
func (o *Orchestrator) awaitGateway(ctx context.Context, ps *models.PaymentSession, receipt string) (gateway.Result, error) {
	var prefill gateway.Prefill
	if principal, ok := o.identity.Principal(); ok {
		prefill = gateway.Prefill{
			Name:  principal.Name,
			Email: principal.Email,
			Phone: principal.Phone,
		}
	}

	attempt, err := o.gw.Open(ctx, gateway.Request{
		GatewayOrderID: ps.GatewayOrderID,
		Amount:         ps.Amount,
		Currency:       ps.Currency,
		Receipt:        receipt,
		Prefill:        prefill,
	})
	if err != nil {
		return gateway.Result{}, err
	}

	select {
	case <-ctx.Done():
		attempt.Cancel()
		o.gw.Abandon(ps.GatewayOrderID)
		return gateway.Result{}, ctx.Err()
	case result := <-attempt.Done():
		if result.Err != nil {
			return gateway.Result{}, result.Err
		}
		return result, nil
	}
}

// clearCart empties the cart after a completed order. The order already
// exists, so a clear failure is logged rather than surfaced.
func (o *Orchestrator) clearCart(ctx context.Context, orderID string) {
	if err := o.cart.Clear(ctx); err != nil {
		o.log.Warn("failed to clear cart after order",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

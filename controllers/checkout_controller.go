package controllers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bakehouse-in/storefront/checkout"
	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/gateway"
	"github.com/bakehouse-in/storefront/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// paymentWindow bounds how long an online payment may sit open before
// the flow is abandoned.
const paymentWindow = 10 * time.Minute

// callbackWait bounds how long a gateway callback request waits for the
// verification and order-creation phase to finish.
const callbackWait = 30 * time.Second

type payOutcome struct {
	order *models.Order
	err   error
}

// flow is one browser checkout in progress.
type flow struct {
	id        string
	co        *checkout.Session
	outcome   chan payOutcome
	cancel    context.CancelFunc
	gatewayID string
}

// CheckoutController exposes the checkout wizard and bridges the payment
// gateway's browser-side callbacks into the orchestrator's linear flow.
type CheckoutController struct {
	orch         *checkout.Orchestrator
	gw           *gateway.CallbackGateway
	pincodes     []string
	gatewayKeyID string
	log          *zap.Logger

	mu        sync.Mutex
	flows     map[string]*flow
	byGateway map[string]*flow
}

func NewCheckoutController(orch *checkout.Orchestrator, gw *gateway.CallbackGateway, pincodes []string, gatewayKeyID string, log *zap.Logger) *CheckoutController {
	return &CheckoutController{
		orch:         orch,
		gw:           gw,
		pincodes:     pincodes,
		gatewayKeyID: gatewayKeyID,
		log:          log,
		flows:        make(map[string]*flow),
		byGateway:    make(map[string]*flow),
	}
}

// Start opens a new checkout at the address step.
func (cc *CheckoutController) Start(c *gin.Context) {
	f := &flow{
		id:      uuid.NewString(),
		co:      checkout.NewSession(cc.pincodes),
		outcome: make(chan payOutcome, 1),
	}
	cc.mu.Lock()
	cc.flows[f.id] = f
	cc.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"checkoutId": f.id, "step": f.co.Step()})
}

func (cc *CheckoutController) lookup(c *gin.Context) *flow {
	cc.mu.Lock()
	f := cc.flows[c.Param("id")]
	cc.mu.Unlock()
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "checkout not found"})
	}
	return f
}

// SelectAddress validates and records the delivery address.
func (cc *CheckoutController) SelectAddress(c *gin.Context) {
	f := cc.lookup(c)
	if f == nil {
		return
	}
	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := f.co.SelectAddress(addr); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": f.co.Step()})
}

// SelectMethod records the payment method.
func (cc *CheckoutController) SelectMethod(c *gin.Context) {
	f := cc.lookup(c)
	if f == nil {
		return
	}
	var body struct {
		Method string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := f.co.SelectMethod(checkout.Method(body.Method)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": f.co.Step()})
}

// Next advances the wizard one step.
func (cc *CheckoutController) Next(c *gin.Context) {
	f := cc.lookup(c)
	if f == nil {
		return
	}
	if err := f.co.Next(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": f.co.Step()})
}

// Back moves the wizard one step backwards.
func (cc *CheckoutController) Back(c *gin.Context) {
	f := cc.lookup(c)
	if f == nil {
		return
	}
	f.co.Back()
	c.JSON(http.StatusOK, gin.H{"step": f.co.Step()})
}

// Confirm triggers the terminal protocol for the selected method.
func (cc *CheckoutController) Confirm(c *gin.Context) {
	f := cc.lookup(c)
	if f == nil {
		return
	}

	switch f.co.Method() {
	case checkout.MethodCOD:
		cc.confirmCOD(c, f)
	case checkout.MethodOnline:
		cc.confirmOnline(c, f)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "no payment method selected"})
	}
}

func (cc *CheckoutController) confirmCOD(c *gin.Context, f *flow) {
	order, err := cc.orch.PlaceCODOrder(c.Request.Context(), f.co)
	if err != nil {
		respondError(c, err)
		return
	}
	cc.drop(f)
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// confirmOnline launches the two-phase flow in the background and
// returns the gateway session for the browser to open the embedded
// checkout UI. The final outcome is delivered on the callback request.
func (cc *CheckoutController) confirmOnline(c *gin.Context, f *flow) {
	ctx, cancel := context.WithTimeout(context.Background(), paymentWindow)
	f.cancel = cancel

	go func() {
		defer cancel()
		order, err := cc.orch.PayOnline(ctx, f.co)
		f.outcome <- payOutcome{order: order, err: err}
	}()

	select {
	case ps := <-f.co.PaymentSession():
		cc.mu.Lock()
		f.gatewayID = ps.GatewayOrderID
		cc.byGateway[ps.GatewayOrderID] = f
		cc.mu.Unlock()
		c.JSON(http.StatusAccepted, gin.H{
			"checkoutId":     f.id,
			"gatewayOrderId": ps.GatewayOrderID,
			"amount":         ps.Amount,
			"currency":       ps.Currency,
			"keyId":          cc.gatewayKeyID,
		})
	case out := <-f.outcome:
		// The flow failed before a gateway session was opened.
		cc.drop(f)
		respondError(c, out.err)
	}
}

// PaymentSuccess is the gateway's success callback. It feeds the waiting
// flow and answers with the final checkout outcome: the created order,
// or the support-escalation message when the order could not be saved
// for an already-captured payment.
func (cc *CheckoutController) PaymentSuccess(c *gin.Context) {
	var body struct {
		GatewayOrderID   string `json:"gatewayOrderId" binding:"required"`
		GatewayPaymentID string `json:"gatewayPaymentId" binding:"required"`
		GatewaySignature string `json:"gatewaySignature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	f := cc.takeByGateway(body.GatewayOrderID)
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no payment in progress for this order"})
		return
	}

	cc.gw.Resolve(body.GatewayOrderID, body.GatewayPaymentID, body.GatewaySignature)
	cc.finishOnline(c, f)
}

// PaymentFailure is the gateway's failure/cancellation callback. No
// order exists; the user can retry payment from scratch.
func (cc *CheckoutController) PaymentFailure(c *gin.Context) {
	var body struct {
		GatewayOrderID string `json:"gatewayOrderId" binding:"required"`
		Error          string `json:"error"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	f := cc.takeByGateway(body.GatewayOrderID)
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no payment in progress for this order"})
		return
	}

	cc.gw.Reject(body.GatewayOrderID, body.Error)
	cc.finishOnline(c, f)
}

// finishOnline waits for the background flow to settle and renders its
// outcome. On timeout the flow stays registered; the browser learns the
// outcome later through Result.
func (cc *CheckoutController) finishOnline(c *gin.Context, f *flow) {
	select {
	case out := <-f.outcome:
		cc.drop(f)
		cc.renderOutcome(c, out)
	case <-time.After(callbackWait):
		cc.log.Warn("timed out waiting for checkout outcome", zap.String("checkout_id", f.id))
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":      "checkout is still processing",
			"checkoutId": f.id,
		})
	}
}

// Result reports the final outcome of a confirmed checkout. It covers
// the case where the callback response was lost or timed out: the
// browser polls here until the buffered outcome lands.
func (cc *CheckoutController) Result(c *gin.Context) {
	f := cc.lookup(c)
	if f == nil {
		return
	}
	select {
	case out := <-f.outcome:
		cc.drop(f)
		cc.renderOutcome(c, out)
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
	}
}

func (cc *CheckoutController) renderOutcome(c *gin.Context, out payOutcome) {
	if out.err == nil {
		c.JSON(http.StatusCreated, gin.H{"order": out.order})
		return
	}

	var ppe *checkout.PostPaymentError
	if errors.As(out.err, &ppe) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":            ppe.Error(),
			"supportReference": ppe.GatewayPaymentID,
			"cartPreserved":    true,
		})
		return
	}
	if errors.Is(out.err, apperrors.ErrPaymentGateway) {
		appErr := apperrors.From(out.err)
		c.JSON(appErr.Code, gin.H{"error": appErr.Message, "retryable": true})
		return
	}
	respondError(c, out.err)
}

func (cc *CheckoutController) takeByGateway(gatewayOrderID string) *flow {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	f := cc.byGateway[gatewayOrderID]
	delete(cc.byGateway, gatewayOrderID)
	return f
}

func (cc *CheckoutController) drop(f *flow) {
	if f.cancel != nil {
		f.cancel()
	}
	cc.mu.Lock()
	delete(cc.flows, f.id)
	if f.gatewayID != "" {
		delete(cc.byGateway, f.gatewayID)
	}
	cc.mu.Unlock()
}

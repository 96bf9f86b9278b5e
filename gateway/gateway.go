// Package gateway abstracts the external payment gateway's embedded
// checkout UI. The gateway reports back through success/failure
// callbacks; Attempt wraps those callbacks in a cancellable,
// await-able result so checkout logic stays linear.
package gateway

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is delivered when an attempt is abandoned before the
// gateway reports back (e.g. the user navigated away).
var ErrCancelled = errors.New("payment attempt cancelled")

// Prefill is the signed-in principal's profile, handed to the gateway UI.
type Prefill struct {
	Name  string
	Email string
	Phone string
}

// Request describes the payment session the gateway UI should open.
type Request struct {
	GatewayOrderID string
	Amount         float64
	Currency       string
	Receipt        string
	Prefill        Prefill
}

// Result is the gateway's terminal report for one attempt. On success
// the three identifiers are set; on failure or cancellation Err is set.
type Result struct {
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	Err              error
}

// Attempt is a single in-flight payment. It resolves exactly once;
// late or duplicate callbacks are ignored.
type Attempt struct {
	once sync.Once
	done chan Result
}

func NewAttempt() *Attempt {
	return &Attempt{done: make(chan Result, 1)}
}

// Done delivers the attempt's single terminal result.
func (a *Attempt) Done() <-chan Result {
	return a.done
}

// Succeed resolves the attempt with the gateway's transaction identifiers.
func (a *Attempt) Succeed(orderID, paymentID, signature string) {
	a.once.Do(func() {
		a.done <- Result{
			GatewayOrderID:   orderID,
			GatewayPaymentID: paymentID,
			GatewaySignature: signature,
		}
	})
}

// Fail resolves the attempt with a gateway-reported failure.
func (a *Attempt) Fail(orderID string, err error) {
	a.once.Do(func() {
		a.done <- Result{GatewayOrderID: orderID, Err: err}
	})
}

// Cancel abandons the attempt.
func (a *Attempt) Cancel() {
	a.once.Do(func() {
		a.done <- Result{Err: ErrCancelled}
	})
}

// Gateway opens the embedded checkout UI for a payment session. Open
// returns immediately; all further progress arrives on the Attempt.
// Abandon discards an opened session whose payment window has expired.
type Gateway interface {
	Open(ctx context.Context, req Request) (*Attempt, error)
	Abandon(gatewayOrderID string)
}

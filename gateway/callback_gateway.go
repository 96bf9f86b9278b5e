package gateway

import (
	"context"
	"fmt"
	"sync"
)

// CallbackGateway bridges the gateway's browser-side callbacks into
// Attempts. The embedded checkout UI runs out of process; when it posts
// its success or failure callback to the storefront, Resolve/Reject
// deliver the result to whichever checkout flow is awaiting it.
type CallbackGateway struct {
	mu      sync.Mutex
	pending map[string]*Attempt
}

func NewCallbackGateway() *CallbackGateway {
	return &CallbackGateway{pending: make(map[string]*Attempt)}
}

// Open registers an attempt keyed by the gateway order id and returns
// immediately.
func (g *CallbackGateway) Open(_ context.Context, req Request) (*Attempt, error) {
	if req.GatewayOrderID == "" {
		return nil, fmt.Errorf("gateway order id required")
	}
	attempt := NewAttempt()
	g.mu.Lock()
	g.pending[req.GatewayOrderID] = attempt
	g.mu.Unlock()
	return attempt, nil
}

// Resolve delivers a success callback. Returns false when no attempt is
// waiting on the id (late or unknown callback, ignored by design of the
// resolve-once Attempt).
func (g *CallbackGateway) Resolve(gatewayOrderID, paymentID, signature string) bool {
	attempt := g.take(gatewayOrderID)
	if attempt == nil {
		return false
	}
	attempt.Succeed(gatewayOrderID, paymentID, signature)
	return true
}

// Reject delivers a failure/cancellation callback.
func (g *CallbackGateway) Reject(gatewayOrderID, reason string) bool {
	attempt := g.take(gatewayOrderID)
	if attempt == nil {
		return false
	}
	attempt.Fail(gatewayOrderID, fmt.Errorf("gateway reported failure: %s", reason))
	return true
}

// Abandon removes a pending attempt without resolving it, so expired
// payment windows do not accumulate registry entries.
func (g *CallbackGateway) Abandon(gatewayOrderID string) {
	g.take(gatewayOrderID)
}

func (g *CallbackGateway) take(gatewayOrderID string) *Attempt {
	g.mu.Lock()
	defer g.mu.Unlock()
	attempt, ok := g.pending[gatewayOrderID]
	if !ok {
		return nil
	}
	delete(g.pending, gatewayOrderID)
	return attempt
}

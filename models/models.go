package models

import "time"

// CartLine is one cart entry: a product reference, a quantity, and a
// denormalized snapshot of the product's display data as returned by the
// backend. A line with quantity 0 must not exist; removal is a delete.
type CartLine struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
}

// Cart mirrors the backend's authoritative cart state.
type Cart struct {
	Items     []CartLine `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ItemCount is the sum of line quantities, computed on read.
func (c Cart) ItemCount() int {
	total := 0
	for _, line := range c.Items {
		total += line.Quantity
	}
	return total
}

// Subtotal is Σ(price × quantity) over the live line snapshots.
func (c Cart) Subtotal() float64 {
	var total float64
	for _, line := range c.Items {
		total += line.Price * float64(line.Quantity)
	}
	return total
}

// Clone returns a deep copy so callers can hold a snapshot without
// aliasing the store's backing slice.
func (c Cart) Clone() Cart {
	out := c
	out.Items = append([]CartLine(nil), c.Items...)
	return out
}

// FavoriteSet is the set of favorited product ids. Unique, unordered.
type FavoriteSet []string

// Has reports whether productID is in the set.
func (f FavoriteSet) Has(productID string) bool {
	for _, id := range f {
		if id == productID {
			return true
		}
	}
	return false
}

// Address is a delivery address. Validation runs before checkout can
// advance past the address step.
type Address struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required,min=10"`
	Line1    string `json:"line1" validate:"required"`
	Line2    string `json:"line2"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	Pincode  string `json:"pincode" validate:"required,len=6,numeric"`
	Landmark string `json:"landmark"`
}

// PricingRules holds the delivery pricing policy. The cart-view rule is
// authoritative at checkout time as well: the charge applies below the
// threshold and drops to zero at or above it.
type PricingRules struct {
	DeliveryCharge        float64
	FreeDeliveryThreshold float64
}

// DeliveryChargeFor returns the delivery charge for a subtotal.
func (p PricingRules) DeliveryChargeFor(subtotal float64) float64 {
	if subtotal >= p.FreeDeliveryThreshold {
		return 0
	}
	return p.DeliveryCharge
}

// IsFreeDelivery reports whether subtotal qualifies for free delivery.
func (p PricingRules) IsFreeDelivery(subtotal float64) bool {
	return subtotal >= p.FreeDeliveryThreshold
}

// Totals is the priced breakdown of a cart at checkout time.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	DeliveryCharge float64 `json:"deliveryCharge"`
	GrandTotal     float64 `json:"totalAmount"`
}

// Quote prices a subtotal under the rules. GrandTotal is always
// Subtotal + DeliveryCharge.
func (p PricingRules) Quote(subtotal float64) Totals {
	charge := p.DeliveryChargeFor(subtotal)
	return Totals{
		Subtotal:       subtotal,
		DeliveryCharge: charge,
		GrandTotal:     subtotal + charge,
	}
}

package controllers

import (
	"errors"
	"net/http"

	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/logger"
	"github.com/bakehouse-in/storefront/models"
	"github.com/bakehouse-in/storefront/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CommerceController exposes the cart and favorites mirror over HTTP.
type CommerceController struct {
	store   *store.CommerceStore
	pricing models.PricingRules
}

func NewCommerceController(s *store.CommerceStore, pricing models.PricingRules) *CommerceController {
	return &CommerceController{store: s, pricing: pricing}
}

func (cc *CommerceController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// cartView is the cart snapshot plus derived figures, computed on read.
func (cc *CommerceController) cartView() gin.H {
	cart := cc.store.Cart()
	totals := cc.pricing.Quote(cart.Subtotal())
	return gin.H{
		"cart":           cart,
		"itemCount":      cart.ItemCount(),
		"subtotal":       totals.Subtotal,
		"deliveryCharge": totals.DeliveryCharge,
		"totalAmount":    totals.GrandTotal,
		"isFreeDelivery": cc.pricing.IsFreeDelivery(totals.Subtotal),
	}
}

func (cc *CommerceController) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, cc.cartView())
}

func (cc *CommerceController) AddItem(c *gin.Context) {
	var body struct {
		ProductID string `json:"productId" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := cc.store.AddToCart(c.Request.Context(), body.ProductID, body.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cc.cartView())
}

func (cc *CommerceController) UpdateItem(c *gin.Context) {
	lineID := c.Param("id")
	var body struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := cc.store.UpdateQuantity(c.Request.Context(), lineID, body.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cc.cartView())
}

func (cc *CommerceController) RemoveItem(c *gin.Context) {
	if err := cc.store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cc.cartView())
}

func (cc *CommerceController) ClearCart(c *gin.Context) {
	if err := cc.store.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cc.cartView())
}

func (cc *CommerceController) GetFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"favorites": cc.store.Favorites()})
}

func (cc *CommerceController) ToggleFavorite(c *gin.Context) {
	productID := c.Param("productId")
	if err := cc.store.ToggleFavorite(c.Request.Context(), productID); err != nil {
		respondError(c, err)
		return
	}
	favs := cc.store.Favorites()
	c.JSON(http.StatusOK, gin.H{
		"favorites": favs,
		"favorited": favs.Has(productID),
	})
}

// respondError renders application errors with their mapped status and a
// signinRequired hint for the auth-required rejection.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.FromContext(c).Error("request failed", zap.Error(err))
	}
	body := gin.H{"error": appErr.Message}
	if errors.Is(err, apperrors.ErrAuthRequired) {
		body["signinRequired"] = true
	}
	c.JSON(appErr.Code, body)
}

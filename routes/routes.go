package routes

import (
	"github.com/bakehouse-in/storefront/controllers"
	"github.com/bakehouse-in/storefront/logger"
	"github.com/bakehouse-in/storefront/middleware"
	"github.com/gin-gonic/gin"
)

// Register wires the storefront surface onto the router.
func Register(r *gin.Engine, commerce *controllers.CommerceController, checkout *controllers.CheckoutController) {
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(middleware.RateLimitMiddleware())

	r.GET("/health", commerce.Health)

	cart := r.Group("/cart")
	cart.GET("", commerce.GetCart)
	cart.POST("/items", commerce.AddItem)
	cart.PUT("/items/:id", commerce.UpdateItem)
	cart.DELETE("/items/:id", commerce.RemoveItem)
	cart.DELETE("", commerce.ClearCart)

	favorites := r.Group("/favorites")
	favorites.GET("", commerce.GetFavorites)
	favorites.POST("/:productId/toggle", commerce.ToggleFavorite)

	co := r.Group("/checkout")
	co.POST("", checkout.Start)
	co.POST("/:id/address", checkout.SelectAddress)
	co.POST("/:id/method", checkout.SelectMethod)
	co.POST("/:id/next", checkout.Next)
	co.POST("/:id/back", checkout.Back)
	co.POST("/:id/confirm", checkout.Confirm)
	co.GET("/:id/result", checkout.Result)

	// The embedded gateway UI posts its callbacks here.
	payment := r.Group("/payment/callback")
	payment.POST("/success", checkout.PaymentSuccess)
	payment.POST("/failure", checkout.PaymentFailure)
}

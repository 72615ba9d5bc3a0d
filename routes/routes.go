// routes/routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"go-storefront/controllers"
	"go-storefront/metrics"
	"go-storefront/middleware"
	"go-storefront/utils"
)

// Options carries the shared dependencies of the route middleware.
type Options struct {
	Tokens  *utils.JWTManager
	Logger  logrus.FieldLogger
	Limiter *middleware.RateLimiter
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, opts Options, userController *controllers.UserController, productController *controllers.ProductController, cartController *controllers.CartController, orderController *controllers.OrderController) {
	router.Use(middleware.LoggingMiddleware(opts.Logger))
	router.Use(middleware.RecoverMiddleware)
	router.Use(middleware.MetricsMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Public routes
	auth := api.NewRoute().Subrouter()
	if opts.Limiter != nil {
		auth.Use(opts.Limiter.Handler)
	}
	auth.HandleFunc("/signup", userController.Signup).Methods("POST")
	auth.HandleFunc("/login", userController.Login).Methods("POST")

	// Product routes
	api.HandleFunc("/products", productController.GetProducts).Methods("GET")
	api.HandleFunc("/products/{id}", productController.GetProductByID).Methods("GET")

	// Protected routes
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(opts.Tokens))
	protected.HandleFunc("/user/profile", userController.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update", userController.UpdateProfile).Methods("PUT")

	// Cart routes
	protected.HandleFunc("/cart", cartController.GetCart).Methods("GET")
	protected.HandleFunc("/cart", cartController.ClearCart).Methods("DELETE")
	protected.HandleFunc("/cart/add", cartController.AddToCart).Methods("POST")
	protected.HandleFunc("/cart/update", cartController.UpdateCartItem).Methods("PUT")
	protected.HandleFunc("/cart/remove/{productId}", cartController.RemoveFromCart).Methods("DELETE")

	// Order routes; history is registered before the {id} pattern
	protected.HandleFunc("/order", orderController.CreateOrder).Methods("POST")
	protected.HandleFunc("/order/history", orderController.GetOrderHistory).Methods("GET")
	protected.HandleFunc("/order/{id}", orderController.GetOrder).Methods("GET")

	// Admin routes
	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.AuthMiddleware(opts.Tokens))
	admin.Use(middleware.AdminMiddleware)
	admin.HandleFunc("/products", productController.CreateProduct).Methods("POST")
	admin.HandleFunc("/products/{id}", productController.UpdateProduct).Methods("PUT")
	admin.HandleFunc("/products/{id}", productController.DeleteProduct).Methods("DELETE")
	admin.HandleFunc("/order/{id}/status", orderController.UpdateOrderStatus).Methods("PUT")
	admin.HandleFunc("/order/{id}/payment", orderController.UpdatePaymentStatus).Methods("PUT")
}

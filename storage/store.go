package storage

import (
	"context"
	"errors"
	"fmt"

	"go-storefront/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicate         = errors.New("duplicate resource")
	ErrInvalidInput      = errors.New("invalid input data")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// UserStore persists accounts. Username and email are unique.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// CreateUser assigns the user's ID and timestamps. It returns ErrDuplicate
	// when the username or email is taken.
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error)
}

// ProductStore persists the catalog. Listings are ordered by ID.
type ProductStore interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetFeaturedProducts(ctx context.Context) ([]models.Product, error)
	GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id int64, update models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// CartStore persists carts and their items.
type CartStore interface {
	GetCart(ctx context.Context, userID int64) (*models.Cart, error)
	CreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	// GetOrCreateCart returns the user's cart, creating it on first access.
	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	// GetCartItems joins items with their products. Items whose product was
	// deleted are left out.
	GetCartItems(ctx context.Context, cartID int64) ([]models.CartLine, error)
	// AddCartItem increments the quantity of an existing line for the product
	// or creates one.
	AddCartItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error)
	// UpdateCartItem sets the quantity of an existing line. Quantities below 1
	// are rejected with ErrInvalidInput.
	UpdateCartItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error)
	RemoveCartItem(ctx context.Context, cartID, productID int64) error
	ClearCart(ctx context.Context, cartID int64) error
}

// OrderStore persists orders and their items.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error)
	// GetOrderItems joins items with their products. Items whose product was
	// deleted are left out.
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	// PlaceOrder converts the user's cart into an order as one unit: it prices
	// the cart at current product prices, records the order and its items,
	// empties the cart and decrements stock. It returns ErrEmptyCart when
	// there is nothing to buy and ErrInsufficientStock when a product cannot
	// cover the requested quantity.
	PlaceOrder(ctx context.Context, userID int64, shippingAddress string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Order, error)
}

// Store is the full persistence contract used by the controllers.
type Store interface {
	UserStore
	ProductStore
	CartStore
	OrderStore
}

func checkOrderTransition(from, to models.OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: order cannot move from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func checkPaymentTransition(from, to models.PaymentStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: payment cannot move from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func validateProduct(p *models.Product) error {
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidInput)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}
	return nil
}

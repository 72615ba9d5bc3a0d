package controllers

import (
	"context"
	"errors"
	"net/http"

	"go-storefront/apperror"
	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// CartController handles cart-related requests
type CartController struct {
	Carts    storage.CartStore
	Products storage.ProductStore
}

// NewCartController creates a new CartController
func NewCartController(carts storage.CartStore, products storage.ProductStore) *CartController {
	return &CartController{Carts: carts, Products: products}
}

type addToCartRequest struct {
	ProductID int64 `json:"productId" validate:"required"`
	Quantity  *int  `json:"quantity" validate:"omitempty,min=1"`
}

type updateCartRequest struct {
	ProductID int64 `json:"productId" validate:"required"`
	Quantity  *int  `json:"quantity" validate:"required,min=0"`
}

type cartResponse struct {
	Cart  *models.Cart      `json:"cart"`
	Items []models.CartLine `json:"items"`
	Total models.Money      `json:"total"`
}

type cartItemResponse struct {
	Message  string           `json:"message"`
	CartItem *models.CartItem `json:"cartItem,omitempty"`
}

var (
	errCartNotFound     = apperror.New(apperror.NotFound, "Cart not found")
	errItemNotInCart    = apperror.New(apperror.NotFound, "Item not found in cart")
	errNotEnoughInStock = apperror.New(apperror.BadRequest, "Insufficient stock")
)

// GetCart returns the user's cart with its items and total, creating an
// empty cart on first access.
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cart, err := cc.Carts.GetOrCreateCart(ctx, claims.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	items, err := cc.Carts.GetCartItems(ctx, cart.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, cartResponse{
		Cart:  cart,
		Items: items,
		Total: models.CartTotal(items),
	})
}

// checkStock is advisory; PlaceOrder re-checks stock atomically.
func (cc *CartController) checkStock(ctx context.Context, productID int64, quantity int) error {
	product, err := cc.Products.GetProduct(ctx, productID)
	if err != nil {
		return notFoundAs(err, "Product not found")
	}
	if product.Stock < quantity {
		return errNotEnoughInStock
	}
	return nil
}

// AddToCart adds a product to the user's cart, merging with an existing line
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req addToCartRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	if err := cc.checkStock(ctx, req.ProductID, quantity); err != nil {
		respondError(w, r, err)
		return
	}

	cart, err := cc.Carts.GetOrCreateCart(ctx, claims.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	item, err := cc.Carts.AddCartItem(ctx, cart.ID, req.ProductID, quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, cartItemResponse{
		Message:  "Item added to cart",
		CartItem: item,
	})
}

// UpdateCartItem sets the quantity of a cart line; zero removes it
func (cc *CartController) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req updateCartRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cart, err := cc.Carts.GetCart(ctx, claims.ID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, r, errCartNotFound)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	if *req.Quantity == 0 {
		if err := cc.Carts.RemoveCartItem(ctx, cart.ID, req.ProductID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				err = errItemNotInCart
			}
			respondError(w, r, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, cartItemResponse{Message: "Item removed from cart"})
		return
	}

	if err := cc.checkStock(ctx, req.ProductID, *req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}

	item, err := cc.Carts.UpdateCartItem(ctx, cart.ID, req.ProductID, *req.Quantity)
	if err != nil {
		respondError(w, r, notFoundAs(err, "Cart item not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, cartItemResponse{
		Message:  "Cart updated",
		CartItem: item,
	})
}

// RemoveFromCart deletes a product's line from the user's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cart, err := cc.Carts.GetCart(ctx, claims.ID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, r, errCartNotFound)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := cc.Carts.RemoveCartItem(ctx, cart.ID, productID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = errItemNotInCart
		}
		respondError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: "Item removed from cart"})
}

// ClearCart empties the user's cart
func (cc *CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	cart, err := cc.Carts.GetCart(ctx, claims.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// nothing to clear
		utils.WriteJSON(w, http.StatusOK, messageResponse{Message: "Cart cleared"})
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := cc.Carts.ClearCart(ctx, cart.ID); err != nil {
		respondError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: "Cart cleared"})
}

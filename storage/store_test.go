package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront/models"
)

// runStoreContract exercises behaviour every Store backend must share.
// It expects an empty store.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	ann := &models.User{Username: "ann", Email: "Ann@Example.com", Name: "Ann", Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, ann))
	require.NotZero(t, ann.ID)

	t.Run("duplicate username", func(t *testing.T) {
		err := s.CreateUser(ctx, &models.User{Username: "ann", Email: "other@example.com", Name: "A", Password: "x"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("duplicate email ignores case", func(t *testing.T) {
		err := s.CreateUser(ctx, &models.User{Username: "ann2", Email: "ann@example.com", Name: "A", Password: "x"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("user lookups", func(t *testing.T) {
		byEmail, err := s.GetUserByEmail(ctx, "ANN@example.com")
		require.NoError(t, err)
		assert.Equal(t, ann.ID, byEmail.ID)

		_, err = s.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update profile", func(t *testing.T) {
		phone := "555-0100"
		addresses := []string{"1 Main St"}
		updated, err := s.UpdateUser(ctx, ann.ID, models.UserUpdate{Phone: &phone, Addresses: &addresses})
		require.NoError(t, err)
		assert.Equal(t, "Ann", updated.Name)
		assert.Equal(t, phone, updated.Phone)
		assert.Equal(t, addresses, updated.Addresses)
	})

	film := &models.Product{Title: "Film", Description: "d", Price: models.MustMoney("12.50"), ImageURL: "u", Stock: 5, Category: "polaroid"}
	frame := &models.Product{Title: "Frame", Description: "d", Price: models.MustMoney("4.99"), ImageURL: "u", Stock: 3, Category: "frames", Featured: true}
	require.NoError(t, s.CreateProduct(ctx, film))
	require.NoError(t, s.CreateProduct(ctx, frame))

	t.Run("product listings", func(t *testing.T) {
		all, err := s.GetProducts(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, film.ID, all[0].ID)

		featured, err := s.GetFeaturedProducts(ctx)
		require.NoError(t, err)
		require.Len(t, featured, 1)
		assert.Equal(t, frame.ID, featured[0].ID)

		frames, err := s.GetProductsByCategory(ctx, "frames")
		require.NoError(t, err)
		require.Len(t, frames, 1)
	})

	t.Run("negative stock rejected", func(t *testing.T) {
		stock := -1
		_, err := s.UpdateProduct(ctx, film.ID, models.ProductUpdate{Stock: &stock})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	cart, err := s.GetOrCreateCart(ctx, ann.ID)
	require.NoError(t, err)

	t.Run("one cart per user", func(t *testing.T) {
		again, err := s.GetOrCreateCart(ctx, ann.ID)
		require.NoError(t, err)
		assert.Equal(t, cart.ID, again.ID)

		_, err = s.CreateCart(ctx, ann.ID)
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("adding the same product twice merges the line", func(t *testing.T) {
		_, err := s.AddCartItem(ctx, cart.ID, film.ID, 3)
		require.NoError(t, err)
		item, err := s.AddCartItem(ctx, cart.ID, film.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 6, item.Quantity)

		lines, err := s.GetCartItems(ctx, cart.ID)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 6, lines[0].Quantity)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		_, err := s.AddCartItem(ctx, cart.ID, film.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = s.UpdateCartItem(ctx, cart.ID, film.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("update and remove lines", func(t *testing.T) {
		item, err := s.UpdateCartItem(ctx, cart.ID, film.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, item.Quantity)

		_, err = s.AddCartItem(ctx, cart.ID, frame.ID, 1)
		require.NoError(t, err)
		require.NoError(t, s.RemoveCartItem(ctx, cart.ID, frame.ID))
		assert.ErrorIs(t, s.RemoveCartItem(ctx, cart.ID, frame.ID), ErrNotFound)

		_, err = s.UpdateCartItem(ctx, cart.ID, frame.ID, 4)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	var order *models.Order
	t.Run("checkout", func(t *testing.T) {
		_, err := s.AddCartItem(ctx, cart.ID, frame.ID, 1)
		require.NoError(t, err)

		order, err = s.PlaceOrder(ctx, ann.ID, "1 Main St")
		require.NoError(t, err)
		assert.Equal(t, "29.99", order.Total.String())
		assert.Equal(t, models.OrderStatusPending, order.Status)
		assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

		lines, err := s.GetCartItems(ctx, cart.ID)
		require.NoError(t, err)
		assert.Empty(t, lines)

		p, err := s.GetProduct(ctx, film.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		_, err = s.PlaceOrder(ctx, ann.ID, "1 Main St")
		assert.ErrorIs(t, err, ErrEmptyCart)
	})
	require.NotNil(t, order)

	t.Run("order items keep the purchase price", func(t *testing.T) {
		price := models.MustMoney("99.00")
		_, err := s.UpdateProduct(ctx, film.ID, models.ProductUpdate{Price: &price})
		require.NoError(t, err)

		items, err := s.GetOrderItems(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "12.50", items[0].Price.String())
		assert.Equal(t, "99.00", items[0].Product.Price.String())

		orders, err := s.GetUserOrders(ctx, ann.ID)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "29.99", orders[0].Total.String())
	})

	t.Run("checkout beyond stock fails", func(t *testing.T) {
		_, err := s.AddCartItem(ctx, cart.ID, frame.ID, 50)
		require.NoError(t, err)
		_, err = s.PlaceOrder(ctx, ann.ID, "1 Main St")
		assert.ErrorIs(t, err, ErrInsufficientStock)
		require.NoError(t, s.ClearCart(ctx, cart.ID))
	})

	t.Run("status transitions", func(t *testing.T) {
		_, err := s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusShipped)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		updated, err := s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaid)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPaid, updated.Status)

		_, err = s.UpdateOrderStatus(ctx, order.ID, "lost")
		assert.ErrorIs(t, err, ErrInvalidInput)

		updated, err = s.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

		_, err = s.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusFailed)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = s.UpdateOrderStatus(ctx, 9999, models.OrderStatusPaid)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deleted products drop out of joins", func(t *testing.T) {
		require.NoError(t, s.DeleteProduct(ctx, frame.ID))
		assert.ErrorIs(t, s.DeleteProduct(ctx, frame.ID), ErrNotFound)

		items, err := s.GetOrderItems(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, film.ID, items[0].ProductID)
	})
}

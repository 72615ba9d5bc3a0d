package controllers

import (
	"context"
	"net/http"

	"go-storefront/apperror"
	"go-storefront/metrics"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// OrderController handles order-related requests
type OrderController struct {
	Orders       storage.OrderStore
	Users        storage.UserStore
	EmailService *utils.EmailService
}

// NewOrderController creates a new OrderController with EmailService
func NewOrderController(orders storage.OrderStore, users storage.UserStore, emailService *utils.EmailService) *OrderController {
	return &OrderController{
		Orders:       orders,
		Users:        users,
		EmailService: emailService,
	}
}

type createOrderRequest struct {
	ShippingAddress string `json:"shippingAddress" validate:"required"`
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

type paymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus" validate:"required"`
}

type orderResponse struct {
	Message string        `json:"message"`
	Order   *models.Order `json:"order"`
}

// CreateOrder checks out the user's cart
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req createOrderRequest
	if err := decodeRequest(w, r, &req); err != nil {
		if appErr := apperror.From(err); appErr.Kind == apperror.BadRequest && appErr.Details != nil {
			err = apperror.New(apperror.BadRequest, "Shipping address is required")
		}
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	order, err := oc.Orders.PlaceOrder(ctx, claims.ID, req.ShippingAddress)
	if err != nil {
		respondError(w, r, err)
		return
	}
	metrics.RecordOrder(order.Total.InexactFloat64())

	middleware.LoggerFromContext(r.Context()).
		WithField("order_id", order.ID).
		WithField("total", order.Total.String()).
		Info("order placed")

	// Send order confirmation email
	confirmed, to := *order, claims.Email
	oc.EmailService.Go(func() error {
		return oc.EmailService.SendOrderConfirmationEmail(to, confirmed)
	})

	utils.WriteJSON(w, http.StatusCreated, orderResponse{
		Message: "Order created successfully",
		Order:   order,
	})
}

func (oc *OrderController) withItems(ctx context.Context, order models.Order) (models.OrderWithItems, error) {
	items, err := oc.Orders.GetOrderItems(ctx, order.ID)
	if err != nil {
		return models.OrderWithItems{}, err
	}
	if items == nil {
		items = []models.OrderLine{}
	}
	return models.OrderWithItems{Order: order, Items: items}, nil
}

// GetOrderHistory lists the user's orders, newest first, with their items
func (oc *OrderController) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	orders, err := oc.Orders.GetUserOrders(ctx, claims.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	history := make([]models.OrderWithItems, 0, len(orders))
	for _, order := range orders {
		full, err := oc.withItems(ctx, order)
		if err != nil {
			respondError(w, r, err)
			return
		}
		history = append(history, full)
	}
	utils.WriteJSON(w, http.StatusOK, history)
}

// GetOrder returns one order. Only its owner or an admin may read it.
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	order, err := oc.Orders.GetOrder(ctx, id)
	if err != nil {
		respondError(w, r, notFoundAs(err, "Order not found"))
		return
	}
	if order.UserID != claims.ID && !claims.IsAdmin {
		respondError(w, r, apperror.New(apperror.Forbidden, "Access denied"))
		return
	}

	full, err := oc.withItems(ctx, *order)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, full)
}

// UpdateOrderStatus moves an order through its lifecycle (Admin only)
func (oc *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req orderStatusRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	order, err := oc.Orders.UpdateOrderStatus(ctx, id, req.Status)
	if err != nil {
		respondError(w, r, notFoundAs(err, "Order not found"))
		return
	}
	oc.notifyStatus(r.Context(), *order)

	utils.WriteJSON(w, http.StatusOK, orderResponse{
		Message: "Order status updated",
		Order:   order,
	})
}

// UpdatePaymentStatus records the payment outcome of an order (Admin only)
func (oc *OrderController) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req paymentStatusRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	order, err := oc.Orders.UpdatePaymentStatus(ctx, id, req.PaymentStatus)
	if err != nil {
		respondError(w, r, notFoundAs(err, "Order not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, orderResponse{
		Message: "Payment status updated",
		Order:   order,
	})
}

// notifyStatus emails the order's owner in the background. The request
// context is not used for the lookup since it ends with the response.
func (oc *OrderController) notifyStatus(ctx context.Context, order models.Order) {
	log := middleware.LoggerFromContext(ctx).WithField("order_id", order.ID)
	oc.EmailService.Go(func() error {
		lookupCtx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()

		user, err := oc.Users.GetUser(lookupCtx, order.UserID)
		if err != nil {
			log.WithError(err).Warn("order owner lookup failed")
			return nil
		}
		return oc.EmailService.SendOrderStatusEmail(user.Email, order)
	})
}

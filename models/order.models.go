package models

import "time"

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order in status s may move to next.
// Delivered and cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order represents a placed order
type Order struct {
	ID              int64         `bson:"_id" db:"id" json:"id"`
	UserID          int64         `bson:"user_id" db:"user_id" json:"userId"`
	Total           Money         `bson:"total" db:"total" json:"total"`
	Status          OrderStatus   `bson:"status" db:"status" json:"status"`
	ShippingAddress string        `bson:"shipping_address" db:"shipping_address" json:"shippingAddress"`
	PaymentStatus   PaymentStatus `bson:"payment_status" db:"payment_status" json:"paymentStatus"`
	CreatedAt       time.Time     `bson:"created_at" db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `bson:"updated_at" db:"updated_at" json:"updatedAt"`
}

// OrderItem records a purchased product with its price at purchase time
type OrderItem struct {
	ID        int64     `bson:"_id" db:"id" json:"id"`
	OrderID   int64     `bson:"order_id" db:"order_id" json:"orderId"`
	ProductID int64     `bson:"product_id" db:"product_id" json:"productId"`
	Quantity  int       `bson:"quantity" db:"quantity" json:"quantity"`
	Price     Money     `bson:"price" db:"price" json:"price"`
	CreatedAt time.Time `bson:"created_at" db:"created_at" json:"createdAt"`
}

// OrderLine is an order item joined with its product
type OrderLine struct {
	OrderItem
	Product Product `json:"product"`
}

// OrderWithItems is the order view returned by the history and detail endpoints
type OrderWithItems struct {
	Order
	Items []OrderLine `json:"items"`
}

package models

import "time"

// Cart represents a user's shopping cart. Each user has at most one.
type Cart struct {
	ID        int64     `bson:"_id" db:"id" json:"id"`
	UserID    int64     `bson:"user_id" db:"user_id" json:"userId"`
	CreatedAt time.Time `bson:"created_at" db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" db:"updated_at" json:"updatedAt"`
}

// CartItem is one product line in a cart; (CartID, ProductID) is unique.
type CartItem struct {
	ID        int64     `bson:"_id" db:"id" json:"id"`
	CartID    int64     `bson:"cart_id" db:"cart_id" json:"cartId"`
	ProductID int64     `bson:"product_id" db:"product_id" json:"productId"`
	Quantity  int       `bson:"quantity" db:"quantity" json:"quantity"`
	CreatedAt time.Time `bson:"created_at" db:"created_at" json:"createdAt"`
}

// CartLine is a cart item joined with its product
type CartLine struct {
	CartItem
	Product Product `json:"product"`
}

// Subtotal is the product's current price times the quantity
func (l CartLine) Subtotal() Money {
	return l.Product.Price.Times(l.Quantity)
}

// CartTotal sums the subtotals of the given lines
func CartTotal(lines []CartLine) Money {
	var total Money
	for _, l := range lines {
		total = total.Plus(l.Subtotal())
	}
	return total
}

package models

import "time"

// DefaultCategory is assigned to products created without a category
const DefaultCategory = "polaroid"

// Product represents an item in the catalog
type Product struct {
	ID          int64     `bson:"_id" db:"id" json:"id"`
	Title       string    `bson:"title" db:"title" json:"title"`
	Description string    `bson:"description" db:"description" json:"description"`
	Price       Money     `bson:"price" db:"price" json:"price"`
	ImageURL    string    `bson:"image_url" db:"image_url" json:"imageUrl"`
	Tags        []string  `bson:"tags" db:"-" json:"tags"`
	Stock       int       `bson:"stock" db:"stock" json:"stock"`
	Category    string    `bson:"category" db:"category" json:"category"`
	Featured    bool      `bson:"featured" db:"featured" json:"featured"`
	CreatedAt   time.Time `bson:"created_at" db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" db:"updated_at" json:"updatedAt"`
}

// ProductUpdate is a partial product; nil fields are left untouched.
type ProductUpdate struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Price       *Money    `json:"price"`
	ImageURL    *string   `json:"imageUrl"`
	Tags        *[]string `json:"tags"`
	Stock       *int      `json:"stock" validate:"omitempty,min=0"`
	Category    *string   `json:"category"`
	Featured    *bool     `json:"featured"`
}

// Apply copies the non-nil fields of the update onto p.
func (up ProductUpdate) Apply(p *Product) {
	if up.Title != nil {
		p.Title = *up.Title
	}
	if up.Description != nil {
		p.Description = *up.Description
	}
	if up.Price != nil {
		p.Price = *up.Price
	}
	if up.ImageURL != nil {
		p.ImageURL = *up.ImageURL
	}
	if up.Tags != nil {
		p.Tags = append([]string(nil), (*up.Tags)...)
	}
	if up.Stock != nil {
		p.Stock = *up.Stock
	}
	if up.Category != nil {
		p.Category = *up.Category
	}
	if up.Featured != nil {
		p.Featured = *up.Featured
	}
}

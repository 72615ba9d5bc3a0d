package models

import "time"

// User represents a storefront account
type User struct {
	ID        int64     `bson:"_id" db:"id" json:"id"`
	Username  string    `bson:"username" db:"username" json:"username"`
	Email     string    `bson:"email" db:"email" json:"email"`
	Name      string    `bson:"name" db:"name" json:"name"`
	Password  string    `bson:"password" db:"password" json:"-"`
	Phone     string    `bson:"phone,omitempty" db:"phone" json:"phone,omitempty"`
	Addresses []string  `bson:"addresses" db:"-" json:"addresses"`
	IsAdmin   bool      `bson:"is_admin" db:"is_admin" json:"isAdmin"`
	CreatedAt time.Time `bson:"created_at" db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" db:"updated_at" json:"updatedAt"`
}

// UserUpdate carries the profile fields a user may change. Nil fields are left untouched.
type UserUpdate struct {
	Name      *string   `json:"name"`
	Phone     *string   `json:"phone"`
	Addresses *[]string `json:"addresses"`
}

// Apply copies the non-nil fields of the update onto u.
func (up UserUpdate) Apply(u *User) {
	if up.Name != nil {
		u.Name = *up.Name
	}
	if up.Phone != nil {
		u.Phone = *up.Phone
	}
	if up.Addresses != nil {
		u.Addresses = append([]string(nil), (*up.Addresses)...)
	}
}

package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Money is a fixed-point amount rendered with two decimals, e.g. "24.99".
type Money struct {
	decimal.Decimal
}

// ParseMoney parses a decimal string such as "19.99".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d}, nil
}

// MustMoney is ParseMoney for constants; it panics on malformed input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Times returns m multiplied by a quantity.
func (m Money) Times(quantity int) Money {
	return Money{m.Mul(decimal.NewFromInt(int64(quantity)))}
}

// Plus returns m + other.
func (m Money) Plus(other Money) Money {
	return Money{m.Add(other.Decimal)}
}

func (m Money) String() string {
	return m.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both quoted ("24.99") and bare (24.99) amounts.
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

// MarshalBSONValue stores money as its fixed two-decimal string.
func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.String())
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var s string
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

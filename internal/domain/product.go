package domain

import (
	"errors"
	"time"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// Product is a row of the products table.
// Price keeps the fixed two-decimal scale of the column, e.g. "9.99".
type Product struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Price       string    `json:"price" db:"price"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProductInput carries the mutable fields of a product for create and update.
// Price is decimal text ("9.99") handed to the DECIMAL column unchanged.
type ProductInput struct {
	Name        string
	Price       string
	Description string
}

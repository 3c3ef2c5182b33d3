package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto.
type CreateProductRequest struct {
	Name      string          `json:"name" validate:"required,min=1,max=200"`
	Category  string          `json:"category" validate:"required,min=1,max=100"`
	PriceBuy  decimal.Decimal `json:"price_buy"`
	PriceSell decimal.Decimal `json:"price_sell"`
	Stock     int             `json:"stock"`
}

// UpdateProductRequest entrada para actualizar un producto. El stock se puede
// corregir por esta vía administrativa; la venta lo muta solo vía transacción.
type UpdateProductRequest struct {
	Name      *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Category  *string          `json:"category"`
	PriceBuy  *decimal.Decimal `json:"price_buy"`
	PriceSell *decimal.Decimal `json:"price_sell"`
	Stock     *int             `json:"stock"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	PriceBuy  decimal.Decimal `json:"price_buy"`
	PriceSell decimal.Decimal `json:"price_sell"`
	Stock     int             `json:"stock"`
	LowStock  bool            `json:"low_stock"`
	CreatedAt time.Time       `json:"created_at"`
}

// ProductListResponse lista de productos ordenada por nombre.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

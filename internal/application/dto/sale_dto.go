package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordSaleRequest entrada para registrar una venta.
type RecordSaleRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// SaleResponse salida de una venta. ProductName y los montos son snapshot
// del producto al momento de la transacción.
type SaleResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Profit      decimal.Decimal `json:"profit"`
	Date        time.Time       `json:"date"`
}

// SaleListResponse listado de ventas, más reciente primero.
type SaleListResponse struct {
	Items []SaleResponse `json:"items"`
	Limit int            `json:"limit"`
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del inventario.
// Stock es el único campo que muta el motor de ventas; los demás se editan
// por la vía administrativa. Los tags JSON son los nombres de campo del
// documento en el store (colección "products").
type Product struct {
	ID        string          `json:"-"` // asignado por el store, no viaja en el documento
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	PriceBuy  decimal.Decimal `json:"priceBuy"`  // costo de compra
	PriceSell decimal.Decimal `json:"priceSell"` // precio de venta
	Stock     int             `json:"stock"`     // invariante: stock >= 0
	CreatedAt time.Time       `json:"createdAt"` // se fija una vez, nunca se muta
}

// LowStockThreshold unidades por debajo de las cuales un producto se considera
// en stock bajo (alertas del dashboard).
const LowStockThreshold = 5

// IsLowStock indica si el producto está por debajo del umbral de alerta.
func (p *Product) IsLowStock() bool {
	return p.Stock < LowStockThreshold
}

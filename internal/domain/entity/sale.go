package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale representa una venta registrada. Las ventas son inmutables: se crean
// exclusivamente dentro de la transacción del motor de ventas y nunca se
// editan ni se eliminan. ProductName y los montos son snapshot del producto
// al momento de la venta (una renombrada posterior no altera el histórico).
type Sale struct {
	ID          string          `json:"-"` // asignado por el store
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"` // priceSell al vender × quantity
	Profit      decimal.Decimal `json:"profit"`      // (priceSell - priceBuy) al vender × quantity
	Date        time.Time       `json:"date"`
}

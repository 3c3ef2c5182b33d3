// Package pdf implementa la generación del comprobante de venta en PDF.
//
// Layout de la página A5:
//
//	┌───────────────────────────────────────────────┐
//	│  HEADER: Nombre tienda  │  N° Venta + Fecha   │
//	│  ───────────────────────────────────────────  │
//	│  DETALLE: Producto | Cant | P.Unit | Total    │
//	│  ───────────────────────────────────────────  │
//	│  TOTAL A PAGAR                                │
//	└───────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/storemaster/storemaster-api/internal/domain/entity"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ReceiptGenerator genera el comprobante de una venta usando Maroto v2.
type ReceiptGenerator struct {
	storeName string
}

// NewReceiptGenerator construye el generador. storeName aparece en el header.
func NewReceiptGenerator(storeName string) *ReceiptGenerator {
	return &ReceiptGenerator{storeName: storeName}
}

// GenerateReceipt genera el PDF del comprobante y devuelve sus bytes.
func (g *ReceiptGenerator) GenerateReceipt(_ context.Context, sale *entity.Sale) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A5).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Comprobante de venta", true).
		WithAuthor(g.storeName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(sale))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(tableHeaderRow())
	m.AddRows(detailRow(sale))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(totalRow(sale))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar comprobante: %w", err)
	}
	return doc.GetBytes(), nil
}

// headerRow: nombre de la tienda (izq) y N° de venta + fecha (der).
func (g *ReceiptGenerator) headerRow(sale *entity.Sale) core.Row {
	fecha := sale.Date.Format("02/01/2006 15:04")

	return row.New(16).Add(
		col.New(7).Add(
			text.New(g.storeName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Comprobante de venta", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("VENTA "+sale.ID, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 1,
			}),
			text.New("Fecha: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 8, Color: colorGray,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	header := props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary}
	headerRight := props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Align: align.Right}

	return row.New(7).Add(
		col.New(6).Add(text.New("Producto", header)),
		col.New(2).Add(text.New("Cant.", headerRight)),
		col.New(2).Add(text.New("P. Unit", headerRight)),
		col.New(2).Add(text.New("Total", headerRight)),
	)
}

func detailRow(sale *entity.Sale) core.Row {
	unitPrice := decimal.Zero
	if sale.Quantity > 0 {
		unitPrice = sale.TotalAmount.Div(decimal.NewFromInt(int64(sale.Quantity)))
	}
	cell := props.Text{Size: 9}
	cellRight := props.Text{Size: 9, Align: align.Right}

	return row.New(7).Add(
		col.New(6).Add(text.New(sale.ProductName, cell)),
		col.New(2).Add(text.New(fmt.Sprintf("%d", sale.Quantity), cellRight)),
		col.New(2).Add(text.New("$"+unitPrice.StringFixed(2), cellRight)),
		col.New(2).Add(text.New("$"+sale.TotalAmount.StringFixed(2), cellRight)),
	)
}

func totalRow(sale *entity.Sale) core.Row {
	return row.New(10).Add(
		col.New(8).Add(text.New("TOTAL A PAGAR", props.Text{
			Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 2, Color: colorPrimary,
		})),
		col.New(4).Add(text.New("$"+sale.TotalAmount.StringFixed(2), props.Text{
			Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 2,
		})),
	)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storemaster/storemaster-api/internal/application/dto"
	"github.com/storemaster/storemaster-api/internal/domain"
	"github.com/storemaster/storemaster-api/internal/domain/entity"
	"github.com/storemaster/storemaster-api/internal/domain/store"
)

// DefaultSaleListLimit límite por defecto del listado de ventas.
const DefaultSaleListLimit = 50

// SaleUseCase registra ventas y consulta el historial. El registro corre
// dentro de una transacción del store: el producto se relee dentro de la
// transacción y el descuento de stock y la creación de la venta se confirman
// de forma atómica, así dos ventas concurrentes del mismo producto nunca
// sobrevenden.
type SaleUseCase struct {
	store store.Store
}

func NewSaleUseCase(st store.Store) *SaleUseCase {
	return &SaleUseCase{store: st}
}

// RecordSale registra la venta de quantity unidades de un producto.
// Errores de negocio: ErrInvalidQuantity, ErrProductNotFound,
// InsufficientStockError (con el stock disponible) y, si los reintentos
// de la transacción se agotan, ErrTransactionConflict.
func (uc *SaleUseCase) RecordSale(ctx context.Context, productID string, quantity int) (*dto.SaleResponse, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	var (
		sale   entity.Sale
		saleID string
	)
	err := uc.store.RunTransaction(ctx, func(tx store.Tx) error {
		doc, err := tx.Get(store.CollectionProducts, productID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return err
		}

		var product entity.Product
		if err := doc.DataTo(&product); err != nil {
			return fmt.Errorf("decodificar producto %s: %w", productID, err)
		}

		newStock := product.Stock - quantity
		if newStock < 0 {
			return &domain.InsufficientStockError{Available: product.Stock}
		}

		product.Stock = newStock
		if err := tx.Update(store.CollectionProducts, productID, product); err != nil {
			return err
		}

		// Snapshot del producto leído EN la transacción, nunca del caller:
		// si el precio cambió entre el request y el commit, manda el precio
		// que la transacción vio.
		qty := decimal.NewFromInt(int64(quantity))
		sale = entity.Sale{
			ProductID:   productID,
			ProductName: product.Name,
			Quantity:    quantity,
			TotalAmount: product.PriceSell.Mul(qty),
			Profit:      product.PriceSell.Sub(product.PriceBuy).Mul(qty),
			Date:        time.Now(),
		}
		saleID, err = tx.Create(store.CollectionSales, sale)
		return err
	})
	if err != nil {
		return nil, err
	}

	sale.ID = saleID
	resp := toSaleResponse(&sale)
	return &resp, nil
}

// List devuelve las ventas más recientes primero. limit <= 0 usa el default.
func (uc *SaleUseCase) List(ctx context.Context, limit int) (*dto.SaleListResponse, error) {
	if limit <= 0 {
		limit = DefaultSaleListLimit
	}

	docs, err := uc.store.Query(ctx, store.CollectionSales, store.Query{
		OrderBy:   "date",
		OrderTime: true,
		Desc:      true,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listar ventas: %w", err)
	}

	items := make([]dto.SaleResponse, 0, len(docs))
	for i := range docs {
		var s entity.Sale
		if err := docs[i].DataTo(&s); err != nil {
			return nil, fmt.Errorf("decodificar venta %s: %w", docs[i].ID, err)
		}
		s.ID = docs[i].ID
		items = append(items, toSaleResponse(&s))
	}
	return &dto.SaleListResponse{Items: items, Limit: limit}, nil
}

// GetByID devuelve una venta por su ID, o (nil, nil) si no existe.
func (uc *SaleUseCase) GetByID(ctx context.Context, id string) (*dto.SaleResponse, error) {
	doc, err := uc.store.Get(ctx, store.CollectionSales, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("obtener venta %s: %w", id, err)
	}

	var s entity.Sale
	if err := doc.DataTo(&s); err != nil {
		return nil, fmt.Errorf("decodificar venta %s: %w", id, err)
	}
	s.ID = doc.ID
	resp := toSaleResponse(&s)
	return &resp, nil
}

func toSaleResponse(s *entity.Sale) dto.SaleResponse {
	return dto.SaleResponse{
		ID:          s.ID,
		ProductID:   s.ProductID,
		ProductName: s.ProductName,
		Quantity:    s.Quantity,
		TotalAmount: s.TotalAmount,
		Profit:      s.Profit,
		Date:        s.Date,
	}
}

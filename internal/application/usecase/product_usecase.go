package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storemaster/storemaster-api/internal/application/dto"
	"github.com/storemaster/storemaster-api/internal/domain"
	"github.com/storemaster/storemaster-api/internal/domain/entity"
	"github.com/storemaster/storemaster-api/internal/domain/store"
	"github.com/storemaster/storemaster-api/internal/infrastructure/cache"
)

// ProductUseCase CRUD del catálogo de productos. El stock se puede corregir
// por Update (vía administrativa); las ventas lo descuentan solo por la
// transacción de SaleUseCase.
type ProductUseCase struct {
	store store.Store
	cache cache.Client // puede ser nil
	ttl   time.Duration
}

func NewProductUseCase(st store.Store, c cache.Client, ttl time.Duration) *ProductUseCase {
	return &ProductUseCase{store: st, cache: c, ttl: ttl}
}

// Create valida y crea un producto.
func (uc *ProductUseCase) Create(ctx context.Context, req *dto.CreateProductRequest) (*dto.ProductResponse, error) {
	product := entity.Product{
		Name:      strings.TrimSpace(req.Name),
		Category:  strings.TrimSpace(req.Category),
		PriceBuy:  req.PriceBuy,
		PriceSell: req.PriceSell,
		Stock:     req.Stock,
		CreatedAt: time.Now(),
	}
	if err := validateProduct(&product); err != nil {
		return nil, err
	}

	id, err := uc.store.Create(ctx, store.CollectionProducts, product)
	if err != nil {
		return nil, fmt.Errorf("crear producto: %w", err)
	}
	product.ID = id

	resp := toProductResponse(&product)
	return &resp, nil
}

// GetByID devuelve un producto, o (nil, nil) si no existe.
func (uc *ProductUseCase) GetByID(ctx context.Context, id string) (*dto.ProductResponse, error) {
	doc, err := uc.store.Get(ctx, store.CollectionProducts, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("obtener producto %s: %w", id, err)
	}

	var product entity.Product
	if err := doc.DataTo(&product); err != nil {
		return nil, fmt.Errorf("decodificar producto %s: %w", id, err)
	}
	product.ID = doc.ID
	resp := toProductResponse(&product)
	return &resp, nil
}

// Update aplica un cambio parcial sobre el producto. Devuelve (nil, nil)
// si el producto no existe. CreatedAt nunca se modifica.
func (uc *ProductUseCase) Update(ctx context.Context, id string, req *dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	doc, err := uc.store.Get(ctx, store.CollectionProducts, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("obtener producto %s: %w", id, err)
	}

	var product entity.Product
	if err := doc.DataTo(&product); err != nil {
		return nil, fmt.Errorf("decodificar producto %s: %w", id, err)
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceBuy != nil {
		product.PriceBuy = *req.PriceBuy
	}
	if req.PriceSell != nil {
		product.PriceSell = *req.PriceSell
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if err := validateProduct(&product); err != nil {
		return nil, err
	}

	if err := uc.store.Update(ctx, store.CollectionProducts, id, product); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("actualizar producto %s: %w", id, err)
	}
	product.ID = id
	resp := toProductResponse(&product)
	return &resp, nil
}

// Delete elimina un producto. El historial de ventas conserva el snapshot
// del nombre y los montos, así que no queda huérfano.
func (uc *ProductUseCase) Delete(ctx context.Context, id string) error {
	err := uc.store.Delete(ctx, store.CollectionProducts, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("eliminar producto %s: %w", id, err)
	}
	return nil
}

// List devuelve el catálogo ordenado por nombre. search filtra por nombre o
// categoría sin distinguir mayúsculas. La lista completa se cachea; el filtro
// y la paginación se aplican en memoria sobre ella.
func (uc *ProductUseCase) List(ctx context.Context, search string, page dto.PageRequest) (*dto.ProductListResponse, error) {
	all, err := uc.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	if s := strings.ToLower(strings.TrimSpace(search)); s != "" {
		filtered := make([]dto.ProductResponse, 0, len(all))
		for _, p := range all {
			if strings.Contains(strings.ToLower(p.Name), s) || strings.Contains(strings.ToLower(p.Category), s) {
				filtered = append(filtered, p)
			}
		}
		all = filtered
	}

	total := len(all)
	offset := page.Offset
	if offset > total {
		offset = total
	}
	end := total
	if page.Limit > 0 && offset+page.Limit < end {
		end = offset + page.Limit
	}

	return &dto.ProductListResponse{
		Items: all[offset:end],
		Page:  dto.PageResponse{Limit: page.Limit, Offset: offset, Total: total},
	}, nil
}

// loadAll trae el catálogo completo ordenado por nombre, del cache si está.
func (uc *ProductUseCase) loadAll(ctx context.Context) ([]dto.ProductResponse, error) {
	if uc.cache != nil {
		if raw, err := uc.cache.Get(ctx, cache.KeyProductList); err == nil {
			var cached []dto.ProductResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	docs, err := uc.store.Query(ctx, store.CollectionProducts, store.Query{OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("listar productos: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(docs))
	for i := range docs {
		var product entity.Product
		if err := docs[i].DataTo(&product); err != nil {
			return nil, fmt.Errorf("decodificar producto %s: %w", docs[i].ID, err)
		}
		product.ID = docs[i].ID
		items = append(items, toProductResponse(&product))
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			// cache degradado no bloquea la lectura
			_ = uc.cache.Set(ctx, cache.KeyProductList, raw, uc.ttl)
		}
	}
	return items, nil
}

func validateProduct(p *entity.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: nombre requerido", domain.ErrInvalidInput)
	}
	if p.Category == "" {
		return fmt.Errorf("%w: categoría requerida", domain.ErrInvalidInput)
	}
	if p.PriceBuy.LessThan(decimal.Zero) || p.PriceSell.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: los precios no pueden ser negativos", domain.ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: el stock no puede ser negativo", domain.ErrInvalidInput)
	}
	return nil
}

func toProductResponse(p *entity.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		PriceBuy:  p.PriceBuy,
		PriceSell: p.PriceSell,
		Stock:     p.Stock,
		LowStock:  p.IsLowStock(),
		CreatedAt: p.CreatedAt,
	}
}

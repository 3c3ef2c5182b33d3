package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storemaster/storemaster-api/internal/application/usecase"
	"github.com/storemaster/storemaster-api/internal/domain"
	"github.com/storemaster/storemaster-api/internal/domain/entity"
	"github.com/storemaster/storemaster-api/internal/domain/store"
	"github.com/storemaster/storemaster-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

// seedProduct crea un producto directamente en el store y devuelve su id.
func seedProduct(t *testing.T, st store.Store, name string, priceBuy, priceSell float64, stock int) string {
	t.Helper()
	id, err := st.Create(context.Background(), store.CollectionProducts, entity.Product{
		Name:      name,
		Category:  "General",
		PriceBuy:  decimal.NewFromFloat(priceBuy),
		PriceSell: decimal.NewFromFloat(priceSell),
		Stock:     stock,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err, "debe poder sembrarse el producto")
	return id
}

// productStock relee el producto del store y devuelve su stock actual.
func productStock(t *testing.T, st store.Store, id string) int {
	t.Helper()
	doc, err := st.Get(context.Background(), store.CollectionProducts, id)
	require.NoError(t, err)
	var p entity.Product
	require.NoError(t, doc.DataTo(&p))
	return p.Stock
}

// salesCount cuenta las ventas persistidas.
func salesCount(t *testing.T, st store.Store) int {
	t.Helper()
	docs, err := st.Query(context.Background(), store.CollectionSales, store.Query{})
	require.NoError(t, err)
	return len(docs)
}

// ──────────────────────────────────────────────────────────────────────────────
// RecordSale
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordSale_HappyPath(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)

	sale, err := uc.RecordSale(ctx, id, 3)
	require.NoError(t, err)
	require.NotNil(t, sale)

	assert.NotEmpty(t, sale.ID)
	assert.Equal(t, id, sale.ProductID)
	assert.Equal(t, "Widget", sale.ProductName, "el nombre es snapshot del producto")
	assert.Equal(t, 3, sale.Quantity)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(15)), "total = 5 * 3, obtuvo %s", sale.TotalAmount)
	assert.True(t, sale.Profit.Equal(decimal.NewFromInt(9)), "ganancia = (5-2) * 3, obtuvo %s", sale.Profit)
	assert.False(t, sale.Date.IsZero())

	assert.Equal(t, 7, productStock(t, st, id), "el stock debe quedar descontado")
	assert.Equal(t, 1, salesCount(t, st))
}

// El precio que manda es el que la transacción relee, no el que el caller
// haya visto antes: una edición administrativa previa al registro queda
// reflejada en los montos de la venta.
func TestRecordSale_SnapshotUsesInTxPrice(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)

	// Edición administrativa: sube el precio de venta de 5 a 8
	doc, err := st.Get(ctx, store.CollectionProducts, id)
	require.NoError(t, err)
	var p entity.Product
	require.NoError(t, doc.DataTo(&p))
	p.PriceSell = decimal.NewFromInt(8)
	require.NoError(t, st.Update(ctx, store.CollectionProducts, id, p))

	sale, err := uc.RecordSale(ctx, id, 2)
	require.NoError(t, err)

	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(16)), "total = 8 * 2, obtuvo %s", sale.TotalAmount)
	assert.True(t, sale.Profit.Equal(decimal.NewFromInt(12)), "ganancia = (8-2) * 2, obtuvo %s", sale.Profit)
	assert.Equal(t, 8, productStock(t, st, id))
}

func TestRecordSale_ExactStock(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)

	// Vender exactamente el stock disponible es válido y deja 0
	_, err := uc.RecordSale(ctx, id, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, productStock(t, st, id))

	// La siguiente venta falla con disponible 0
	_, err = uc.RecordSale(ctx, id, 1)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
}

func TestRecordSale_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)

	_, err := uc.RecordSale(ctx, id, 11)
	require.Error(t, err)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 10, stockErr.Available, "debe reportar el stock disponible")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Nada cambió: ni stock ni ventas
	assert.Equal(t, 10, productStock(t, st, id))
	assert.Equal(t, 0, salesCount(t, st))
}

func TestRecordSale_InvalidQuantity(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)

	for _, q := range []int{0, -3} {
		_, err := uc.RecordSale(ctx, id, q)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity, "cantidad %d", q)
	}
	assert.Equal(t, 10, productStock(t, st, id))
	assert.Equal(t, 0, salesCount(t, st))
}

func TestRecordSale_ProductNotFound(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	_, err := uc.RecordSale(ctx, "11111111-1111-1111-1111-111111111111", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, 0, salesCount(t, st))
}

func TestRecordSale_NotIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)

	// Dos requests idénticos son dos ventas distintas
	s1, err := uc.RecordSale(ctx, id, 2)
	require.NoError(t, err)
	s2, err := uc.RecordSale(ctx, id, 2)
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, 6, productStock(t, st, id))
	assert.Equal(t, 2, salesCount(t, st))
}

// Dos ventas concurrentes cuya suma excede el stock: exactamente una gana.
func TestRecordSale_ConcurrentOversell(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.RecordSale(ctx, id, 6)
		}(i)
	}
	wg.Wait()

	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, 1, okCount, "exactamente una venta debe ganar")
	assert.Equal(t, 4, productStock(t, st, id), "nunca puede quedar stock negativo")
	assert.Equal(t, 1, salesCount(t, st))
}

// ──────────────────────────────────────────────────────────────────────────────
// List y GetByID
// ──────────────────────────────────────────────────────────────────────────────

func TestSaleList_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 100)

	for i := 0; i < 3; i++ {
		_, err := uc.RecordSale(ctx, id, i+1)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // fechas distintas para el orden
	}

	out, err := uc.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, usecase.DefaultSaleListLimit, out.Limit)
	require.Len(t, out.Items, 3)
	assert.Equal(t, 3, out.Items[0].Quantity, "la más reciente primero")
	assert.Equal(t, 1, out.Items[2].Quantity)

	out, err = uc.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
}

func TestSaleGetByID(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := usecase.NewSaleUseCase(st)

	id := seedProduct(t, st, "Widget", 2, 5, 10)
	created, err := uc.RecordSale(ctx, id, 2)
	require.NoError(t, err)

	got, err := uc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.TotalAmount.Equal(created.TotalAmount))

	missing, err := uc.GetByID(ctx, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	assert.Nil(t, missing, "venta inexistente devuelve nil sin error")
}

package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storemaster/storemaster-api/internal/application/analytics"
	"github.com/storemaster/storemaster-api/internal/application/usecase"
	"github.com/storemaster/storemaster-api/internal/domain/entity"
	"github.com/storemaster/storemaster-api/internal/domain/store"
	"github.com/storemaster/storemaster-api/internal/infrastructure/memory"
)

func seed(t *testing.T, st store.Store, p entity.Product) string {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	id, err := st.Create(context.Background(), store.CollectionProducts, p)
	require.NoError(t, err)
	return id
}

func TestDashboardSummary_EmptyStore(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	uc := analytics.NewDashboardUseCase(st, nil, 0)

	out, err := uc.GetSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, out.TotalProducts)
	assert.True(t, out.TotalRevenue.IsZero())
	assert.True(t, out.TotalProfit.IsZero())
	assert.Equal(t, 0, out.LowStockCount)
	assert.Empty(t, out.LowStockItems)
	assert.Empty(t, out.RecentSales)
	assert.Empty(t, out.DailySales)
}

func TestDashboardSummary_Aggregates(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	saleUC := usecase.NewSaleUseCase(st)
	uc := analytics.NewDashboardUseCase(st, nil, 0)

	okID := seed(t, st, entity.Product{
		Name: "Widget", Category: "General",
		PriceBuy: decimal.NewFromInt(2), PriceSell: decimal.NewFromInt(5), Stock: 100,
	})
	seed(t, st, entity.Product{
		Name: "Escaso", Category: "General",
		PriceBuy: decimal.NewFromInt(1), PriceSell: decimal.NewFromInt(3), Stock: 2,
	})

	// Venta 1: 3 * 5 = 15, ganancia (5-2)*3 = 9
	_, err := saleUC.RecordSale(ctx, okID, 3)
	require.NoError(t, err)
	// Venta 2: 4 * 5 = 20, ganancia (5-2)*4 = 12
	_, err = saleUC.RecordSale(ctx, okID, 4)
	require.NoError(t, err)

	out, err := uc.GetSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, out.TotalProducts)
	assert.True(t, out.TotalRevenue.Equal(decimal.NewFromInt(35)), "ingresos 15+20, obtuvo %s", out.TotalRevenue)
	assert.True(t, out.TotalProfit.Equal(decimal.NewFromInt(21)), "ganancia 9+12, obtuvo %s", out.TotalProfit)

	require.Equal(t, 1, out.LowStockCount)
	require.Len(t, out.LowStockItems, 1)
	assert.Equal(t, "Escaso", out.LowStockItems[0].Name)
	assert.True(t, out.LowStockItems[0].LowStock)

	require.Len(t, out.RecentSales, 2)
	assert.Equal(t, 4, out.RecentSales[0].Quantity, "la más reciente primero")

	// Ambas ventas caen en el día de hoy
	require.Len(t, out.DailySales, 1)
	assert.Equal(t, time.Now().Format("2006-01-02"), out.DailySales[0].Date)
	assert.True(t, out.DailySales[0].Sales.Equal(decimal.NewFromInt(35)))
	assert.True(t, out.DailySales[0].Profit.Equal(decimal.NewFromInt(21)))
}

func TestDashboardSummary_RecentSalesCapped(t *testing.T) {
	ctx := context.Background()
	st := memory.NewDocumentStore(0)
	saleUC := usecase.NewSaleUseCase(st)
	uc := analytics.NewDashboardUseCase(st, nil, 0)

	id := seed(t, st, entity.Product{
		Name: "Widget", Category: "General",
		PriceBuy: decimal.NewFromInt(2), PriceSell: decimal.NewFromInt(5), Stock: 100,
	})
	for i := 0; i < 8; i++ {
		_, err := saleUC.RecordSale(ctx, id, 1)
		require.NoError(t, err)
	}

	out, err := uc.GetSummary(ctx)
	require.NoError(t, err)
	assert.Len(t, out.RecentSales, 5, "el widget muestra como máximo 5 ventas")
	assert.True(t, out.TotalRevenue.Equal(decimal.NewFromInt(40)), "los totales sí cubren todas las ventas")
}

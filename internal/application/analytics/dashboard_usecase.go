// Package analytics contiene el caso de uso del dashboard de la tienda:
// KPIs de inventario y ventas más la serie diaria de tendencia.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storemaster/storemaster-api/internal/application/dto"
	"github.com/storemaster/storemaster-api/internal/domain/entity"
	"github.com/storemaster/storemaster-api/internal/domain/store"
	"github.com/storemaster/storemaster-api/internal/infrastructure/cache"
)

const (
	dashboardRecentSales = 5 // últimas ventas en el widget
	dashboardTrendDays   = 7 // días con datos en la serie de tendencia
)

// DashboardUseCase genera el resumen del dashboard. El resultado se cachea
// con un TTL corto; el invalidador lo elimina ante cualquier escritura de
// productos o ventas.
type DashboardUseCase struct {
	store store.Store
	cache cache.Client // puede ser nil
	ttl   time.Duration
}

// NewDashboardUseCase construye el caso de uso.
func NewDashboardUseCase(st store.Store, c cache.Client, ttl time.Duration) *DashboardUseCase {
	return &DashboardUseCase{store: st, cache: c, ttl: ttl}
}

// GetSummary construye el DashboardSummaryDTO.
//
// Dos consultas en paralelo:
//  1. productos (ordenados por nombre)  → total y alertas de stock bajo
//  2. ventas (más recientes primero)    → ingresos, ganancia, recientes, serie
func (uc *DashboardUseCase) GetSummary(ctx context.Context) (*dto.DashboardSummaryDTO, error) {
	if uc.cache != nil {
		if raw, err := uc.cache.Get(ctx, cache.KeyDashboardSummary); err == nil {
			var cached dto.DashboardSummaryDTO
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	// ── Goroutines para paralelizar las 2 consultas ───────────────────────────
	type queryResult struct {
		docs []store.Document
		err  error
	}

	productsCh := make(chan queryResult, 1)
	salesCh := make(chan queryResult, 1)

	go func() {
		docs, err := uc.store.Query(ctx, store.CollectionProducts, store.Query{OrderBy: "name"})
		productsCh <- queryResult{docs, err}
	}()
	go func() {
		docs, err := uc.store.Query(ctx, store.CollectionSales, store.Query{OrderBy: "date", OrderTime: true, Desc: true})
		salesCh <- queryResult{docs, err}
	}()

	products := <-productsCh
	sales := <-salesCh

	if products.err != nil {
		return nil, fmt.Errorf("dashboard: productos: %w", products.err)
	}
	if sales.err != nil {
		return nil, fmt.Errorf("dashboard: ventas: %w", sales.err)
	}

	summary := &dto.DashboardSummaryDTO{
		TotalRevenue:  decimal.Zero,
		TotalProfit:   decimal.Zero,
		LowStockItems: []dto.ProductResponse{},
		RecentSales:   []dto.SaleResponse{},
		DailySales:    []dto.DailySalesDTO{},
	}

	// ── Inventario ────────────────────────────────────────────────────────────
	summary.TotalProducts = len(products.docs)
	for i := range products.docs {
		var p entity.Product
		if err := products.docs[i].DataTo(&p); err != nil {
			return nil, fmt.Errorf("dashboard: decodificar producto %s: %w", products.docs[i].ID, err)
		}
		if !p.IsLowStock() {
			continue
		}
		p.ID = products.docs[i].ID
		summary.LowStockItems = append(summary.LowStockItems, dto.ProductResponse{
			ID:        p.ID,
			Name:      p.Name,
			Category:  p.Category,
			PriceBuy:  p.PriceBuy,
			PriceSell: p.PriceSell,
			Stock:     p.Stock,
			LowStock:  true,
			CreatedAt: p.CreatedAt,
		})
	}
	summary.LowStockCount = len(summary.LowStockItems)

	// ── Ventas ────────────────────────────────────────────────────────────────
	type dayBucket struct {
		sales  decimal.Decimal
		profit decimal.Decimal
	}
	buckets := make(map[string]dayBucket)

	for i := range sales.docs {
		var s entity.Sale
		if err := sales.docs[i].DataTo(&s); err != nil {
			return nil, fmt.Errorf("dashboard: decodificar venta %s: %w", sales.docs[i].ID, err)
		}
		s.ID = sales.docs[i].ID

		summary.TotalRevenue = summary.TotalRevenue.Add(s.TotalAmount)
		summary.TotalProfit = summary.TotalProfit.Add(s.Profit)

		if len(summary.RecentSales) < dashboardRecentSales {
			summary.RecentSales = append(summary.RecentSales, dto.SaleResponse{
				ID:          s.ID,
				ProductID:   s.ProductID,
				ProductName: s.ProductName,
				Quantity:    s.Quantity,
				TotalAmount: s.TotalAmount,
				Profit:      s.Profit,
				Date:        s.Date,
			})
		}

		// Bucket por día calendario en hora local del servidor
		day := s.Date.Local().Format("2006-01-02")
		b := buckets[day]
		b.sales = b.sales.Add(s.TotalAmount)
		b.profit = b.profit.Add(s.Profit)
		buckets[day] = b
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)
	if len(days) > dashboardTrendDays {
		days = days[len(days)-dashboardTrendDays:]
	}
	for _, day := range days {
		summary.DailySales = append(summary.DailySales, dto.DailySalesDTO{
			Date:   day,
			Sales:  buckets[day].sales,
			Profit: buckets[day].profit,
		})
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(summary); err == nil {
			_ = uc.cache.Set(ctx, cache.KeyDashboardSummary, raw, uc.ttl)
		}
	}
	return summary, nil
}

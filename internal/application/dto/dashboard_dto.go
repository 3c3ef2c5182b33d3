package dto

import "github.com/shopspring/decimal"

// DashboardSummaryDTO respuesta de GET /api/dashboard/summary.
// KPIs de inventario y ventas más la serie diaria para el gráfico de tendencia.
type DashboardSummaryDTO struct {
	TotalProducts int             `json:"total_products"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"` // suma de total_amount
	TotalProfit   decimal.Decimal `json:"total_profit"`  // suma de profit
	LowStockCount int             `json:"low_stock_count"`

	// Productos bajo el umbral de stock (para el widget de alertas)
	LowStockItems []ProductResponse `json:"low_stock_items"`

	// Últimas 5 ventas
	RecentSales []SaleResponse `json:"recent_sales"`

	// Ingresos y ganancia por día calendario (hora local del servidor),
	// últimos 7 días con datos, ascendente
	DailySales []DailySalesDTO `json:"daily_sales"`
}

// DailySalesDTO bucket diario de la serie de tendencia.
type DailySalesDTO struct {
	Date   string          `json:"date"` // YYYY-MM-DD
	Sales  decimal.Decimal `json:"sales"`
	Profit decimal.Decimal `json:"profit"`
}

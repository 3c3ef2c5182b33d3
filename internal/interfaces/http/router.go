package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/storemaster/storemaster-api/internal/application/analytics"
	"github.com/storemaster/storemaster-api/internal/application/usecase"
	"github.com/storemaster/storemaster-api/internal/infrastructure/pdf"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProductUC   *usecase.ProductUseCase
	SaleUC      *usecase.SaleUseCase
	DashboardUC *analytics.DashboardUseCase
	Receipts    *pdf.ReceiptGenerator
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Products
	products := api.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", productHandler.Update)
	products.Delete("/:id", productHandler.Delete)

	// Sales
	sales := api.Group("/sales")
	saleHandler := NewSaleHandler(deps.SaleUC, deps.Receipts)
	sales.Post("/", saleHandler.Record)
	sales.Get("/", saleHandler.List)
	sales.Get("/:id", saleHandler.GetByID)
	sales.Get("/:id/receipt", saleHandler.Receipt)

	// Dashboard
	dashboard := api.Group("/dashboard")
	dashboardHandler := NewDashboardHandler(deps.DashboardUC)
	dashboard.Get("/summary", dashboardHandler.Summary)
}

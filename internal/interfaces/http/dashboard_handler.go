package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/storemaster/storemaster-api/internal/application/analytics"
)

// DashboardHandler maneja las peticiones HTTP del dashboard.
type DashboardHandler struct {
	uc *analytics.DashboardUseCase
}

// NewDashboardHandler construye el handler.
func NewDashboardHandler(uc *analytics.DashboardUseCase) *DashboardHandler {
	return &DashboardHandler{uc: uc}
}

// Summary godoc
// @Summary      Resumen del dashboard
// @Description  KPIs de inventario y ventas más la serie diaria de tendencia.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  dto.DashboardSummaryDTO
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/dashboard/summary [get]
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	out, err := h.uc.GetSummary(c.UserContext())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(out)
}

package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/storemaster/storemaster-api/internal/application/dto"
	"github.com/storemaster/storemaster-api/internal/application/usecase"
	"github.com/storemaster/storemaster-api/internal/domain"
	"github.com/storemaster/storemaster-api/internal/domain/entity"
	"github.com/storemaster/storemaster-api/internal/infrastructure/pdf"
)

// SaleHandler maneja las peticiones HTTP para Sale.
type SaleHandler struct {
	uc       *usecase.SaleUseCase
	receipts *pdf.ReceiptGenerator
}

// NewSaleHandler construye el handler. receipts puede ser nil; en ese caso
// el endpoint del comprobante responde 501.
func NewSaleHandler(uc *usecase.SaleUseCase, receipts *pdf.ReceiptGenerator) *SaleHandler {
	return &SaleHandler{uc: uc, receipts: receipts}
}

// Record godoc
// @Summary      Registrar venta
// @Description  Descuenta stock y crea la venta en una sola transacción.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecordSaleRequest  true  "Producto y cantidad"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse  "Cantidad inválida"
// @Failure      404   {object}  dto.ErrorResponse  "Producto no existe"
// @Failure      409   {object}  dto.ErrorResponse  "Stock insuficiente o conflicto de transacción"
// @Router       /api/sales [post]
func (h *SaleHandler) Record(c *fiber.Ctx) error {
	var in dto.RecordSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	out, err := h.uc.RecordSale(c.UserContext(), in.ProductID, in.Quantity)
	if err != nil {
		var stockErr *domain.InsufficientStockError
		switch {
		case errors.Is(err, domain.ErrInvalidQuantity):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUANTITY", Message: "la cantidad debe ser mayor a cero"})
		case errors.Is(err, domain.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		case errors.Is(err, domain.ErrProductNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "PRODUCT_NOT_FOUND", Message: "producto no encontrado"})
		case errors.As(err, &stockErr):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code:    "INSUFFICIENT_STOCK",
				Message: fmt.Sprintf("stock insuficiente: disponible %d", stockErr.Available),
			})
		case errors.Is(err, domain.ErrTransactionConflict):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "TX_CONFLICT", Message: "demasiada concurrencia sobre el producto, reintente"})
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar ventas
// @Description  Historial de ventas, más reciente primero.
// @Tags         sales
// @Produce      json
// @Param        limit  query  int  false  "Límite"  default(50)
// @Success      200    {object}  dto.SaleListResponse
// @Router       /api/sales [get]
func (h *SaleHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", usecase.DefaultSaleListLimit)
	if limit <= 0 {
		limit = usecase.DefaultSaleListLimit
	}
	if limit > 500 {
		limit = 500
	}
	out, err := h.uc.List(c.UserContext(), limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener venta por ID
// @Tags         sales
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.SaleResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	out, err := h.uc.GetByID(c.UserContext(), id)
	if err != nil {
		return internalError(c, err)
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "SALE_NOT_FOUND", Message: "venta no encontrada"})
	}
	return c.JSON(out)
}

// Receipt godoc
// @Summary      Comprobante de venta en PDF
// @Tags         sales
// @Produce      application/pdf
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {file}    file
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/receipt [get]
func (h *SaleHandler) Receipt(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	if h.receipts == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_IMPLEMENTED", Message: "generación de comprobantes deshabilitada"})
	}

	out, err := h.uc.GetByID(c.UserContext(), id)
	if err != nil {
		return internalError(c, err)
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "SALE_NOT_FOUND", Message: "venta no encontrada"})
	}

	sale := entity.Sale{
		ID:          out.ID,
		ProductID:   out.ProductID,
		ProductName: out.ProductName,
		Quantity:    out.Quantity,
		TotalAmount: out.TotalAmount,
		Profit:      out.Profit,
		Date:        out.Date,
	}
	pdfBytes, err := h.receipts.GenerateReceipt(c.UserContext(), &sale)
	if err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="venta-%s.pdf"`, id))
	return c.Send(pdfBytes)
}

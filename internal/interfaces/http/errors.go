package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/storemaster/storemaster-api/internal/application/dto"
	"github.com/storemaster/storemaster-api/internal/domain"
)

// internalError mapea errores no previstos. El store caído se reporta como
// 503 para que el cliente reintente; el resto es un 500 genérico.
func internalError(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORE_UNAVAILABLE", Message: "almacén de datos no disponible"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrProductNotFound     = errors.New("producto no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrInvalidQuantity     = errors.New("cantidad inválida")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrTransactionConflict = errors.New("conflicto de transacción: reintentos agotados")
	ErrStoreUnavailable    = errors.New("almacén de documentos no disponible")
)

// InsufficientStockError lleva el stock realmente disponible al momento de la
// transacción, para que el caller pueda mostrarlo al usuario.
// Compatible con errors.Is(err, ErrInsufficientStock).
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente: disponible %d", e.Available)
}

// Is permite detectar el error con el sentinel ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

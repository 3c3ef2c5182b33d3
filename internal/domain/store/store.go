// Package store define el puerto del almacén de documentos: una base remota
// multi-escritor de documentos por colección, con transacciones de
// concurrencia optimista a nivel de documento. Toda la coordinación entre
// procesos clientes pasa por este contrato; la aplicación no usa locks.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Nombres de colección que usa la aplicación.
const (
	CollectionProducts = "products"
	CollectionSales    = "sales"
)

// Document es un documento versionado del store. Data es el cuerpo JSON;
// Version incrementa en cada escritura y es la base del chequeo optimista.
type Document struct {
	ID        string
	Data      json.RawMessage
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DataTo decodifica el cuerpo del documento en v.
func (d *Document) DataTo(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Op operador de comparación para filtros de consulta.
type Op string

const (
	OpEqual        Op = "=="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Filter filtro sobre un campo del documento (data->>field op value).
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query consulta sobre una colección: filtros, un solo orden y límite.
// El resultado es un snapshot finito y reiniciable al momento de la llamada.
type Query struct {
	Filters []Filter
	OrderBy string // campo del documento; vacío = sin orden garantizado
	// OrderTime indica que OrderBy contiene timestamps RFC3339 y el orden
	// debe ser cronológico. El orden textual no sirve: el formato descarta
	// ceros finales de la fracción, así "10:00:00Z" ordena como texto
	// después de "10:00:00.5Z".
	OrderTime bool
	Desc      bool
	Limit     int // 0 = sin límite
}

// Tx handle de una transacción en curso. Las lecturas ven el estado
// confirmado al inicio de la transacción; las escrituras quedan en staging
// y se confirman todas juntas solo si ningún documento leído fue modificado
// por otro escritor desde su lectura.
type Tx interface {
	Get(collection, id string) (*Document, error)
	Create(collection string, data any) (string, error)
	Update(collection, id string, data any) error
}

// Store es el contrato del adaptador de documentos.
//
// Toda operación es de larga latencia (red) y acepta context para
// cancelación/timeout. Get devuelve domain.ErrNotFound si el documento no
// existe; fallas de conectividad se reportan como domain.ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Create persiste un documento nuevo; el store asigna el id.
	Create(ctx context.Context, collection string, data any) (string, error)
	// Update reescribe el documento completo; falla con ErrNotFound si no existe.
	Update(ctx context.Context, collection, id string, data any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Watch emite snapshots sucesivos del resultado de q cada vez que la
	// colección cambia (primero un snapshot inicial). El canal se cierra
	// cuando ctx termina.
	Watch(ctx context.Context, collection string, q Query) (<-chan []Document, error)
	// RunTransaction ejecuta fn con un handle transaccional. Ante conflicto
	// optimista reintenta fn desde cero hasta un tope acotado y luego
	// devuelve domain.ErrTransactionConflict. Errores de negocio devueltos
	// por fn abortan de inmediato, sin reintento.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Package postgres implementa el puerto store.Store sobre PostgreSQL.
//
// Todos los documentos viven en la tabla `documents` (collection, id,
// data jsonb, version). La versión incrementa en cada escritura y es la base
// del chequeo optimista de RunTransaction: al commit se re-verifica bajo
// FOR UPDATE la versión de cada documento leído dentro de la transacción y,
// si alguna cambió, se descarta todo y se reintenta fn desde cero.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storemaster/storemaster-api/internal/domain"
	"github.com/storemaster/storemaster-api/internal/domain/store"
)

var _ store.Store = (*DocumentStore)(nil)

// Canal de pg_notify con el nombre de la colección modificada como payload.
const notifyChannel = "documents_changed"

// errTxConflict conflicto optimista interno de un intento; dispara reintento.
var errTxConflict = errors.New("conflicto optimista")

// Querier abstrae pool o tx de pgx (mismas firmas de Exec/Query/QueryRow).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentStore adaptador de documentos sobre PostgreSQL.
type DocumentStore struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewDocumentStore construye el adaptador. maxRetries acota los reintentos de
// RunTransaction ante conflicto optimista (<=0 usa el default 5).
func NewDocumentStore(pool *pgxpool.Pool, maxRetries int) *DocumentStore {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &DocumentStore{pool: pool, maxRetries: maxRetries}
}

// Get obtiene un documento por colección e id.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	return getDocument(ctx, s.pool, collection, id)
}

// Create persiste un documento nuevo; el id lo asigna el store.
func (s *DocumentStore) Create(ctx context.Context, collection string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	id := uuid.New().String()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, now(), now())`,
		collection, id, raw,
	)
	if err != nil {
		return "", classify("insert document", err)
	}
	s.notify(ctx, s.pool, collection)
	return id, nil
}

// Update reescribe el documento completo e incrementa la versión.
// ErrNotFound si el documento no existe.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	cmd, err := s.pool.Exec(ctx, `
		UPDATE documents SET data = $3, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, raw,
	)
	if err != nil {
		return classify("update document", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	s.notify(ctx, s.pool, collection)
	return nil
}

// Delete elimina un documento. ErrNotFound si no existe.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	cmd, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return classify("delete document", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	s.notify(ctx, s.pool, collection)
	return nil
}

// Query devuelve un snapshot finito de los documentos que cumplen q.
func (s *DocumentStore) Query(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	sql, args := buildQuery(collection, q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("query documents", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var d store.Document
		if err := rows.Scan(&d.ID, &d.Data, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Watch escucha notify en una conexión dedicada y re-consulta la colección en
// cada cambio, empujando snapshots sucesivos. Emite primero el snapshot
// inicial. El canal se cierra cuando ctx termina o la conexión se pierde.
func (s *DocumentStore) Watch(ctx context.Context, collection string, q store.Query) (<-chan []store.Document, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, classify("acquire listen conn", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, classify("listen", err)
	}

	ch := make(chan []store.Document, 1)
	go func() {
		defer close(ch)
		defer conn.Release()

		if docs, err := s.Query(ctx, collection, q); err == nil {
			push(ch, docs)
		}
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return // ctx cancelado o conexión perdida
			}
			if n.Payload != collection {
				continue
			}
			docs, err := s.Query(ctx, collection, q)
			if err != nil {
				continue
			}
			push(ch, docs)
		}
	}()
	return ch, nil
}

// push entrega el snapshot reemplazando el pendiente si el lector va atrasado.
func push(ch chan []store.Document, docs []store.Document) {
	select {
	case ch <- docs:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- docs
	}
}

// RunTransaction ejecuta fn con semántica optimista; ante conflicto reintenta
// fn desde cero hasta maxRetries y luego devuelve ErrTransactionConflict.
// Errores de negocio de fn abortan de inmediato, sin reintento.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errTxConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1)*5*time.Millisecond + time.Duration(rand.Intn(5))*time.Millisecond):
		}
	}
	return domain.ErrTransactionConflict
}

func (s *DocumentStore) runOnce(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	h := &pgTx{ctx: ctx, q: tx, reads: make(map[txKey]int64)}
	if err := fn(h); err != nil {
		return err
	}

	// Fase de commit: re-verificar bajo FOR UPDATE la versión de todo lo
	// leído. Orden determinista de bloqueo; un deadlock detectado por
	// Postgres se trata como conflicto y se reintenta.
	keys := make([]txKey, 0, len(h.reads))
	for k := range h.reads {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].collection != keys[j].collection {
			return keys[i].collection < keys[j].collection
		}
		return keys[i].id < keys[j].id
	})
	for _, k := range keys {
		var current int64
		err := tx.QueryRow(ctx,
			`SELECT version FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
			k.collection, k.id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return errTxConflict // leído y borrado por otro escritor
		}
		if err != nil {
			return classify("verify version", err)
		}
		if current != h.reads[k] {
			return errTxConflict
		}
	}

	touched := make(map[string]bool)
	for _, w := range h.writes {
		if w.create {
			_, err := tx.Exec(ctx, `
				INSERT INTO documents (collection, id, data, version, created_at, updated_at)
				VALUES ($1, $2, $3, 1, now(), now())`,
				w.collection, w.id, w.data,
			)
			if err != nil {
				return classify("tx insert document", err)
			}
		} else {
			cmd, err := tx.Exec(ctx, `
				UPDATE documents SET data = $3, version = version + 1, updated_at = now()
				WHERE collection = $1 AND id = $2`,
				w.collection, w.id, w.data,
			)
			if err != nil {
				return classify("tx update document", err)
			}
			if cmd.RowsAffected() == 0 {
				return domain.ErrNotFound
			}
		}
		touched[w.collection] = true
	}
	for collection := range touched {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
			return classify("tx notify", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// ── Transacción ───────────────────────────────────────────────────────────────

type txKey struct{ collection, id string }

type stagedWrite struct {
	collection string
	id         string
	data       json.RawMessage
	create     bool
}

type pgTx struct {
	ctx    context.Context
	q      Querier
	reads  map[txKey]int64
	writes []stagedWrite
}

func (t *pgTx) Get(collection, id string) (*store.Document, error) {
	doc, err := getDocument(t.ctx, t.q, collection, id)
	if err != nil {
		return nil, err
	}
	t.reads[txKey{collection, id}] = doc.Version
	return doc, nil
}

func (t *pgTx) Create(collection string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	id := uuid.New().String()
	t.writes = append(t.writes, stagedWrite{collection: collection, id: id, data: raw, create: true})
	return id, nil
}

func (t *pgTx) Update(collection, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	t.writes = append(t.writes, stagedWrite{collection: collection, id: id, data: raw})
	return nil
}

// ── Internos ──────────────────────────────────────────────────────────────────

func getDocument(ctx context.Context, q Querier, collection, id string) (*store.Document, error) {
	var d store.Document
	err := q.QueryRow(ctx, `
		SELECT id, data, version, created_at, updated_at
		FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&d.ID, &d.Data, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classify("get document", err)
	}
	return &d, nil
}

func (s *DocumentStore) notify(ctx context.Context, q Querier, collection string) {
	// Aviso best-effort para los watchers; la escritura ya está confirmada.
	_, _ = q.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection)
}

// buildQuery arma el SELECT para una consulta de colección. Los nombres de
// campo vienen del código de la aplicación, nunca del cliente.
func buildQuery(collection string, q store.Query) (string, []any) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, data, version, created_at, updated_at FROM documents WHERE collection = $1`)

	for _, f := range q.Filters {
		args = append(args, f.Value)
		field := fmt.Sprintf("data->>'%s'", f.Field)
		if isNumeric(f.Value) {
			field = "(" + field + ")::numeric"
		}
		fmt.Fprintf(&b, " AND %s %s $%d", field, sqlOp(f.Op), len(args))
	}
	if q.OrderBy != "" {
		orderField := fmt.Sprintf("data->>'%s'", q.OrderBy)
		if q.OrderTime {
			// Orden cronológico: como texto, RFC3339 descarta ceros finales
			// de la fracción y el segundo exacto ordena mal
			orderField = "(" + orderField + ")::timestamptz"
		}
		fmt.Fprintf(&b, " ORDER BY %s", orderField)
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args
}

func sqlOp(op store.Op) string {
	if op == store.OpEqual {
		return "="
	}
	return string(op)
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64, decimal.Decimal:
		return true
	default:
		return false
	}
}

// classify traduce errores del driver a la taxonomía del dominio: errores del
// servidor Postgres se devuelven tal cual (envueltos); serialización/deadlock
// disparan reintento; fallas sin respuesta del servidor son conectividad.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return errTxConflict
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w (%v)", op, domain.ErrStoreUnavailable, err)
}

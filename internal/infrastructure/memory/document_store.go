// Package memory implementa el puerto store.Store en memoria del proceso.
// Se usa en tests y en modo desarrollo (STORE_DRIVER=memory). Reproduce la
// misma semántica que el driver PostgreSQL: documentos versionados,
// transacciones con chequeo optimista al commit y suscripciones Watch.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storemaster/storemaster-api/internal/domain"
	"github.com/storemaster/storemaster-api/internal/domain/store"
)

var _ store.Store = (*DocumentStore)(nil)

type record struct {
	data      json.RawMessage
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

type watcher struct {
	collection string
	query      store.Query
	ch         chan []store.Document
}

// DocumentStore almacén de documentos en memoria, seguro para uso concurrente.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*record
	watchers    map[int]*watcher
	nextWatchID int
	maxRetries  int
}

// NewDocumentStore construye el store. maxRetries acota los reintentos de
// RunTransaction ante conflicto optimista (<=0 usa el default 5).
func NewDocumentStore(maxRetries int) *DocumentStore {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &DocumentStore{
		collections: make(map[string]map[string]*record),
		watchers:    make(map[int]*watcher),
		maxRetries:  maxRetries,
	}
}

// Get obtiene un documento por colección e id.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return toDocument(id, rec), nil
}

// Create persiste un documento nuevo con id asignado por el store.
func (s *DocumentStore) Create(ctx context.Context, collection string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	id := uuid.New().String()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(collection, id, &record{data: raw, version: 1, createdAt: now, updatedAt: now})
	s.notifyLocked(collection)
	return id, nil
}

// Update reescribe el documento completo. ErrNotFound si no existe.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.data = raw
	rec.version++
	rec.updatedAt = time.Now()
	s.notifyLocked(collection)
	return nil
}

// Delete elimina un documento. ErrNotFound si no existe.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.collections[collection], id)
	s.notifyLocked(collection)
	return nil
}

// Query devuelve un snapshot de los documentos que cumplen q.
func (s *DocumentStore) Query(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(collection, q), nil
}

// Watch registra una suscripción: emite un snapshot inicial y uno nuevo en
// cada cambio de la colección. Cierra el canal cuando ctx termina.
func (s *DocumentStore) Watch(ctx context.Context, collection string, q store.Query) (<-chan []store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &watcher{collection: collection, query: q, ch: make(chan []store.Document, 1)}

	s.mu.Lock()
	id := s.nextWatchID
	s.nextWatchID++
	s.watchers[id] = w
	w.ch <- s.queryLocked(collection, q) // snapshot inicial (buffer 1, no bloquea)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
		close(w.ch)
	}()
	return w.ch, nil
}

// RunTransaction ejecuta fn con chequeo optimista al commit; ante conflicto
// reintenta hasta maxRetries y luego devuelve ErrTransactionConflict.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{store: s, reads: make(map[txKey]int64)}
		if err := fn(tx); err != nil {
			return err // error de negocio: sin reintento
		}
		if s.commit(tx) {
			return nil
		}
		// Conflicto: backoff breve con jitter antes de reintentar fn desde cero
		time.Sleep(time.Duration(attempt+1)*2*time.Millisecond + time.Duration(rand.Intn(1500))*time.Microsecond)
	}
	return domain.ErrTransactionConflict
}

// ── Transacción ───────────────────────────────────────────────────────────────

type txKey struct{ collection, id string }

type stagedWrite struct {
	collection string
	id         string
	data       json.RawMessage
	create     bool
}

type memTx struct {
	store  *DocumentStore
	reads  map[txKey]int64 // versión observada por documento leído
	writes []stagedWrite
}

func (t *memTx) Get(collection, id string) (*store.Document, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	rec, ok := t.store.collections[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	t.reads[txKey{collection, id}] = rec.version
	return toDocument(id, rec), nil
}

func (t *memTx) Create(collection string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	// El id se asigna al staging; crear un documento nuevo nunca conflictúa.
	id := uuid.New().String()
	t.writes = append(t.writes, stagedWrite{collection: collection, id: id, data: raw, create: true})
	return id, nil
}

func (t *memTx) Update(collection, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	t.writes = append(t.writes, stagedWrite{collection: collection, id: id, data: raw})
	return nil
}

// commit aplica las escrituras staged si ningún documento leído cambió de
// versión desde su lectura. Devuelve false ante conflicto (para reintentar).
func (s *DocumentStore) commit(t *memTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range t.reads {
		rec, ok := s.collections[key.collection][key.id]
		if !ok || rec.version != version {
			return false
		}
	}

	now := time.Now()
	touched := make(map[string]bool)
	for _, w := range t.writes {
		if w.create {
			s.putLocked(w.collection, w.id, &record{data: w.data, version: 1, createdAt: now, updatedAt: now})
		} else {
			rec, ok := s.collections[w.collection][w.id]
			if !ok {
				return false // leído y borrado por otro escritor: conflicto
			}
			rec.data = w.data
			rec.version++
			rec.updatedAt = now
		}
		touched[w.collection] = true
	}
	for collection := range touched {
		s.notifyLocked(collection)
	}
	return true
}

// ── Internos ──────────────────────────────────────────────────────────────────

func (s *DocumentStore) putLocked(collection, id string, rec *record) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*record)
	}
	s.collections[collection][id] = rec
}

func (s *DocumentStore) notifyLocked(collection string) {
	for _, w := range s.watchers {
		if w.collection != collection {
			continue
		}
		snapshot := s.queryLocked(collection, w.query)
		// Reemplaza el snapshot pendiente si el suscriptor va atrasado
		select {
		case w.ch <- snapshot:
		default:
			select {
			case <-w.ch:
			default:
			}
			w.ch <- snapshot
		}
	}
}

func (s *DocumentStore) queryLocked(collection string, q store.Query) []store.Document {
	type decoded struct {
		doc    store.Document
		fields map[string]any
	}
	var rows []decoded
	for id, rec := range s.collections[collection] {
		var fields map[string]any
		if err := json.Unmarshal(rec.data, &fields); err != nil {
			continue
		}
		if !matches(fields, q.Filters) {
			continue
		}
		rows = append(rows, decoded{doc: *toDocument(id, rec), fields: fields})
	}

	if q.OrderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			cmp := compareOrder(rows[i].fields[q.OrderBy], rows[j].fields[q.OrderBy], q.OrderTime)
			if q.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	docs := make([]store.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.doc)
	}
	return docs
}

func matches(fields map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		cmp := compareValues(v, f.Value)
		switch f.Op {
		case store.OpEqual:
			if cmp != 0 {
				return false
			}
		case store.OpLess:
			if cmp >= 0 {
				return false
			}
		case store.OpLessEqual:
			if cmp > 0 {
				return false
			}
		case store.OpGreater:
			if cmp <= 0 {
				return false
			}
		case store.OpGreaterEqual:
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareOrder compara los valores del campo de orden. Con asTime activo
// interpreta los strings como timestamps RFC3339 y compara cronológicamente.
func compareOrder(a, b any, asTime bool) int {
	if asTime {
		at, aok := toTime(a)
		bt, bok := toTime(b)
		if aok && bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	return compareValues(a, b)
}

func toTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	return ts, err == nil
}

// compareValues compara dos valores JSON: numéricamente si ambos son números,
// si no como strings.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toDocument(id string, rec *record) *store.Document {
	data := make(json.RawMessage, len(rec.data))
	copy(data, rec.data)
	return &store.Document{
		ID:        id,
		Data:      data,
		Version:   rec.version,
		CreatedAt: rec.createdAt,
		UpdatedAt: rec.updatedAt,
	}
}

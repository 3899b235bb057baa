package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// Collection simula una colección de Mongo con outbox incluido.
// Los repositorios en memoria de cada contexto se construyen sobre ella.
type Collection[T any] struct {
	Items  map[string]T
	Outbox []sharedDomain.OutboxEvent
	// Err, si no es nil, lo devuelven todas las operaciones (simula caída del almacén).
	Err error

	idOf   func(T) string
	fields func(T) Fields
	mu     sync.Mutex
}

func NewCollection[T any](idOf func(T) string, fields func(T) Fields) *Collection[T] {
	return &Collection[T]{
		Items:  make(map[string]T),
		idOf:   idOf,
		fields: fields,
	}
}

// Insert añade el documento y su evento de outbox; devuelve exists si ya estaba.
func (c *Collection[T]) Insert(item T, evt sharedDomain.OutboxEvent, exists error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	id := c.idOf(item)
	if _, ok := c.Items[id]; ok {
		return exists
	}
	c.Items[id] = item
	c.appendOutbox(evt)
	return nil
}

// Replace sustituye el documento; devuelve notFound si no existe.
func (c *Collection[T]) Replace(item T, evt sharedDomain.OutboxEvent, notFound error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	id := c.idOf(item)
	if _, ok := c.Items[id]; !ok {
		return notFound
	}
	c.Items[id] = item
	c.appendOutbox(evt)
	return nil
}

// Remove borra el documento; devuelve notFound si no existe.
func (c *Collection[T]) Remove(id string, evt sharedDomain.OutboxEvent, notFound error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	if _, ok := c.Items[id]; !ok {
		return notFound
	}
	delete(c.Items, id)
	c.appendOutbox(evt)
	return nil
}

// Get devuelve el documento por id.
func (c *Collection[T]) Get(id string, notFound error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.Err != nil {
		return zero, c.Err
	}
	item, ok := c.Items[id]
	if !ok {
		return zero, notFound
	}
	return item, nil
}

// Find filtra, ordena y limita igual que la consulta paginada real.
func (c *Collection[T]) Find(criteria sharedDomain.Criteria, sorts []sharedQuery.Sort, limit int) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}

	type row struct {
		item T
		doc  Fields
	}
	var rows []row
	for _, item := range c.Items {
		doc := c.fields(item)
		if MatchCriteria(doc, criteria) {
			rows = append(rows, row{item: item, doc: doc})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return lessBySorts(rows[i].doc, rows[j].doc, sorts)
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.item)
	}
	return out, nil
}

// FindPage aplica el filtro de paginación sobre los criterios del listado.
func (c *Collection[T]) FindPage(criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]T, error) {
	return c.Find(f.Merge(criteria), f.Sorts(), f.FetchLimit())
}

// Count cuenta los documentos que cumplen el criterio.
func (c *Collection[T]) Count(criteria sharedDomain.Criteria) (int64, error) {
	rows, err := c.Find(criteria, nil, 0)
	return int64(len(rows)), err
}

// CountBy agrupa por el valor de field, como el $group de Mongo.
func (c *Collection[T]) CountBy(criteria sharedDomain.Criteria, field string) (map[string]int64, error) {
	rows, err := c.Find(criteria, nil, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, item := range rows {
		out[fmt.Sprint(c.fields(item)[field])]++
	}
	return out, nil
}

// Events devuelve los tipos de evento del outbox en orden de escritura.
func (c *Collection[T]) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.Outbox))
	for _, evt := range c.Outbox {
		out = append(out, evt.EventType)
	}
	return out
}

// Record añade eventos extra de la misma escritura.
func (c *Collection[T]) Record(evts ...sharedDomain.OutboxEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, evt := range evts {
		c.appendOutbox(evt)
	}
}

func (c *Collection[T]) appendOutbox(evt sharedDomain.OutboxEvent) {
	if evt.EventType != "" {
		c.Outbox = append(c.Outbox, evt)
	}
}

// --- Métodos de Outbox del mock ---

func (c *Collection[T]) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pending []sharedDomain.OutboxEvent
	for _, evt := range c.Outbox {
		if evt.Processed {
			continue
		}
		pending = append(pending, evt)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (c *Collection[T]) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Outbox {
		if c.Outbox[i].ID == id {
			c.Outbox[i].Processed = true
			return nil
		}
	}
	return fmt.Errorf("outbox event not found: %s", id)
}

var _ sharedDomain.OutboxRepository = (*Collection[int])(nil)

// pointers convierte copias en punteros nuevos; el llamador no comparte memoria con el almacén.
func pointers[T any](rows []T) []*T {
	out := make([]*T, 0, len(rows))
	for i := range rows {
		row := rows[i]
		out = append(out, &row)
	}
	return out
}

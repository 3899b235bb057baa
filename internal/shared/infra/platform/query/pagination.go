package query

import (
	"strconv"
	"strings"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
)

// ---------- Tipos de paginación / ordenamiento ----------

const (
	DefaultLimit  = 10
	DefaultSortBy = "createdAt"
	IDField       = "_id"
)

type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// Campos de ordenación admitidos. Todos son fechas, así que el cursor siempre es un timestamp.
var sortableFields = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
}

// Sort indica campo y dirección.
type Sort struct {
	Field string // ej. "createdAt", "_id"
	Desc  bool
}

// PaginationRequest es lo que llega del cliente, sin normalizar.
type PaginationRequest struct {
	Limit     int
	Cursor    string
	SortBy    string
	SortOrder SortOrder
}

// ParseRequest construye la petición a partir de query params en crudo.
// Un límite no numérico se trata igual que uno ausente.
func ParseRequest(limit, cursor, sortBy, sortOrder string) PaginationRequest {
	n, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil {
		n = 0
	}
	return PaginationRequest{
		Limit:     n,
		Cursor:    strings.TrimSpace(cursor),
		SortBy:    strings.TrimSpace(sortBy),
		SortOrder: SortOrder(strings.ToLower(strings.TrimSpace(sortOrder))),
	}
}

// PaginationFilter es la petición normalizada más el predicado de cursor.
type PaginationFilter struct {
	Limit     int
	SortBy    string
	SortOrder SortOrder
	Cursor    Cursor
	// Criteria es nil cuando no hay cursor.
	Criteria sharedDomain.Criteria
}

// CalculatePagination normaliza la petición y traduce el cursor a un predicado
// estricto (< en desc, > en asc). Nunca falla: un cursor ilegible produce un
// predicado que no casa con nada y la página sale vacía.
func CalculatePagination(req PaginationRequest) PaginationFilter {
	f := PaginationFilter{
		Limit:     req.Limit,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if !sortableFields[f.SortBy] {
		f.SortBy = DefaultSortBy
	}
	if f.SortOrder != SortAsc {
		f.SortOrder = SortDesc
	}

	if req.Cursor == "" {
		return f
	}

	f.Cursor = ParseCursor(req.Cursor)
	f.Criteria = f.Cursor.predicate(f.SortBy, f.SortOrder)
	return f
}

// Desc indica si el orden es descendente.
func (f PaginationFilter) Desc() bool {
	return f.SortOrder != SortAsc
}

// FetchLimit es el número de filas a pedir al almacén: una más para saber si hay otra página.
func (f PaginationFilter) FetchLimit() int {
	return f.Limit + 1
}

// Sorts devuelve el orden total: campo de ordenación y _id como desempate.
func (f PaginationFilter) Sorts() []Sort {
	return []Sort{
		{Field: f.SortBy, Desc: f.Desc()},
		{Field: IDField, Desc: f.Desc()},
	}
}

// CursorKey es la representación del cursor dentro de una clave de caché.
func (f PaginationFilter) CursorKey() string {
	return f.Cursor.KeyPart()
}

// Merge combina el predicado del cursor con los filtros propios del listado.
func (f PaginationFilter) Merge(criteria sharedDomain.Criteria) sharedDomain.Criteria {
	if f.Criteria == nil {
		return criteria
	}
	if criteria == nil {
		return f.Criteria
	}
	return sharedDomain.And(criteria, f.Criteria)
}

// ---------- Resultado ----------

// Pageable lo implementan las entidades listables: devuelven el valor del campo
// de ordenación y su identificador para construir el siguiente cursor.
type Pageable interface {
	PageKey(sortBy string) (PageKey, bool)
}

// PaginationResult es la forma JSON de cualquier página.
type PaginationResult[T any] struct {
	Data       []T     `json:"data"`
	HasMore    bool    `json:"hasMore"`
	NextCursor *string `json:"nextCursor"`
}

// BuildPageResult recibe las filas pedidas con FetchLimit, descarta la fila de
// sondeo y calcula hasMore y nextCursor a partir de la última fila devuelta.
func BuildPageResult[T Pageable](rows []T, f PaginationFilter) PaginationResult[T] {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	res := PaginationResult[T]{Data: rows}
	if len(rows) > limit {
		res.Data = rows[:limit]
		res.HasMore = true
	}
	if res.Data == nil {
		res.Data = []T{}
	}

	if res.HasMore {
		if pk, ok := res.Data[len(res.Data)-1].PageKey(f.SortBy); ok {
			next := pk.Encode()
			res.NextCursor = &next
		}
	}
	return res
}

package domain

import (
	shared "github.com/davicafu/civicreport/internal/shared/domain"
)

// Nombres de campo tal y como se persisten.
const (
	FieldStatus      = "status"
	FieldCategory    = "category"
	FieldDivision    = "division"
	FieldReporterID  = "reporterId"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldReadBy      = "readBy"
)

// --- Criterios Específicos para el Dominio Issue ---

type StatusCriteria struct {
	Status string
}

func (c StatusCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldStatus, Op: shared.OpEq, Value: c.Status}}
}

type CategoryCriteria struct {
	Category string
}

func (c CategoryCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldCategory, Op: shared.OpEq, Value: c.Category}}
}

type DivisionCriteria struct {
	Division string
}

func (c DivisionCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldDivision, Op: shared.OpEq, Value: c.Division}}
}

type ReporterCriteria struct {
	ReporterID string
}

func (c ReporterCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldReporterID, Op: shared.OpEq, Value: c.ReporterID}}
}

// UnreadByCriteria: incidencias que el usuario todavía no ha marcado como leídas.
type UnreadByCriteria struct {
	UserID string
}

func (c UnreadByCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldReadBy, Op: shared.OpNe, Value: c.UserID}}
}

// SearchCriteria busca el texto en título o descripción, sin distinguir mayúsculas.
func SearchCriteria(text string) shared.Criteria {
	if text == "" {
		return nil
	}
	like := "%" + text + "%"
	return shared.Or(
		shared.Cond(FieldTitle, shared.OpILike, like),
		shared.Cond(FieldDescription, shared.OpILike, like),
	)
}

// ListFilter son los filtros opcionales del listado público.
type ListFilter struct {
	Status   string
	Category string
	Division string
	Search   string
}

// Criteria compone los filtros no vacíos con AND.
func (f ListFilter) Criteria() shared.Criteria {
	var parts []shared.Criteria
	if f.Status != "" {
		parts = append(parts, StatusCriteria{Status: f.Status})
	}
	if f.Category != "" {
		parts = append(parts, CategoryCriteria{Category: f.Category})
	}
	if f.Division != "" {
		parts = append(parts, DivisionCriteria{Division: f.Division})
	}
	if s := SearchCriteria(f.Search); s != nil {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return nil
	}
	return shared.And(parts...)
}

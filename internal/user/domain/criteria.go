package domain

import (
	shared "github.com/davicafu/civicreport/internal/shared/domain"
)

const (
	FieldEmail = "email"
	FieldRole  = "role"
)

// Filtrado por email exacto
type EmailCriteria struct {
	Email string
}

func (c EmailCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldEmail, Op: shared.OpEq, Value: c.Email}}
}

// Filtrado por rol
type RoleCriteria struct {
	Role string
}

func (c RoleCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldRole, Op: shared.OpEq, Value: c.Role}}
}

package domain

import (
	"context"
	"errors"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// ---------- Errores de dominio ----------
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidRole       = errors.New("invalid role")
	ErrCategoryRequired  = errors.New("category-admin needs a valid category")
)

// ---------- Interfaces (Ports) ----------

// UserRepository define las operaciones persistentes para User.
type UserRepository interface {
	// Debe devolver ErrUserAlreadyExists si el email ya está registrado.
	Create(ctx context.Context, u *User, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrUserNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// Debe devolver ErrUserNotFound si el usuario no existe.
	Update(ctx context.Context, u *User, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrUserNotFound si el usuario no existe.
	DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error

	// ListPage devuelve hasta f.FetchLimit() usuarios en el orden total del filtro.
	ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*User, error)
}

package domain

import (
	"net/mail"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// User representa un usuario del sistema: ciudadano o administrador.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Category  string    `json:"category,omitempty"` // solo administradores de categoría
	Division  string    `json:"division,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewUser(name, email, role, category, division string) (*User, error) {
	now := sharedDomain.Now()
	u := &User{
		ID:        sharedDomain.NewID(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		Category:  category,
		Division:  strings.TrimSpace(division),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u.Role == "" {
		u.Role = sharedDomain.RoleCitizen
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Validate() error {
	if u.Name == "" {
		return ErrNameRequired
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	if !sharedDomain.ValidRole(u.Role) {
		return ErrInvalidRole
	}
	if u.Role == sharedDomain.RoleCategoryAdmin && !sharedDomain.ValidCategory(u.Category) {
		return ErrCategoryRequired
	}
	return nil
}

// Update aplica los cambios no nulos. La categoría solo se conserva para
// administradores de categoría.
func (u *User) Update(name, role, category, division *string) error {
	if name != nil {
		u.Name = strings.TrimSpace(*name)
	}
	if role != nil {
		u.Role = *role
	}
	if category != nil {
		u.Category = *category
	}
	if division != nil {
		u.Division = strings.TrimSpace(*division)
	}
	if u.Role != sharedDomain.RoleCategoryAdmin {
		u.Category = ""
	}
	if err := u.Validate(); err != nil {
		return err
	}
	u.UpdatedAt = sharedDomain.Now()
	return nil
}

// Viewer es la identidad con la que este usuario ve el sistema.
func (u *User) Viewer() sharedDomain.Viewer {
	return sharedDomain.Viewer{UserID: u.ID, Role: u.Role, Category: u.Category, Division: u.Division}
}

func (u *User) PageKey(sortBy string) (sharedQuery.PageKey, bool) {
	switch sortBy {
	case "createdAt":
		return sharedQuery.PageKey{At: u.CreatedAt, ID: u.ID}, true
	case "updatedAt":
		return sharedQuery.PageKey{At: u.UpdatedAt, ID: u.ID}, true
	}
	return sharedQuery.PageKey{}, false
}

func (u *User) PartitionKey() string {
	return u.ID
}

// Verificación estática para asegurar que User implementa las interfaces
var (
	_ sharedBus.Keyer      = (*User)(nil)
	_ sharedQuery.Pageable = (*User)(nil)
)

package domain

// Roles de los usuarios autenticados. Sin token el visitante es invitado.
const (
	RoleCitizen       = "citizen"
	RoleCategoryAdmin = "category-admin"
	RoleSuperAdmin    = "super-admin"
	RoleGuest         = "guest"
)

// Categorías de incidencia.
const (
	CategoryWater       = "water"
	CategoryElectricity = "electricity"
	CategoryGas         = "gas"
	CategoryRoad        = "road"
	CategoryOther       = "other"
)

// Estados de una incidencia.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"
)

var (
	Categories    = []string{CategoryWater, CategoryElectricity, CategoryGas, CategoryRoad, CategoryOther}
	IssueStatuses = []string{StatusPending, StatusInProgress, StatusResolved, StatusRejected}
	Roles         = []string{RoleCitizen, RoleCategoryAdmin, RoleSuperAdmin}
)

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func ValidCategory(c string) bool { return contains(Categories, c) }
func ValidStatus(s string) bool   { return contains(IssueStatuses, s) }
func ValidRole(r string) bool     { return contains(Roles, r) }

// IsAdmin indica si el rol ve la bandeja de administración.
func IsAdmin(role string) bool {
	return role == RoleCategoryAdmin || role == RoleSuperAdmin
}

// Viewer es quien hace la petición, tal como lo identifica el token.
// Un Viewer vacío es un invitado.
type Viewer struct {
	UserID   string
	Role     string
	Category string
	Division string
}

// IsGuest indica que la petición no trae identidad.
func (v Viewer) IsGuest() bool {
	return v.UserID == ""
}

// ScopeCategory es la categoría a la que queda restringida la vista: solo los
// administradores de categoría tienen una.
func (v Viewer) ScopeCategory() string {
	if v.Role == RoleCategoryAdmin {
		return v.Category
	}
	return ""
}

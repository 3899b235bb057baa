// Package cachekeys construye las claves de caché de todos los contextos.
// Una clave es una cabecera más una lista ordenada de dimensiones; la
// serialización es determinista y ningún valor contiene el separador.
package cachekeys

import (
	"net/url"
	"strconv"
	"strings"

	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// Cabeceras de clave. Los patrones de invalidación se construyen sobre ellas.
const (
	HeadIssue         = "issue"
	HeadIssues        = "issues"
	HeadUser          = "user"
	HeadUsersList     = "users:list"
	HeadReview        = "review"
	HeadReviews       = "reviews"
	HeadComments      = "comments"
	HeadMessages      = "messages"
	HeadUserStats     = "user_stats"
	HeadCategoryStats = "category_stats"
	HeadSuperAdmin    = "super_admin_stats"
	HeadUnreadCount   = "unread_issues_count"
)

const (
	sep = ":"

	public = "public"
	guest  = "guest"
	all    = "all"
	none   = "none"
)

// Dimension es un componente con nombre de la clave. Label, si está, se
// serializa como "label=valor".
type Dimension struct {
	Name  string
	Label string
	Value string
}

// Key es una clave estructurada.
type Key struct {
	Head string
	Sep  string
	Dims []Dimension
}

// String serializa la clave; es la forma que llega al almacén (sin prefijo).
func (k Key) String() string {
	s := k.Sep
	if s == "" {
		s = sep
	}
	var b strings.Builder
	b.WriteString(k.Head)
	for _, d := range k.Dims {
		b.WriteString(s)
		if d.Label != "" {
			b.WriteString(d.Label)
			b.WriteString("=")
		}
		b.WriteString(d.Value)
	}
	return b.String()
}

// Value devuelve el valor de una dimensión por nombre.
func (k Key) Value(name string) (string, bool) {
	for _, d := range k.Dims {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

func dim(name, value string) Dimension {
	return Dimension{Name: name, Value: Clean(value)}
}

var cleaner = strings.NewReplacer("%", "%25", sep, "%3A")

// Clean evita que un valor introduzca separadores extra en la clave. El % se
// escapa también para que dos valores distintos nunca den la misma clave.
func Clean(v string) string {
	return cleaner.Replace(v)
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Page agrupa las dimensiones de paginación comunes a todos los listados.
type Page struct {
	Cursor    string // ya normalizado: "first", "invalid" o el cursor codificado
	Limit     int
	SortOrder string
}

func (p Page) dims() []Dimension {
	return []Dimension{
		dim("cursor", or(p.Cursor, "first")),
		dim("limit", strconv.Itoa(p.Limit)),
		dim("sortOrder", p.SortOrder),
	}
}

// PageOf toma las dimensiones de paginación de un filtro ya normalizado.
func PageOf(f sharedQuery.PaginationFilter) Page {
	return Page{Cursor: f.CursorKey(), Limit: f.Limit, SortOrder: string(f.SortOrder)}
}

// Search normaliza el término de búsqueda para la clave.
func Search(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return none
	}
	return url.QueryEscape(term)
}

// ---------- Issues ----------

// Issue -> issue:{issueId}
func Issue(id string) Key {
	return Key{Head: HeadIssue, Dims: []Dimension{dim("issueId", id)}}
}

// IssueListScope son las dimensiones que definen una vista del listado de issues.
type IssueListScope struct {
	UserID        string // vacío = public
	Role          string // vacío = guest
	ScopeCategory string // categoría del administrador que mira
	Status        string
	Division      string
	Category      string // filtro de categoría pedido
	Search        string
}

// IssueList ->
// issues:{userIdOrPublic}:{roleOrGuest}:{categoryOrAll}:{cursorOrFirst}:{limit}:{sortOrder}:{statusOrAll}:{divisionOrAll}:{categoryOrAll}:{searchOrNone}
func IssueList(s IssueListScope, p Page) Key {
	dims := []Dimension{
		dim("userId", or(s.UserID, public)),
		dim("role", or(s.Role, guest)),
		dim("scopeCategory", or(s.ScopeCategory, all)),
	}
	dims = append(dims, p.dims()...)
	dims = append(dims,
		dim("status", or(s.Status, all)),
		dim("division", or(s.Division, all)),
		dim("category", or(s.Category, all)),
		Dimension{Name: "search", Value: Search(s.Search)},
	)
	return Key{Head: HeadIssues, Dims: dims}
}

// UserIssues -> user:{userId}:issues:{cursorOrFirst}:{limit}:{sortOrder}:{statusOrAll}
func UserIssues(userID, status string, p Page) Key {
	dims := []Dimension{dim("userId", userID), {Name: "kind", Value: HeadIssues}}
	dims = append(dims, p.dims()...)
	dims = append(dims, dim("status", or(status, all)))
	return Key{Head: HeadUser, Dims: dims}
}

// UnreadIssuesCount -> unread_issues_count:{userId}:{role}:{categoryOrAll}
func UnreadIssuesCount(userID, role, category string) Key {
	return Key{Head: HeadUnreadCount, Dims: []Dimension{
		dim("userId", userID),
		dim("role", or(role, guest)),
		dim("category", or(category, all)),
	}}
}

// ---------- Comentarios (reviews) ----------

// Review -> review:{reviewId}
func Review(id string) Key {
	return Key{Head: HeadReview, Dims: []Dimension{dim("reviewId", id)}}
}

// IssueReviews -> reviews:issue:{issueId}:{cursorOrFirst}:{limit}:{sortOrder}
func IssueReviews(issueID string, p Page) Key {
	dims := []Dimension{{Name: "scope", Value: HeadIssue}, dim("issueId", issueID)}
	return Key{Head: HeadReviews, Dims: append(dims, p.dims()...)}
}

// AdminReviews -> reviews:admin:{role}:{categoryOrAll}:{cursorOrFirst}:{limit}:{sortOrder}
func AdminReviews(role, category string, p Page) Key {
	dims := []Dimension{
		{Name: "scope", Value: "admin"},
		dim("role", or(role, guest)),
		dim("category", or(category, all)),
	}
	return Key{Head: HeadReviews, Dims: append(dims, p.dims()...)}
}

// UserReviews -> reviews:user:{userId}:{cursorOrFirst}:{limit}:{sortOrder}
func UserReviews(userID string, p Page) Key {
	dims := []Dimension{{Name: "scope", Value: HeadUser}, dim("userId", userID)}
	return Key{Head: HeadReviews, Dims: append(dims, p.dims()...)}
}

// ---------- Usuarios ----------

// User -> user:{userId}
func User(id string) Key {
	return Key{Head: HeadUser, Dims: []Dimension{dim("userId", id)}}
}

// UsersList -> users:list:role={role}:{cursorOrFirst}:{limit}:{sortOrder}
func UsersList(role string, p Page) Key {
	dims := []Dimension{{Name: "role", Label: "role", Value: Clean(or(role, all))}}
	return Key{Head: HeadUsersList, Dims: append(dims, p.dims()...)}
}

// ---------- Estadísticas ----------

// UserStats -> user_stats_{userId}
func UserStats(userID string) Key {
	return Key{Head: HeadUserStats, Sep: "_", Dims: []Dimension{dim("userId", userID)}}
}

// CategoryStats -> category_stats:{category}
func CategoryStats(category string) Key {
	return Key{Head: HeadCategoryStats, Dims: []Dimension{dim("category", category)}}
}

// SuperAdminStats -> super_admin_stats
func SuperAdminStats() Key {
	return Key{Head: HeadSuperAdmin}
}

// ---------- Mensajes ----------

// UserMessages -> messages:user:{userId}:{cursorOrFirst}:{limit}:{sortOrder}
func UserMessages(userID string, p Page) Key {
	dims := []Dimension{{Name: "scope", Value: HeadUser}, dim("userId", userID)}
	return Key{Head: HeadMessages, Dims: append(dims, p.dims()...)}
}

// IssueMessages -> messages:issue:{issueId}:{cursorOrFirst}:{limit}:{sortOrder}
func IssueMessages(issueID string, p Page) Key {
	dims := []Dimension{{Name: "scope", Value: HeadIssue}, dim("issueId", issueID)}
	return Key{Head: HeadMessages, Dims: append(dims, p.dims()...)}
}

// ---------- Tags ----------

// Tag identifica un conjunto de claves que contienen una entidad concreta.
func Tag(entity, id string) string {
	return entity + sep + Clean(id)
}

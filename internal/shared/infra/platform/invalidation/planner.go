package invalidation

import (
	"strings"

	"github.com/davicafu/civicreport/internal/shared/cachekeys"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
)

// Plan es el resultado de planificar una invalidación. Keys son claves exactas,
// Patterns son globs sobre el espacio de claves y Tags índices de claves.
// Cada lista está deduplicada y conserva el orden de inserción.
type Plan struct {
	Keys     []string
	Patterns []string
	Tags     []string
}

// Empty indica que no hay nada que borrar.
func (p Plan) Empty() bool {
	return len(p.Keys) == 0 && len(p.Patterns) == 0 && len(p.Tags) == 0
}

// Size es el número total de operaciones del plan.
func (p Plan) Size() int {
	return len(p.Keys) + len(p.Patterns) + len(p.Tags)
}

type planBuilder struct {
	plan Plan
	seen map[string]struct{}
}

func newPlanBuilder() *planBuilder {
	return &planBuilder{seen: make(map[string]struct{})}
}

func (b *planBuilder) once(kind, v string) bool {
	id := kind + "\x00" + v
	if _, ok := b.seen[id]; ok {
		return false
	}
	b.seen[id] = struct{}{}
	return true
}

func (b *planBuilder) key(k cachekeys.Key) {
	if s := k.String(); b.once("k", s) {
		b.plan.Keys = append(b.plan.Keys, s)
	}
}

func (b *planBuilder) glob(parts ...string) {
	if s := strings.Join(parts, ":"); b.once("p", s) {
		b.plan.Patterns = append(b.plan.Patterns, s)
	}
}

func (b *planBuilder) tag(entity, id string) {
	if s := cachekeys.Tag(entity, id); b.once("t", s) {
		b.plan.Tags = append(b.plan.Tags, s)
	}
}

// lit prepara un valor para interpolarlo en un glob: mismo saneado que las
// claves y escape de los metacaracteres.
func lit(v string) string {
	v = cachekeys.Clean(v)
	var b strings.Builder
	for _, r := range v {
		switch r {
		case '*', '?', '[', ']', '\\', '{', '}', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PlanFor calcula claves, patrones y tags que una escritura deja obsoletos.
func PlanFor(opts Options) (Plan, error) {
	if err := opts.validate(); err != nil {
		return Plan{}, err
	}

	b := newPlanBuilder()
	issues := cachekeys.HeadIssues

	switch opts.Entity {
	case EntityIssue:
		b.glob(issues, "*")
		statuses := sharedDomain.IssueStatuses
		if opts.Status != "" && !sharedDomain.ValidStatus(opts.Status) {
			statuses = append(append([]string{}, statuses...), opts.Status)
		}
		for _, st := range statuses {
			b.glob(issues, "*", "*", "*", "*", "*", "*", lit(st), "*")
		}
		b.key(cachekeys.SuperAdminStats())
		b.glob(cachekeys.HeadUnreadCount, "*")
		if opts.EntityID != "" {
			b.key(cachekeys.Issue(opts.EntityID))
			b.tag(EntityIssue, opts.EntityID)
		}
		if opts.UserID != "" {
			b.glob(cachekeys.HeadUser, lit(opts.UserID), issues, "*")
			b.key(cachekeys.UserStats(opts.UserID))
		}
		if opts.Category != "" {
			b.glob(issues, "*", "*", "*", "*", "*", "*", "*", lit(opts.Category), "*")
			b.key(cachekeys.CategoryStats(opts.Category))
		}
		if opts.Division != "" {
			b.glob(issues, "*", "*", "*", "*", "*", "*", lit(opts.Division), "*")
		}

	case EntityComment:
		b.glob(issues, "*")
		b.glob(cachekeys.HeadReviews, "admin", "*")
		if opts.ReviewID != "" {
			b.key(cachekeys.Review(opts.ReviewID))
		}
		if opts.EntityID != "" {
			b.glob(cachekeys.HeadComments, EntityIssue, lit(opts.EntityID), "*")
			b.glob(cachekeys.HeadReviews, EntityIssue, lit(opts.EntityID), "*")
			b.key(cachekeys.Issue(opts.EntityID))
			b.tag(EntityIssue, opts.EntityID)
		}
		if opts.UserID != "" {
			b.glob(cachekeys.HeadReviews, EntityUser, lit(opts.UserID), "*")
		}

	case EntityUser:
		b.glob(cachekeys.HeadUsersList, "*")
		if opts.UserID != "" {
			b.key(cachekeys.User(opts.UserID))
			b.glob(cachekeys.HeadUser, lit(opts.UserID), issues, "*")
			b.glob(issues, lit(opts.UserID), "*")
			b.key(cachekeys.UserStats(opts.UserID))
			b.glob(cachekeys.HeadUnreadCount, lit(opts.UserID), "*")
			b.tag(EntityUser, opts.UserID)
		}

	case EntityCategory:
		if opts.Category != "" {
			b.glob(issues, "*", lit(opts.Category), "*")
			b.key(cachekeys.CategoryStats(opts.Category))
		}

	case EntityDivision:
		if opts.Division != "" {
			b.glob(issues, "*", lit(opts.Division), "*")
		}

	case EntityMessage:
		if opts.EntityID == "" && opts.UserID == "" {
			b.glob(cachekeys.HeadMessages, "*")
		}
		if opts.EntityID != "" {
			b.glob(cachekeys.HeadMessages, EntityIssue, lit(opts.EntityID), "*")
		}
		if opts.UserID != "" {
			b.glob(cachekeys.HeadMessages, EntityUser, lit(opts.UserID), "*")
		}
	}

	if opts.Role == sharedDomain.RoleCategoryAdmin {
		b.glob(issues, "*", sharedDomain.RoleCategoryAdmin, "*")
	}
	b.glob(issues, "public", "*")
	b.glob(issues, "guest", "*")

	return b.plan, nil
}

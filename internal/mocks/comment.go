package mocks

import (
	"context"
	"sync"

	commentDomain "github.com/davicafu/civicreport/internal/comment/domain"
	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

type InMemoryCommentRepo struct {
	*Collection[commentDomain.Comment]
}

func NewInMemoryCommentRepo() *InMemoryCommentRepo {
	return &InMemoryCommentRepo{
		Collection: NewCollection(
			func(c commentDomain.Comment) string { return c.ID },
			commentFields,
		),
	}
}

func commentFields(c commentDomain.Comment) Fields {
	return Fields{
		sharedQuery.IDField:              c.ID,
		commentDomain.FieldIssueID:       c.IssueID,
		commentDomain.FieldIssueCategory: c.IssueCategory,
		commentDomain.FieldAuthorID:      c.AuthorID,
		"createdAt":                      c.CreatedAt,
		"updatedAt":                      c.UpdatedAt,
	}
}

func (r *InMemoryCommentRepo) Create(ctx context.Context, c *commentDomain.Comment, evt sharedDomain.OutboxEvent) error {
	return r.Insert(*c, evt, commentDomain.ErrCommentAlreadyExists)
}

func (r *InMemoryCommentRepo) Update(ctx context.Context, c *commentDomain.Comment, evt sharedDomain.OutboxEvent) error {
	return r.Replace(*c, evt, commentDomain.ErrCommentNotFound)
}

func (r *InMemoryCommentRepo) DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error {
	return r.Remove(id, evt, commentDomain.ErrCommentNotFound)
}

func (r *InMemoryCommentRepo) GetByID(ctx context.Context, id string) (*commentDomain.Comment, error) {
	c, err := r.Get(id, commentDomain.ErrCommentNotFound)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *InMemoryCommentRepo) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*commentDomain.Comment, error) {
	rows, err := r.FindPage(criteria, f)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

var _ commentDomain.CommentRepository = (*InMemoryCommentRepo)(nil)

// StaticIssueLookup resuelve incidencias desde un mapa fijo.
type StaticIssueLookup struct {
	mu     sync.Mutex
	Issues map[string]issueDomain.IssueRef
}

func NewStaticIssueLookup(refs ...issueDomain.IssueRef) *StaticIssueLookup {
	l := &StaticIssueLookup{Issues: make(map[string]issueDomain.IssueRef)}
	for _, ref := range refs {
		l.Issues[ref.ID] = ref
	}
	return l
}

func (l *StaticIssueLookup) Lookup(ctx context.Context, id string) (issueDomain.IssueRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref, ok := l.Issues[id]
	if !ok {
		return issueDomain.IssueRef{}, issueDomain.ErrIssueNotFound
	}
	return ref, nil
}

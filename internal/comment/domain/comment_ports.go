package domain

import (
	"context"
	"errors"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

var (
	ErrCommentNotFound      = errors.New("comment not found")
	ErrCommentAlreadyExists = errors.New("comment already exists")
	ErrTextRequired         = errors.New("text is required")
	ErrInvalidRating        = errors.New("rating must be between 0 and 5")
)

type CommentRepository interface {
	Create(ctx context.Context, c *Comment, evt sharedDomain.OutboxEvent) error
	Update(ctx context.Context, c *Comment, evt sharedDomain.OutboxEvent) error
	DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*Comment, error)
	ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*Comment, error)
}

// IssueLookup resuelve la incidencia comentada. Devuelve issueDomain.ErrIssueNotFound si no existe.
type IssueLookup interface {
	Lookup(ctx context.Context, id string) (issueDomain.IssueRef, error)
}

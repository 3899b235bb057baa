package domain

import (
	"context"
	"errors"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrMessageAlreadyExists = errors.New("message already exists")
	ErrBodyRequired         = errors.New("body is required")
	ErrRecipientRequired    = errors.New("recipient is required")
	ErrSelfMessage          = errors.New("cannot message yourself")
)

// MessageRepository guarda cada escritura junto a sus eventos: uno por bandeja afectada.
type MessageRepository interface {
	Create(ctx context.Context, m *Message, evts ...sharedDomain.OutboxEvent) error
	// MarkRead persiste ReadAt.
	MarkRead(ctx context.Context, m *Message, evts ...sharedDomain.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*Message, error)
}

// IssueLookup resuelve la incidencia sobre la que se escribe.
type IssueLookup interface {
	Lookup(ctx context.Context, id string) (issueDomain.IssueRef, error)
}

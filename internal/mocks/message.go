package mocks

import (
	"context"

	messageDomain "github.com/davicafu/civicreport/internal/message/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

type InMemoryMessageRepo struct {
	*Collection[messageDomain.Message]
}

func NewInMemoryMessageRepo() *InMemoryMessageRepo {
	return &InMemoryMessageRepo{
		Collection: NewCollection(
			func(m messageDomain.Message) string { return m.ID },
			messageFields,
		),
	}
}

func messageFields(m messageDomain.Message) Fields {
	return Fields{
		sharedQuery.IDField:            m.ID,
		messageDomain.FieldIssueID:     m.IssueID,
		messageDomain.FieldSenderID:    m.SenderID,
		messageDomain.FieldRecipientID: m.RecipientID,
		"createdAt":                    m.CreatedAt,
	}
}

func split(evts []sharedDomain.OutboxEvent) (sharedDomain.OutboxEvent, []sharedDomain.OutboxEvent) {
	if len(evts) == 0 {
		return sharedDomain.OutboxEvent{}, nil
	}
	return evts[0], evts[1:]
}

func (r *InMemoryMessageRepo) Create(ctx context.Context, m *messageDomain.Message, evts ...sharedDomain.OutboxEvent) error {
	first, rest := split(evts)
	if err := r.Insert(*m, first, messageDomain.ErrMessageAlreadyExists); err != nil {
		return err
	}
	r.Record(rest...)
	return nil
}

func (r *InMemoryMessageRepo) MarkRead(ctx context.Context, m *messageDomain.Message, evts ...sharedDomain.OutboxEvent) error {
	first, rest := split(evts)
	if err := r.Replace(*m, first, messageDomain.ErrMessageNotFound); err != nil {
		return err
	}
	r.Record(rest...)
	return nil
}

func (r *InMemoryMessageRepo) GetByID(ctx context.Context, id string) (*messageDomain.Message, error) {
	m, err := r.Get(id, messageDomain.ErrMessageNotFound)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *InMemoryMessageRepo) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*messageDomain.Message, error) {
	rows, err := r.FindPage(criteria, f)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

var _ messageDomain.MessageRepository = (*InMemoryMessageRepo)(nil)

package mocks

import (
	"context"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// InMemoryIssueRepo guarda copias de las incidencias, igual que un almacén real.
type InMemoryIssueRepo struct {
	*Collection[issueDomain.Issue]
}

func NewInMemoryIssueRepo() *InMemoryIssueRepo {
	return &InMemoryIssueRepo{
		Collection: NewCollection(
			func(i issueDomain.Issue) string { return i.ID },
			issueFields,
		),
	}
}

func issueFields(i issueDomain.Issue) Fields {
	return Fields{
		sharedQuery.IDField:          i.ID,
		issueDomain.FieldTitle:       i.Title,
		issueDomain.FieldDescription: i.Description,
		issueDomain.FieldCategory:    i.Category,
		issueDomain.FieldDivision:    i.Division,
		issueDomain.FieldStatus:      i.Status,
		issueDomain.FieldReporterID:  i.ReporterID,
		issueDomain.FieldReadBy:      append([]string{}, i.ReadBy...),
		"createdAt":                  i.CreatedAt,
		"updatedAt":                  i.UpdatedAt,
	}
}

func (r *InMemoryIssueRepo) Create(ctx context.Context, i *issueDomain.Issue, evt sharedDomain.OutboxEvent) error {
	return r.Insert(*i, evt, issueDomain.ErrIssueAlreadyExists)
}

// Update conserva readBy, como el $set del repositorio real.
func (r *InMemoryIssueRepo) Update(ctx context.Context, i *issueDomain.Issue, evt sharedDomain.OutboxEvent) error {
	current, err := r.Get(i.ID, issueDomain.ErrIssueNotFound)
	if err != nil {
		return err
	}
	next := *i
	next.ReadBy = current.ReadBy
	return r.Replace(next, evt, issueDomain.ErrIssueNotFound)
}

func (r *InMemoryIssueRepo) DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error {
	return r.Remove(id, evt, issueDomain.ErrIssueNotFound)
}

func (r *InMemoryIssueRepo) GetByID(ctx context.Context, id string) (*issueDomain.Issue, error) {
	i, err := r.Get(id, issueDomain.ErrIssueNotFound)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InMemoryIssueRepo) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*issueDomain.Issue, error) {
	rows, err := r.FindPage(criteria, f)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

func (r *InMemoryIssueRepo) Count(ctx context.Context, criteria sharedDomain.Criteria) (int64, error) {
	return r.Collection.Count(criteria)
}

func (r *InMemoryIssueRepo) CountBy(ctx context.Context, criteria sharedDomain.Criteria, field string) (map[string]int64, error) {
	return r.Collection.CountBy(criteria, field)
}

func (r *InMemoryIssueRepo) MarkRead(ctx context.Context, id, userID string) error {
	i, err := r.Get(id, issueDomain.ErrIssueNotFound)
	if err != nil {
		return err
	}
	if i.IsReadBy(userID) {
		return nil
	}
	i.ReadBy = append(append([]string{}, i.ReadBy...), userID)
	return r.Replace(i, sharedDomain.OutboxEvent{}, issueDomain.ErrIssueNotFound)
}

// Seed inserta incidencias sin evento (preparación de tests).
func (r *InMemoryIssueRepo) Seed(issues ...*issueDomain.Issue) {
	for _, i := range issues {
		_ = r.Insert(*i, sharedDomain.OutboxEvent{}, issueDomain.ErrIssueAlreadyExists)
	}
}

var _ issueDomain.IssueRepository = (*InMemoryIssueRepo)(nil)

package mocks

import (
	"context"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
	userDomain "github.com/davicafu/civicreport/internal/user/domain"
)

// InMemoryUserRepo mantiene el índice único de email igual que Mongo.
type InMemoryUserRepo struct {
	*Collection[userDomain.User]
}

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		Collection: NewCollection(
			func(u userDomain.User) string { return u.ID },
			userFields,
		),
	}
}

func userFields(u userDomain.User) Fields {
	return Fields{
		sharedQuery.IDField:   u.ID,
		userDomain.FieldEmail: u.Email,
		userDomain.FieldRole:  u.Role,
		"category":            u.Category,
		"division":            u.Division,
		"createdAt":           u.CreatedAt,
		"updatedAt":           u.UpdatedAt,
	}
}

func (r *InMemoryUserRepo) Create(ctx context.Context, u *userDomain.User, evt sharedDomain.OutboxEvent) error {
	n, err := r.Collection.Count(userDomain.EmailCriteria{Email: u.Email})
	if err != nil {
		return err
	}
	if n > 0 {
		return userDomain.ErrUserAlreadyExists
	}
	return r.Insert(*u, evt, userDomain.ErrUserAlreadyExists)
}

func (r *InMemoryUserRepo) Update(ctx context.Context, u *userDomain.User, evt sharedDomain.OutboxEvent) error {
	return r.Replace(*u, evt, userDomain.ErrUserNotFound)
}

func (r *InMemoryUserRepo) DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error {
	return r.Remove(id, evt, userDomain.ErrUserNotFound)
}

func (r *InMemoryUserRepo) GetByID(ctx context.Context, id string) (*userDomain.User, error) {
	u, err := r.Get(id, userDomain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *InMemoryUserRepo) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*userDomain.User, error) {
	rows, err := r.FindPage(criteria, f)
	if err != nil {
		return nil, err
	}
	return pointers(rows), nil
}

var _ userDomain.UserRepository = (*InMemoryUserRepo)(nil)

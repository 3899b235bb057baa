package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/civicreport/internal/shared/cachekeys"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedCache "github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/civicreport/internal/shared/infra/utils"
	"github.com/davicafu/civicreport/internal/user/domain"
)

const (
	listTTL    = 600
	profileTTL = 600
)

type UserPage = sharedQuery.PaginationResult[*domain.User]

// UserService define los casos de uso relacionados con User.
type UserService struct {
	repo        domain.UserRepository
	cache       sharedCache.Cache
	invalidator invalidation.Invalidator
	log         *zap.Logger
}

// NewUserService constructor
func NewUserService(repo domain.UserRepository, cache sharedCache.Cache, invalidator invalidation.Invalidator, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		repo:        repo,
		cache:       cache,
		invalidator: invalidator,
		log:         log,
	}
}

// ListUsers lista usuarios, opcionalmente de un rol.
func (s *UserService) ListUsers(ctx context.Context, role string, req sharedQuery.PaginationRequest) (UserPage, bool, error) {
	if role != "" && !sharedDomain.ValidRole(role) {
		return UserPage{}, false, domain.ErrInvalidRole
	}
	f := sharedQuery.CalculatePagination(req)
	key := cachekeys.UsersList(role, cachekeys.PageOf(f))

	var criteria sharedDomain.Criteria
	if role != "" {
		criteria = domain.RoleCriteria{Role: role}
	}
	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (UserPage, error) {
		rows, err := s.repo.ListPage(ctx, criteria, f)
		if err != nil {
			s.log.Error("Failed to list users", zap.String("role", role), zap.Error(err))
			return UserPage{}, err
		}
		return sharedQuery.BuildPageResult(rows, f), nil
	})
}

// GetUser obtiene un usuario (primero intenta desde cache).
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, bool, error) {
	if !sharedDomain.ValidID(id) {
		return nil, false, domain.ErrUserNotFound
	}
	return sharedCache.ReadThrough(ctx, s.cache, cachekeys.User(id).String(), profileTTL, s.log, func(ctx context.Context) (*domain.User, error) {
		return s.fetch(ctx, id)
	}, cachekeys.Tag(invalidation.EntityUser, id))
}

// Me devuelve el perfil de quien hace la petición.
func (s *UserService) Me(ctx context.Context, viewer sharedDomain.Viewer) (*domain.User, bool, error) {
	return s.GetUser(ctx, viewer.UserID)
}

// fetch va al repo con reintentos; ErrUserNotFound no se reintenta.
func (s *UserService) fetch(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func(ctx context.Context) error {
		u, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, domain.ErrUserNotFound) {
			return sharedUtils.Permanent(err)
		}
		user = u
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error("Failed to fetch user", zap.String("user_id", id), zap.Error(err))
		}
		return nil, err
	}
	return user, nil
}

type CreateUserInput struct {
	Name     string
	Email    string
	Role     string
	Category string
	Division string
}

type UpdateUserInput struct {
	Name     *string
	Role     *string
	Category *string
	Division *string
}

func (s *UserService) CreateUser(ctx context.Context, viewer sharedDomain.Viewer, in CreateUserInput) (*domain.User, error) {
	user, err := domain.NewUser(in.Name, in.Email, in.Role, in.Category, in.Division)
	if err != nil {
		return nil, err
	}

	opts := optionsFor(viewer, user)
	evt := sharedDomain.NewOutboxEvent(domain.AggregateType, user.ID, domain.UserCreated, opts.Event())
	if err := s.repo.Create(ctx, user, evt); err != nil {
		if !errors.Is(err, domain.ErrUserAlreadyExists) {
			s.log.Error("Failed to create user", zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("User created", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return user, s.invalidate(ctx, opts)
}

// UpdateUser cambia perfil, rol o ámbito. Un cambio de rol cambia las vistas del
// propio usuario, de ahí que se purguen también sus listados y contadores.
func (s *UserService) UpdateUser(ctx context.Context, viewer sharedDomain.Viewer, id string, in UpdateUserInput) (*domain.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := user.Update(in.Name, in.Role, in.Category, in.Division); err != nil {
		return nil, err
	}

	opts := optionsFor(viewer, user)
	evt := sharedDomain.NewOutboxEvent(domain.AggregateType, user.ID, domain.UserUpdated, opts.Event())
	if err := s.repo.Update(ctx, user, evt); err != nil {
		s.log.Error("Failed to update user", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	return user, s.invalidate(ctx, opts)
}

func (s *UserService) DeleteUser(ctx context.Context, viewer sharedDomain.Viewer, id string) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	opts := optionsFor(viewer, user)
	evt := sharedDomain.NewOutboxEvent(domain.AggregateType, user.ID, domain.UserDeleted, opts.Event())
	if err := s.repo.DeleteByID(ctx, id, evt); err != nil {
		s.log.Error("Failed to delete user", zap.String("user_id", id), zap.Error(err))
		return err
	}
	return s.invalidate(ctx, opts)
}

func (s *UserService) load(ctx context.Context, id string) (*domain.User, error) {
	if !sharedDomain.ValidID(id) {
		return nil, domain.ErrUserNotFound
	}
	return s.fetch(ctx, id)
}

func optionsFor(viewer sharedDomain.Viewer, u *domain.User) invalidation.Options {
	return invalidation.Options{
		Entity:   invalidation.EntityUser,
		EntityID: u.ID,
		UserID:   u.ID,
		Category: u.Category,
		Division: u.Division,
		Role:     viewer.Role,
	}
}

func (s *UserService) invalidate(ctx context.Context, opts invalidation.Options) error {
	if s.invalidator == nil {
		return nil
	}
	_, err := s.invalidator.Invalidate(ctx, opts)
	return err
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	"github.com/davicafu/civicreport/internal/shared/cachekeys"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedCache "github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/civicreport/internal/shared/infra/utils"
)

const (
	listTTL   = 600
	detailTTL = 600
	statsTTL  = 600

	analyticsWindow = 30 * 24 * time.Hour
)

// IssuePage es la página que devuelven los listados de incidencias.
type IssuePage = sharedQuery.PaginationResult[*issueDomain.Issue]

// IssueService define los casos de uso de las incidencias.
// Toda escritura sigue el mismo orden: datastore (con outbox) y después invalidación.
type IssueService struct {
	repo        issueDomain.IssueRepository
	cache       sharedCache.Cache
	invalidator invalidation.Invalidator
	analytics   issueDomain.IssueAnalyticsRepository
	log         *zap.Logger
}

func NewIssueService(repo issueDomain.IssueRepository, cache sharedCache.Cache, invalidator invalidation.Invalidator, log *zap.Logger) *IssueService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IssueService{
		repo:        repo,
		cache:       cache,
		invalidator: invalidator,
		log:         log,
	}
}

// WithAnalytics añade al resumen global las cifras de ClickHouse.
func (s *IssueService) WithAnalytics(a issueDomain.IssueAnalyticsRepository) *IssueService {
	s.analytics = a
	return s
}

// CreateIssueInput son los datos que aporta el ciudadano.
type CreateIssueInput struct {
	Title       string
	Description string
	Category    string
	Division    string
	Location    string
	Images      []string
}

// UpdateIssueInput lleva punteros: nil significa "sin cambios".
type UpdateIssueInput struct {
	Title       *string
	Description *string
	Division    *string
	Location    *string
}

// ---------- Lecturas ----------

// ListIssues devuelve una página del listado general. Un administrador de
// categoría solo ve su categoría.
func (s *IssueService) ListIssues(ctx context.Context, viewer sharedDomain.Viewer, filter issueDomain.ListFilter, req sharedQuery.PaginationRequest) (IssuePage, bool, error) {
	f := sharedQuery.CalculatePagination(req)
	scope := viewer.ScopeCategory()

	key := cachekeys.IssueList(cachekeys.IssueListScope{
		UserID:        viewer.UserID,
		Role:          viewer.Role,
		ScopeCategory: scope,
		Status:        filter.Status,
		Division:      filter.Division,
		Category:      filter.Category,
		Search:        filter.Search,
	}, cachekeys.PageOf(f))

	criteria := filter.Criteria()
	if scope != "" {
		criteria = sharedDomain.And(criteria, issueDomain.CategoryCriteria{Category: scope})
	}

	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (IssuePage, error) {
		return s.page(ctx, criteria, f)
	})
}

// ListMine devuelve las incidencias reportadas por el usuario.
func (s *IssueService) ListMine(ctx context.Context, viewer sharedDomain.Viewer, status string, req sharedQuery.PaginationRequest) (IssuePage, bool, error) {
	f := sharedQuery.CalculatePagination(req)
	key := cachekeys.UserIssues(viewer.UserID, status, cachekeys.PageOf(f))

	var criteria sharedDomain.Criteria = issueDomain.ReporterCriteria{ReporterID: viewer.UserID}
	if status != "" {
		criteria = sharedDomain.And(criteria, issueDomain.StatusCriteria{Status: status})
	}

	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (IssuePage, error) {
		return s.page(ctx, criteria, f)
	})
}

func (s *IssueService) page(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) (IssuePage, error) {
	rows, err := s.repo.ListPage(ctx, criteria, f)
	if err != nil {
		s.log.Error("Failed to list issues", zap.Error(err))
		return IssuePage{}, err
	}
	return sharedQuery.BuildPageResult(rows, f), nil
}

// GetIssue obtiene una incidencia por id con read-through y reintentos.
func (s *IssueService) GetIssue(ctx context.Context, id string) (*issueDomain.Issue, bool, error) {
	if !sharedDomain.ValidID(id) {
		return nil, false, issueDomain.ErrIssueNotFound
	}
	return sharedCache.ReadThrough(ctx, s.cache, cachekeys.Issue(id).String(), detailTTL, s.log, func(ctx context.Context) (*issueDomain.Issue, error) {
		return s.fetch(ctx, id)
	})
}

// fetch va siempre al repositorio. ErrIssueNotFound no se reintenta.
func (s *IssueService) fetch(ctx context.Context, id string) (*issueDomain.Issue, error) {
	var issue *issueDomain.Issue
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func(ctx context.Context) error {
		i, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, issueDomain.ErrIssueNotFound) {
			return sharedUtils.Permanent(err)
		}
		issue = i
		return err
	})

	if err != nil {
		if errors.Is(err, issueDomain.ErrIssueNotFound) {
			s.log.Warn("Issue not found", zap.String("issue_id", id))
		} else {
			s.log.Error("Failed to fetch issue", zap.String("issue_id", id), zap.Error(err))
		}
		return nil, err
	}
	return issue, nil
}

// Lookup devuelve los datos de una incidencia que necesitan otros contextos.
func (s *IssueService) Lookup(ctx context.Context, id string) (issueDomain.IssueRef, error) {
	issue, _, err := s.GetIssue(ctx, id)
	if err != nil {
		return issueDomain.IssueRef{}, err
	}
	return issue.Ref(), nil
}

// UnreadCount cuenta las incidencias que el usuario no ha marcado como leídas,
// dentro de su categoría si es administrador de categoría.
func (s *IssueService) UnreadCount(ctx context.Context, viewer sharedDomain.Viewer) (int64, bool, error) {
	scope := viewer.ScopeCategory()
	key := cachekeys.UnreadIssuesCount(viewer.UserID, viewer.Role, scope)

	var criteria sharedDomain.Criteria = issueDomain.UnreadByCriteria{UserID: viewer.UserID}
	if scope != "" {
		criteria = sharedDomain.And(criteria, issueDomain.CategoryCriteria{Category: scope})
	}

	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (int64, error) {
		return s.repo.Count(ctx, criteria)
	})
}

// ---------- Estadísticas ----------

func (s *IssueService) UserStats(ctx context.Context, userID string) (issueDomain.UserStats, bool, error) {
	return sharedCache.ReadThrough(ctx, s.cache, cachekeys.UserStats(userID).String(), statsTTL, s.log, func(ctx context.Context) (issueDomain.UserStats, error) {
		byStatus, err := s.repo.CountBy(ctx, issueDomain.ReporterCriteria{ReporterID: userID}, issueDomain.FieldStatus)
		if err != nil {
			return issueDomain.UserStats{}, err
		}
		return issueDomain.UserStats{UserID: userID, Total: sum(byStatus), ByStatus: byStatus}, nil
	})
}

func (s *IssueService) CategoryStats(ctx context.Context, category string) (issueDomain.CategoryStats, bool, error) {
	if !sharedDomain.ValidCategory(category) {
		return issueDomain.CategoryStats{}, false, issueDomain.ErrInvalidCategory
	}
	return sharedCache.ReadThrough(ctx, s.cache, cachekeys.CategoryStats(category).String(), statsTTL, s.log, func(ctx context.Context) (issueDomain.CategoryStats, error) {
		criteria := issueDomain.CategoryCriteria{Category: category}
		byStatus, err := s.repo.CountBy(ctx, criteria, issueDomain.FieldStatus)
		if err != nil {
			return issueDomain.CategoryStats{}, err
		}
		byDivision, err := s.repo.CountBy(ctx, criteria, issueDomain.FieldDivision)
		if err != nil {
			return issueDomain.CategoryStats{}, err
		}
		return issueDomain.CategoryStats{
			Category:   category,
			Total:      sum(byStatus),
			ByStatus:   byStatus,
			ByDivision: byDivision,
		}, nil
	})
}

// Overview es el resumen del superadministrador. La analítica es opcional: si
// falla se registra y el resumen sale sin ella.
func (s *IssueService) Overview(ctx context.Context) (issueDomain.Overview, bool, error) {
	return sharedCache.ReadThrough(ctx, s.cache, cachekeys.SuperAdminStats().String(), statsTTL, s.log, func(ctx context.Context) (issueDomain.Overview, error) {
		byStatus, err := s.repo.CountBy(ctx, nil, issueDomain.FieldStatus)
		if err != nil {
			return issueDomain.Overview{}, err
		}
		byCategory, err := s.repo.CountBy(ctx, nil, issueDomain.FieldCategory)
		if err != nil {
			return issueDomain.Overview{}, err
		}
		return issueDomain.Overview{
			Total:      sum(byStatus),
			ByStatus:   byStatus,
			ByCategory: byCategory,
			Analytics:  s.analyticsReport(ctx),
		}, nil
	})
}

func (s *IssueService) analyticsReport(ctx context.Context) *issueDomain.AnalyticsReport {
	if s.analytics == nil {
		return nil
	}
	to := sharedDomain.Now()
	from := to.Add(-analyticsWindow)

	avg, err := s.analytics.GetAverageResolutionTime(ctx, from, to)
	if err != nil {
		s.log.Warn("Analytics unavailable", zap.Error(err))
		return nil
	}
	trend, err := s.analytics.GetDailyTrend(ctx, from, to)
	if err != nil {
		s.log.Warn("Analytics unavailable", zap.Error(err))
		return nil
	}
	return &issueDomain.AnalyticsReport{
		From:                  from,
		To:                    to,
		AverageResolutionSecs: avg.Seconds(),
		DailyTrend:            trend,
	}
}

func sum(m map[string]int64) int64 {
	var total int64
	for _, n := range m {
		total += n
	}
	return total
}

// ---------- Escrituras ----------

// CreateIssue guarda la incidencia con su evento y después invalida. Si solo
// falla la invalidación se devuelve la incidencia junto al error.
func (s *IssueService) CreateIssue(ctx context.Context, viewer sharedDomain.Viewer, in CreateIssueInput) (*issueDomain.Issue, error) {
	issue, err := issueDomain.NewIssue(viewer.UserID, in.Title, in.Description, in.Category, in.Division, in.Location, in.Images)
	if err != nil {
		return nil, err
	}

	opts := s.optionsFor(viewer, issue)
	evt := sharedDomain.NewOutboxEvent(issueDomain.AggregateType, issue.ID, issueDomain.IssueCreated, opts.Event())
	if err := s.repo.Create(ctx, issue, evt); err != nil {
		s.log.Error("Failed to create issue", zap.Error(err))
		return nil, err
	}

	return issue, s.invalidate(ctx, opts)
}

// UpdateIssue edita los campos descriptivos.
func (s *IssueService) UpdateIssue(ctx context.Context, viewer sharedDomain.Viewer, id string, in UpdateIssueInput) (*issueDomain.Issue, error) {
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	oldDivision := issue.Division
	if err := issue.Update(in.Title, in.Description, in.Division, in.Location); err != nil {
		return nil, err
	}

	opts := s.optionsFor(viewer, issue)
	evt := sharedDomain.NewOutboxEvent(issueDomain.AggregateType, issue.ID, issueDomain.IssueUpdated, opts.Event())
	if err := s.repo.Update(ctx, issue, evt); err != nil {
		s.log.Error("Failed to update issue", zap.String("issue_id", id), zap.Error(err))
		return nil, err
	}

	if err := s.invalidate(ctx, opts); err != nil {
		return issue, err
	}
	// Las vistas filtradas por la división anterior también quedan obsoletas.
	if oldDivision != issue.Division {
		return issue, s.invalidate(ctx, invalidation.Options{Entity: invalidation.EntityDivision, Division: oldDivision})
	}
	return issue, nil
}

// ChangeStatus cambia el estado con una nota opcional del administrador.
func (s *IssueService) ChangeStatus(ctx context.Context, viewer sharedDomain.Viewer, id, status, note string) (*issueDomain.Issue, error) {
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := issue.ChangeStatus(status, note); err != nil {
		return nil, err
	}

	opts := s.optionsFor(viewer, issue)
	evt := sharedDomain.NewOutboxEvent(issueDomain.AggregateType, issue.ID, issueDomain.IssueStatusChanged, opts.Event())
	if err := s.repo.Update(ctx, issue, evt); err != nil {
		s.log.Error("Failed to change issue status", zap.String("issue_id", id), zap.Error(err))
		return nil, err
	}

	s.log.Info("Issue status changed",
		zap.String("issue_id", id),
		zap.String("status", status),
		zap.String("by", viewer.UserID))
	return issue, s.invalidate(ctx, opts)
}

// DeleteIssue borra la incidencia.
func (s *IssueService) DeleteIssue(ctx context.Context, viewer sharedDomain.Viewer, id string) error {
	issue, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	opts := s.optionsFor(viewer, issue)
	evt := sharedDomain.NewOutboxEvent(issueDomain.AggregateType, issue.ID, issueDomain.IssueDeleted, opts.Event())
	if err := s.repo.DeleteByID(ctx, id, evt); err != nil {
		s.log.Error("Failed to delete issue", zap.String("issue_id", id), zap.Error(err))
		return err
	}
	return s.invalidate(ctx, opts)
}

// MarkRead registra que el usuario vio la incidencia. Solo cambia su contador
// de no leídas, así que basta con borrar esa clave.
func (s *IssueService) MarkRead(ctx context.Context, viewer sharedDomain.Viewer, id string) error {
	if !sharedDomain.ValidID(id) {
		return issueDomain.ErrIssueNotFound
	}
	if err := s.repo.MarkRead(ctx, id, viewer.UserID); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	key := cachekeys.UnreadIssuesCount(viewer.UserID, viewer.Role, viewer.ScopeCategory())
	if err := s.cache.Delete(ctx, key.String()); err != nil {
		s.log.Error("Failed to drop unread counter", zap.String("key", key.String()), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", invalidation.ErrCacheInvalidation, key.String(), err)
	}
	return nil
}

func (s *IssueService) load(ctx context.Context, id string) (*issueDomain.Issue, error) {
	if !sharedDomain.ValidID(id) {
		return nil, issueDomain.ErrIssueNotFound
	}
	return s.fetch(ctx, id)
}

func (s *IssueService) optionsFor(viewer sharedDomain.Viewer, i *issueDomain.Issue) invalidation.Options {
	return invalidation.Options{
		Entity:   invalidation.EntityIssue,
		EntityID: i.ID,
		UserID:   i.ReporterID,
		Category: i.Category,
		Division: i.Division,
		Status:   i.Status,
		Role:     viewer.Role,
	}
}

func (s *IssueService) invalidate(ctx context.Context, opts invalidation.Options) error {
	if s.invalidator == nil {
		return nil
	}
	_, err := s.invalidator.Invalidate(ctx, opts)
	return err
}

package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	commentDomain "github.com/davicafu/civicreport/internal/comment/domain"
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
)

type CommentPage = sharedQuery.PaginationResult[*commentDomain.Comment]

// CommentService define los casos de uso de los comentarios.
type CommentService struct {
	repo        commentDomain.CommentRepository
	issues      commentDomain.IssueLookup
	cache       sharedCache.Cache
	invalidator invalidation.Invalidator
	log         *zap.Logger
}

func NewCommentService(repo commentDomain.CommentRepository, issues commentDomain.IssueLookup, cache sharedCache.Cache, invalidator invalidation.Invalidator, log *zap.Logger) *CommentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommentService{
		repo:        repo,
		issues:      issues,
		cache:       cache,
		invalidator: invalidator,
		log:         log,
	}
}

// ---------- Lecturas ----------

// ListByIssue devuelve los comentarios de una incidencia. Las páginas llevan el
// tag de la incidencia: al borrarla desaparecen con ella.
func (s *CommentService) ListByIssue(ctx context.Context, issueID string, req sharedQuery.PaginationRequest) (CommentPage, bool, error) {
	if !sharedDomain.ValidID(issueID) {
		return CommentPage{}, false, issueDomain.ErrIssueNotFound
	}
	f := sharedQuery.CalculatePagination(req)
	key := cachekeys.IssueReviews(issueID, cachekeys.PageOf(f))

	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (CommentPage, error) {
		return s.page(ctx, commentDomain.IssueCriteria{IssueID: issueID}, f)
	}, cachekeys.Tag(invalidation.EntityIssue, issueID))
}

// ListAdmin es la bandeja de administración; el administrador de categoría solo
// ve los comentarios de su categoría.
func (s *CommentService) ListAdmin(ctx context.Context, viewer sharedDomain.Viewer, req sharedQuery.PaginationRequest) (CommentPage, bool, error) {
	f := sharedQuery.CalculatePagination(req)
	scope := viewer.ScopeCategory()
	key := cachekeys.AdminReviews(viewer.Role, scope, cachekeys.PageOf(f))

	var criteria sharedDomain.Criteria
	if scope != "" {
		criteria = commentDomain.IssueCategoryCriteria{Category: scope}
	}
	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (CommentPage, error) {
		return s.page(ctx, criteria, f)
	})
}

// ListMine devuelve los comentarios escritos por el usuario.
func (s *CommentService) ListMine(ctx context.Context, viewer sharedDomain.Viewer, req sharedQuery.PaginationRequest) (CommentPage, bool, error) {
	f := sharedQuery.CalculatePagination(req)
	key := cachekeys.UserReviews(viewer.UserID, cachekeys.PageOf(f))

	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (CommentPage, error) {
		return s.page(ctx, commentDomain.AuthorCriteria{AuthorID: viewer.UserID}, f)
	})
}

func (s *CommentService) page(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) (CommentPage, error) {
	rows, err := s.repo.ListPage(ctx, criteria, f)
	if err != nil {
		s.log.Error("Failed to list comments", zap.Error(err))
		return CommentPage{}, err
	}
	return sharedQuery.BuildPageResult(rows, f), nil
}

// GetComment obtiene un comentario. La entrada de caché lleva el tag de su incidencia.
func (s *CommentService) GetComment(ctx context.Context, id string) (*commentDomain.Comment, bool, error) {
	if !sharedDomain.ValidID(id) {
		return nil, false, commentDomain.ErrCommentNotFound
	}
	return sharedCache.ReadThroughTagged(ctx, s.cache, cachekeys.Review(id).String(), detailTTL, s.log,
		func(ctx context.Context) (*commentDomain.Comment, error) {
			return s.fetch(ctx, id)
		},
		func(c *commentDomain.Comment) []string {
			return []string{cachekeys.Tag(invalidation.EntityIssue, c.IssueID)}
		})
}

func (s *CommentService) fetch(ctx context.Context, id string) (*commentDomain.Comment, error) {
	var comment *commentDomain.Comment
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, commentDomain.ErrCommentNotFound) {
			return sharedUtils.Permanent(err)
		}
		comment = c
		return err
	})
	if err != nil {
		if !errors.Is(err, commentDomain.ErrCommentNotFound) {
			s.log.Error("Failed to fetch comment", zap.String("comment_id", id), zap.Error(err))
		}
		return nil, err
	}
	return comment, nil
}

// ---------- Escrituras ----------

type CreateCommentInput struct {
	Text   string
	Rating int
}

type UpdateCommentInput struct {
	Text   *string
	Rating *int
}

// CreateComment comenta una incidencia existente.
func (s *CommentService) CreateComment(ctx context.Context, viewer sharedDomain.Viewer, issueID string, in CreateCommentInput) (*commentDomain.Comment, error) {
	if !sharedDomain.ValidID(issueID) {
		return nil, issueDomain.ErrIssueNotFound
	}
	issue, err := s.issues.Lookup(ctx, issueID)
	if err != nil {
		return nil, err
	}

	comment, err := commentDomain.NewComment(issue.ID, issue.Category, viewer.UserID, viewer.Role, in.Text, in.Rating)
	if err != nil {
		return nil, err
	}

	opts := optionsFor(viewer, comment)
	evt := sharedDomain.NewOutboxEvent(commentDomain.AggregateType, comment.ID, commentDomain.CommentCreated, opts.Event())
	if err := s.repo.Create(ctx, comment, evt); err != nil {
		s.log.Error("Failed to create comment", zap.String("issue_id", issueID), zap.Error(err))
		return nil, err
	}
	return comment, s.invalidate(ctx, opts)
}

func (s *CommentService) UpdateComment(ctx context.Context, viewer sharedDomain.Viewer, id string, in UpdateCommentInput) (*commentDomain.Comment, error) {
	comment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := comment.Edit(in.Text, in.Rating); err != nil {
		return nil, err
	}

	opts := optionsFor(viewer, comment)
	evt := sharedDomain.NewOutboxEvent(commentDomain.AggregateType, comment.ID, commentDomain.CommentUpdated, opts.Event())
	if err := s.repo.Update(ctx, comment, evt); err != nil {
		s.log.Error("Failed to update comment", zap.String("comment_id", id), zap.Error(err))
		return nil, err
	}
	return comment, s.invalidate(ctx, opts)
}

func (s *CommentService) DeleteComment(ctx context.Context, viewer sharedDomain.Viewer, id string) error {
	comment, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	opts := optionsFor(viewer, comment)
	evt := sharedDomain.NewOutboxEvent(commentDomain.AggregateType, comment.ID, commentDomain.CommentDeleted, opts.Event())
	if err := s.repo.DeleteByID(ctx, id, evt); err != nil {
		s.log.Error("Failed to delete comment", zap.String("comment_id", id), zap.Error(err))
		return err
	}
	return s.invalidate(ctx, opts)
}

func (s *CommentService) load(ctx context.Context, id string) (*commentDomain.Comment, error) {
	if !sharedDomain.ValidID(id) {
		return nil, commentDomain.ErrCommentNotFound
	}
	return s.fetch(ctx, id)
}

// optionsFor: el comentario cuelga de la incidencia, así que EntityID es la incidencia,
// ReviewID el propio comentario y UserID el autor.
func optionsFor(viewer sharedDomain.Viewer, c *commentDomain.Comment) invalidation.Options {
	return invalidation.Options{
		Entity:   invalidation.EntityComment,
		EntityID: c.IssueID,
		ReviewID: c.ID,
		UserID:   c.AuthorID,
		Category: c.IssueCategory,
		Role:     viewer.Role,
	}
}

func (s *CommentService) invalidate(ctx context.Context, opts invalidation.Options) error {
	if s.invalidator == nil {
		return nil
	}
	_, err := s.invalidator.Invalidate(ctx, opts)
	return err
}

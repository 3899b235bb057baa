package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	messageDomain "github.com/davicafu/civicreport/internal/message/domain"
	"github.com/davicafu/civicreport/internal/shared/cachekeys"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedCache "github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/civicreport/internal/shared/infra/utils"
)

const listTTL = 600

type MessagePage = sharedQuery.PaginationResult[*messageDomain.Message]

// MessageService gestiona la mensajería entre ciudadanos y administradores.
type MessageService struct {
	repo        messageDomain.MessageRepository
	issues      messageDomain.IssueLookup
	cache       sharedCache.Cache
	invalidator invalidation.Invalidator
	log         *zap.Logger
}

func NewMessageService(repo messageDomain.MessageRepository, issues messageDomain.IssueLookup, cache sharedCache.Cache, invalidator invalidation.Invalidator, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		repo:        repo,
		issues:      issues,
		cache:       cache,
		invalidator: invalidator,
		log:         log,
	}
}

// ListInbox devuelve los mensajes enviados y recibidos por el usuario.
func (s *MessageService) ListInbox(ctx context.Context, viewer sharedDomain.Viewer, req sharedQuery.PaginationRequest) (MessagePage, bool, error) {
	f := sharedQuery.CalculatePagination(req)
	key := cachekeys.UserMessages(viewer.UserID, cachekeys.PageOf(f))

	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (MessagePage, error) {
		return s.page(ctx, messageDomain.InboxCriteria(viewer.UserID), f)
	})
}

// ListByIssue devuelve el hilo de una incidencia, con el tag de la incidencia.
func (s *MessageService) ListByIssue(ctx context.Context, issueID string, req sharedQuery.PaginationRequest) (MessagePage, bool, error) {
	if !sharedDomain.ValidID(issueID) {
		return MessagePage{}, false, issueDomain.ErrIssueNotFound
	}
	f := sharedQuery.CalculatePagination(req)
	key := cachekeys.IssueMessages(issueID, cachekeys.PageOf(f))

	return sharedCache.ReadThrough(ctx, s.cache, key.String(), listTTL, s.log, func(ctx context.Context) (MessagePage, error) {
		return s.page(ctx, messageDomain.IssueCriteria{IssueID: issueID}, f)
	}, cachekeys.Tag(invalidation.EntityIssue, issueID))
}

func (s *MessageService) page(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) (MessagePage, error) {
	rows, err := s.repo.ListPage(ctx, criteria, f)
	if err != nil {
		s.log.Error("Failed to list messages", zap.Error(err))
		return MessagePage{}, err
	}
	return sharedQuery.BuildPageResult(rows, f), nil
}

type SendMessageInput struct {
	RecipientID string
	IssueID     string
	Body        string
}

// SendMessage envía un mensaje. Si va sobre una incidencia y no trae
// destinatario, se entrega a quien la reportó.
func (s *MessageService) SendMessage(ctx context.Context, viewer sharedDomain.Viewer, in SendMessageInput) (*messageDomain.Message, error) {
	recipient := in.RecipientID
	if in.IssueID != "" {
		if !sharedDomain.ValidID(in.IssueID) {
			return nil, issueDomain.ErrIssueNotFound
		}
		issue, err := s.issues.Lookup(ctx, in.IssueID)
		if err != nil {
			return nil, err
		}
		recipient = sharedUtils.FirstNonEmpty(recipient, issue.ReporterID)
	}

	msg, err := messageDomain.NewMessage(in.IssueID, viewer.UserID, viewer.Role, recipient, in.Body)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, msg, s.events(viewer, msg, messageDomain.MessageSent)...); err != nil {
		s.log.Error("Failed to send message", zap.Error(err))
		return nil, err
	}
	return msg, s.invalidate(ctx, viewer, msg)
}

// MarkRead marca el mensaje como leído. Solo el destinatario puede hacerlo y
// repetirlo no genera evento.
func (s *MessageService) MarkRead(ctx context.Context, viewer sharedDomain.Viewer, id string) (*messageDomain.Message, error) {
	if !sharedDomain.ValidID(id) {
		return nil, messageDomain.ErrMessageNotFound
	}
	msg, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID != viewer.UserID {
		return nil, messageDomain.ErrMessageNotFound
	}
	if !msg.MarkRead() {
		return msg, nil
	}

	if err := s.repo.MarkRead(ctx, msg, s.events(viewer, msg, messageDomain.MessageRead)...); err != nil {
		s.log.Error("Failed to mark message as read", zap.String("message_id", id), zap.Error(err))
		return nil, err
	}
	return msg, s.invalidate(ctx, viewer, msg)
}

func (s *MessageService) fetch(ctx context.Context, id string) (*messageDomain.Message, error) {
	var msg *messageDomain.Message
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func(ctx context.Context) error {
		m, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, messageDomain.ErrMessageNotFound) {
			return sharedUtils.Permanent(err)
		}
		msg = m
		return err
	})
	return msg, err
}

func (s *MessageService) options(viewer sharedDomain.Viewer, m *messageDomain.Message, userID string) invalidation.Options {
	return invalidation.Options{
		Entity:   invalidation.EntityMessage,
		EntityID: m.IssueID,
		UserID:   userID,
		Role:     viewer.Role,
	}
}

// events genera un evento por participante: cada uno lleva la bandeja que deja obsoleta.
func (s *MessageService) events(viewer sharedDomain.Viewer, m *messageDomain.Message, eventType string) []sharedDomain.OutboxEvent {
	out := make([]sharedDomain.OutboxEvent, 0, 2)
	for _, uid := range m.Participants() {
		out = append(out, sharedDomain.NewOutboxEvent(messageDomain.AggregateType, m.ID, eventType, s.options(viewer, m, uid).Event()))
	}
	return out
}

// invalidate purga las bandejas de los dos participantes y el hilo de la incidencia.
func (s *MessageService) invalidate(ctx context.Context, viewer sharedDomain.Viewer, m *messageDomain.Message) error {
	if s.invalidator == nil {
		return nil
	}
	var errs []error
	for _, uid := range m.Participants() {
		if _, err := s.invalidator.Invalidate(ctx, s.options(viewer, m, uid)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

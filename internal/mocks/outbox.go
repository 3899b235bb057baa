package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
)

// MockOutboxRepository simula el repositorio outbox.
type MockOutboxRepository struct {
	mock.Mock
}

var _ sharedDomain.OutboxRepository = (*MockOutboxRepository)(nil)

func (m *MockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher simula un publisher.
type MockPublisher struct {
	mock.Mock
}

var _ sharedBus.EventBus = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, topic string, event interface{}) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

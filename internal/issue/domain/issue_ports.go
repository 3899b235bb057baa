package domain

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

var (
	ErrIssueNotFound      = errors.New("issue not found")
	ErrIssueAlreadyExists = errors.New("issue already exists")
	ErrTitleRequired      = errors.New("title is required")
	ErrDivisionRequired   = errors.New("division is required")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidStatus      = errors.New("invalid status")
)

// --- Repositorio de Issues ---
type IssueRepository interface {
	Create(ctx context.Context, i *Issue, evt sharedDomain.OutboxEvent) error
	Update(ctx context.Context, i *Issue, evt sharedDomain.OutboxEvent) error
	DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*Issue, error)
	// ListPage devuelve hasta f.FetchLimit() filas en el orden total del filtro.
	ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*Issue, error)
	Count(ctx context.Context, criteria sharedDomain.Criteria) (int64, error)
	// CountBy agrupa por el valor de field los documentos que cumplen criteria.
	CountBy(ctx context.Context, criteria sharedDomain.Criteria, field string) (map[string]int64, error)
	// MarkRead añade userID a readBy; no genera evento.
	MarkRead(ctx context.Context, id, userID string) error
}

// --- Estadísticas ---

type UserStats struct {
	UserID   string           `json:"userId"`
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

type CategoryStats struct {
	Category   string           `json:"category"`
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByDivision map[string]int64 `json:"byDivision"`
}

type Overview struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByCategory map[string]int64 `json:"byCategory"`
	Analytics  *AnalyticsReport `json:"analytics,omitempty"`
}

// --- Analítica ---

// IssueLogEntry es una fila del registro de eventos de incidencias.
type IssueLogEntry struct {
	IssueID    string
	EventType  string
	Category   string
	Division   string
	Status     string
	ReporterID string
	EventTime  time.Time
}

// DTO para transportar los resultados de la consulta de tendencia.
type DailyIssueTrend struct {
	Day           time.Time `json:"day"`
	CreatedCount  int       `json:"created"`
	ResolvedCount int       `json:"resolved"`
}

type AnalyticsReport struct {
	From                  time.Time         `json:"from"`
	To                    time.Time         `json:"to"`
	AverageResolutionSecs float64           `json:"averageResolutionSeconds"`
	DailyTrend            []DailyIssueTrend `json:"dailyTrend"`
}

type IssueAnalyticsRepository interface {
	LogBatch(ctx context.Context, entries []IssueLogEntry) error
	GetAverageResolutionTime(ctx context.Context, start, end time.Time) (time.Duration, error)
	GetDailyTrend(ctx context.Context, start, end time.Time) ([]DailyIssueTrend, error)
}

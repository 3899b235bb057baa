package clickhouse

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
)

func newMockRepo(t *testing.T) (*IssueAnalyticsRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewIssueAnalyticsRepoFromDB(db), mock
}

func TestLogBatch_InsertsEveryEntryInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []issueDomain.IssueLogEntry{
		{IssueID: "i1", EventType: "issue.created", Category: "water", Division: "Dhaka", Status: "pending", ReporterID: "u1", EventTime: at},
		{IssueID: "i1", EventType: "issue.status_changed", Category: "water", Division: "Dhaka", Status: "resolved", ReporterID: "u1", EventTime: at.Add(time.Hour)},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO issues_log")
	for _, e := range entries {
		prep.ExpectExec().
			WithArgs(e.IssueID, e.EventType, e.Category, e.Division, e.Status, e.ReporterID, e.EventTime).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.LogBatch(context.Background(), entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogBatch_RollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO issues_log").
		ExpectExec().
		WillReturnError(errors.New("too many parts"))
	mock.ExpectRollback()

	err := repo.LogBatch(context.Background(), []issueDomain.IssueLogEntry{{IssueID: "i1", EventTime: time.Now()}})
	assert.ErrorContains(t, err, "i1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogBatch_EmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	assert.NoError(t, repo.LogBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDailyTrend(t *testing.T) {
	repo, mock := newMockRepo(t)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	start, end := day, day.Add(48*time.Hour)

	mock.ExpectQuery("toStartOfDay").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"day", "created", "resolved"}).
			AddRow(day, uint64(4), uint64(1)).
			AddRow(day.Add(24*time.Hour), uint64(2), uint64(3)))

	trend, err := repo.GetDailyTrend(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, issueDomain.DailyIssueTrend{Day: day, CreatedCount: 4, ResolvedCount: 1}, trend[0])
	assert.Equal(t, 3, trend[1].ResolvedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAverageResolutionTime(t *testing.T) {
	repo, mock := newMockRepo(t)
	start, end := time.Now().Add(-time.Hour), time.Now()

	mock.ExpectQuery("avg_resolution_seconds").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"avg_resolution_seconds"}).AddRow(90.5))

	avg, err := repo.GetAverageResolutionTime(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 90500*time.Millisecond, avg)

	mock.ExpectQuery("avg_resolution_seconds").
		WillReturnRows(sqlmock.NewRows([]string{"avg_resolution_seconds"}).AddRow(math.NaN()))
	avg, err = repo.GetAverageResolutionTime(context.Background(), start, end)
	require.NoError(t, err)
	assert.Zero(t, avg)
}

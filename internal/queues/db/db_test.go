package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
	"github.com/JhonAQ/te-toca-web-sub000/internal/queues/db"
)

var now = time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *db.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := bunDB.NewCreateTable().Model((*models.Queue)(nil)).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to create queues table: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })
	return &db.DB{Bun: bunDB}
}

func queue(id, company string, priority int, active bool) *models.Queue {
	return &models.Queue{
		ID: id, TenantID: "tenant-a", CompanyID: company, Name: "Queue " + id,
		Priority: priority, IsActive: active, CreatedAt: now, UpdatedAt: now,
	}
}

func TestCreateGetUpdateQueue(t *testing.T) {
	queueDB := setupTestDB(t)
	ctx := context.Background()

	q := queue("q1", "c1", 0, true)
	require.NoError(t, queueDB.CreateQueue(ctx, q))

	got, err := queueDB.GetQueueByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "Queue q1", got.Name)

	got.Name = "Ventanilla"
	got.IsActive = false
	require.NoError(t, queueDB.UpdateQueue(ctx, got))

	got, err = queueDB.GetQueueByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "Ventanilla", got.Name)
	assert.False(t, got.IsActive)

	_, err = queueDB.GetQueueByID(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListByCompany(t *testing.T) {
	queueDB := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, queueDB.CreateQueue(ctx, queue("q1", "c1", 1, true)))
	require.NoError(t, queueDB.CreateQueue(ctx, queue("q2", "c1", 5, true)))
	require.NoError(t, queueDB.CreateQueue(ctx, queue("q3", "c1", 9, false)))
	require.NoError(t, queueDB.CreateQueue(ctx, queue("q4", "c2", 9, true)))

	active, err := queueDB.ListByCompany(ctx, "c1", true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "q2", active[0].ID)

	all, err := queueDB.ListByCompany(ctx, "c1", false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tenant, err := queueDB.ListByTenant(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, tenant, 4)
}

func TestStatisticsColumns(t *testing.T) {
	queueDB := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, queueDB.CreateQueue(ctx, queue("q1", "c1", 0, true)))
	require.NoError(t, queueDB.CreateQueue(ctx, queue("q2", "c1", 0, true)))

	require.NoError(t, queueDB.SetAverageServiceTime(ctx, "q1", 7, now))
	require.NoError(t, queueDB.SetProcessedToday(ctx, "q1", 12, now))

	got, err := queueDB.GetQueueByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.AverageServiceTime)
	assert.Equal(t, 12, got.TotalProcessedToday)

	n, err := queueDB.ResetProcessedToday(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = queueDB.GetQueueByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalProcessedToday)
	assert.Equal(t, 7, got.AverageServiceTime)

	require.NoError(t, queueDB.IncrementProcessedToday(ctx, "q1", now.Add(2*time.Hour)))
	require.NoError(t, queueDB.IncrementProcessedToday(ctx, "q1", now.Add(2*time.Hour)))
	got, err = queueDB.GetQueueByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalProcessedToday)
}

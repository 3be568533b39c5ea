package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

func TestIncrementProcessedCount(t *testing.T) {
	ticketDB, _ := setupTestDB(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	require.NoError(t, ticketDB.IncrementProcessedCount(ctx, "q1", "tenant-a", day))
	require.NoError(t, ticketDB.IncrementProcessedCount(ctx, "q1", "tenant-a", day))
	require.NoError(t, ticketDB.IncrementProcessedCount(ctx, "q1", "tenant-a", next))
	require.NoError(t, ticketDB.IncrementProcessedCount(ctx, "q2", "tenant-a", day))

	counts, err := ticketDB.GetDailyCounts(ctx, "q1", day, next.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, 2, counts[0].Processed)
	assert.Equal(t, 1, counts[1].Processed)
	assert.True(t, counts[0].Date.Equal(day))

	counts, err = ticketDB.GetDailyCounts(ctx, "q1", next, next.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "tenant-a", counts[0].TenantID)
}

func TestGetTotalTicketsCount(t *testing.T) {
	ticketDB, _ := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("q1", "TT01", models.PriorityNormal, base)))
	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("q1", "TT02", models.PriorityNormal, base)))

	n, err := ticketDB.GetTotalTicketsCount(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

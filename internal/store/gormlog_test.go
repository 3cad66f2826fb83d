package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stockpulse/stockpulse/internal/types"
)

func openTestLog(t *testing.T) *GormLog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	log, err := NewGormLog(db)
	require.NoError(t, err)
	return log
}

func TestGormLogAppendAndUpdate(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	alert := buildAlert("a1", "P1")
	alert.Metadata = map[string]any{"current_stock": 5}
	require.NoError(t, log.Append(ctx, alert))

	recs, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a1", recs[0].AlertID)
	assert.Equal(t, "low_stock", recs[0].AlertType)
	assert.Equal(t, "active", recs[0].Status)
	assert.Contains(t, recs[0].Metadata, `"current_stock":5`)

	resolvedAt := time.Now()
	alert.Status = types.StatusResolved
	alert.ResolvedBy = "alice"
	alert.ResolvedAt = &resolvedAt
	require.NoError(t, log.Update(ctx, alert))

	recs, err = log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "resolved", recs[0].Status)
	assert.Equal(t, "alice", recs[0].ResolvedBy)
	require.NotNil(t, recs[0].ResolvedAt)
}

func TestGormLogRecentOrderAndLimit(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a1", "a2", "a3"} {
		alert := buildAlert(id, "P1")
		alert.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, log.Append(ctx, alert))
	}

	recs, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a3", recs[0].AlertID)
	assert.Equal(t, "a2", recs[1].AlertID)
}

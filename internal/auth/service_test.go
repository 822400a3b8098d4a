package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barq-desk/barq/internal/platform/db"
)

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUsername("  Alice\t"))
	assert.Equal(t, "", NormalizeUsername("   "))
}

func TestPurgeExpiredSessions(t *testing.T) {
	gdb, err := db.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	svc := NewService(NewGormRepository(gdb))
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, svc.RegisterSession(ctx, "old", 1, now.Add(-time.Minute), "", ""))
	require.NoError(t, svc.RegisterSession(ctx, "live", 1, now.Add(time.Hour), "10.0.0.1", "curl"))

	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	var ids []string
	require.NoError(t, gdb.Model(&db.AuthSessionModel{}).Pluck("id", &ids).Error)
	assert.Equal(t, []string{"live"}, ids)
}

package perf

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/rbac"
)

func BenchmarkMatches(b *testing.B) {
	cases := []struct{ held, requested string }{
		{"request:approve", "request:approve"},
		{"request:*", "request:approve"},
		{"request:read", "request:*"},
		{"user:read", "request:approve"},
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := cases[i%len(cases)]
		rbac.Matches(c.held, c.requested)
	}
}

func BenchmarkPermissionSetAllows(b *testing.B) {
	perms := make([]string, 0, 64)
	for i := 0; i < 60; i++ {
		perms = append(perms, fmt.Sprintf("resource%d:read", i))
	}
	perms = append(perms, "request:*")
	set := rbac.NewPermissionSet(perms...)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Allows("audit:export", "request:approve")
	}
}

func newGate(tb testing.TB) (*rbac.Gate, int64) {
	tb.Helper()
	gdb, err := db.OpenSQLite(":memory:", false)
	require.NoError(tb, err)
	service := rbac.NewService(rbac.NewGormRepository(gdb), nil)
	policy, err := rbac.DefaultPolicy()
	require.NoError(tb, err)
	_, err = service.Sync(context.Background(), policy, rbac.SyncEnsure)
	require.NoError(tb, err)

	role, err := service.RoleByName(context.Background(), "checker")
	require.NoError(tb, err)
	user := db.UserModel{Username: "carl", PasswordHash: "x", RoleID: role.ID}
	require.NoError(tb, gdb.Create(&user).Error)
	return rbac.NewGate(service, nil), user.ID
}

func BenchmarkGateCheck(b *testing.B) {
	gate, userID := newGate(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := gate.Check(ctx, userID, "request:approve"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGateCheckParallel(b *testing.B) {
	gate, userID := newGate(b)
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, _, err := gate.Check(ctx, userID, "request:approve"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// Every gate check reads the store; keep that read well under the HTTP
// latency alert threshold.
func TestGateCheckLatency(t *testing.T) {
	if testing.Short() {
		t.Skip("latency sampling skipped in short mode")
	}
	gate, userID := newGate(t)
	ctx := context.Background()

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		start := time.Now()
		_, ok, err := gate.Check(ctx, userID, "request:approve")
		require.NoError(t, err)
		require.True(t, ok)
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("gate check latency regression: p95=%s threshold=50ms", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}

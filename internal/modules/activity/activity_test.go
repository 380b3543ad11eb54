package activity

import (
	"context"
	"testing"
	"time"

	"council-bot/internal/effects"
	"council-bot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, excluded ...string) *Service {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	return New(Config{GuildID: "g", ChannelID: "general", AwardRoleID: "award", AwardHour: 6, Excluded: excluded}, store, zap.NewNop())
}

func record(t *testing.T, svc *Service, userID string, at time.Time, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		require.NoError(t, svc.RecordMessage(context.Background(), userID, at))
	}
}

func TestReport(t *testing.T) {
	svc := newTestService(t)
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record(t, svc, "u1", day, 2)
	record(t, svc, "u2", day, 5)

	report, err := svc.Report(context.Background(), Day(day), 10)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Total)
	require.Len(t, report.Top, 2)
	assert.Equal(t, "u2", report.Top[0].UserID)
}

func TestAwardOncePerDay(t *testing.T) {
	svc := newTestService(t, "bot-owner")
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record(t, svc, "bot-owner", day, 50)
	record(t, svc, "u1", day, 3)
	record(t, svc, "u2", day, 1)

	early, err := svc.Award(ctx, time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, early)

	list, err := svc.Award(ctx, time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, effects.KindGrantRole, list[0].Kind)
	assert.Equal(t, "u1", list[0].UserID)
	assert.Equal(t, effects.KindAnnounceWinners, list[1].Kind)

	again, err := svc.Award(ctx, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAwardMovesRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	record(t, svc, "u1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 3)
	record(t, svc, "u2", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), 3)

	_, err := svc.Award(ctx, time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	list, err := svc.Award(ctx, time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, effects.KindRevokeRole, list[0].Kind)
	assert.Equal(t, "u1", list[0].UserID)
	assert.Equal(t, effects.KindGrantRole, list[1].Kind)
	assert.Equal(t, "u2", list[1].UserID)
}

func TestAwardWithoutActivity(t *testing.T) {
	svc := newTestService(t)
	list, err := svc.Award(context.Background(), time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, list)
}

package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sdbrowser/internal/domain/model"
	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

func seedLineups(t *testing.T, repo *LineupRepo) {
	t.Helper()
	err := repo.Upsert(context.Background(), []model.Lineup{
		{ID: "USA-NY31587-X", Name: "Cablevision", Location: "Bethpage", Transport: "Cable"},
		{ID: "USA-OTA-10001", Name: "Antenna", Transport: "Antenna"},
	})
	require.NoError(t, err)
}

func TestLineupRepo_SelectAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLineupRepo(db)
	ctx := context.Background()
	seedLineups(t, repo)

	require.NoError(t, repo.Select(ctx, "acct-1", "USA-NY31587-X"))
	require.NoError(t, repo.Select(ctx, "acct-1", "USA-OTA-10001"))
	require.NoError(t, repo.Select(ctx, "acct-2", "USA-OTA-10001"))

	got, err := repo.ListSelected(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Antenna", got[0].Name)
	assert.Equal(t, "USA-NY31587-X", got[1].ID)
	assert.Equal(t, "Bethpage", got[1].Location)
	assert.Equal(t, "Cable", got[1].Transport)
	assert.False(t, got[1].UpdatedAt.IsZero())

	other, err := repo.ListSelected(ctx, "acct-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestLineupRepo_ListSelectedEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLineupRepo(db)

	got, err := repo.ListSelected(context.Background(), "acct-1")

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLineupRepo_UpsertRefreshes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLineupRepo(db)
	ctx := context.Background()
	seedLineups(t, repo)
	require.NoError(t, repo.Select(ctx, "acct-1", "USA-NY31587-X"))

	err := repo.Upsert(ctx, []model.Lineup{
		{ID: "USA-NY31587-X", Name: "Optimum", Location: "Bethpage", Transport: "Cable"},
	})
	require.NoError(t, err)

	got, err := repo.ListSelected(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Optimum", got[0].Name)
}

func TestLineupRepo_UpsertEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLineupRepo(db)

	assert.NoError(t, repo.Upsert(context.Background(), nil))
}

func TestLineupRepo_SelectErrors(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLineupRepo(db)
	ctx := context.Background()
	seedLineups(t, repo)

	err := repo.Select(ctx, "acct-1", "UNKNOWN")
	assert.ErrorIs(t, err, driven.ErrLineupNotFound)

	require.NoError(t, repo.Select(ctx, "acct-1", "USA-OTA-10001"))
	err = repo.Select(ctx, "acct-1", "USA-OTA-10001")
	assert.ErrorIs(t, err, driven.ErrLineupAlreadySelected)
}

func TestLineupRepo_Deselect(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLineupRepo(db)
	ctx := context.Background()
	seedLineups(t, repo)

	require.NoError(t, repo.Select(ctx, "acct-1", "USA-OTA-10001"))
	require.NoError(t, repo.Deselect(ctx, "acct-1", "USA-OTA-10001"))

	got, err := repo.ListSelected(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	err = repo.Deselect(ctx, "acct-1", "USA-OTA-10001")
	assert.ErrorIs(t, err, driven.ErrLineupNotSelected)
}

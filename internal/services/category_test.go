package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/provisioner"
	"github.com/dimitrije/teamforge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCategoryAllocator(t *testing.T, capacity int) (*CategoryAllocator, *memRepo, *provisioner.Memory) {
	t.Helper()
	repo := newMemRepo()
	prov := provisioner.NewMemory()
	logger := slog.New(slog.DiscardHandler)
	retry := retrier{attempts: 3, initial: time.Millisecond, logger: logger}
	return NewCategoryAllocator(repo, prov, capacity, "Teams", retry, logger), repo, prov
}

func TestCategoryAllocator_AllocateCreatesFirstCategory(t *testing.T) {
	a, repo, prov := setupCategoryAllocator(t, 2)

	c, err := a.Allocate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Teams 1", c.Name)
	assert.Equal(t, 0, c.TeamCount)
	assert.Equal(t, 1, prov.ParentCount())
	assert.Equal(t, "Teams 1", repo.category(c.ID).Name)
}

func TestCategoryAllocator_AllocateReusesUnfilled(t *testing.T) {
	a, _, prov := setupCategoryAllocator(t, 2)
	ctx := context.Background()

	first, err := a.Reserve(ctx)
	require.NoError(t, err)
	second, err := a.Allocate(ctx)

	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, prov.ParentCount())
}

func TestCategoryAllocator_ReserveNeverExceedsCapacity(t *testing.T) {
	a, repo, _ := setupCategoryAllocator(t, 2)
	ctx := context.Background()

	seen := map[string]int{}
	for range 5 {
		c, err := a.Reserve(ctx)
		require.NoError(t, err)
		seen[c.ID]++
	}

	assert.Len(t, seen, 3)
	for id, n := range seen {
		assert.LessOrEqual(t, n, 2)
		assert.Equal(t, n, repo.category(id).TeamCount)
	}
}

func TestCategoryAllocator_RecordTeamAdded_Full(t *testing.T) {
	a, repo, _ := setupCategoryAllocator(t, 1)
	ctx := context.Background()
	c := &models.Category{ID: "cat-1", Name: "Teams 1", TeamCount: 1}
	require.NoError(t, repo.InsertCategory(ctx, c))

	err := a.RecordTeamAdded(ctx, "cat-1")

	assert.ErrorIs(t, err, errCategoryFull)
	assert.Equal(t, 1, repo.category("cat-1").TeamCount)
}

func TestCategoryAllocator_RecordTeamRemoved_AtZero(t *testing.T) {
	a, repo, _ := setupCategoryAllocator(t, 2)
	ctx := context.Background()
	require.NoError(t, repo.InsertCategory(ctx, &models.Category{ID: "cat-1", Name: "Teams 1"}))

	err := a.RecordTeamRemoved(ctx, "cat-1")

	require.NoError(t, err)
	assert.Equal(t, 0, repo.category("cat-1").TeamCount)
}

func TestCategoryAllocator_RetriesLostRace(t *testing.T) {
	a, repo, _ := setupCategoryAllocator(t, 5)
	ctx := context.Background()
	require.NoError(t, repo.InsertCategory(ctx, &models.Category{ID: "cat-1", Name: "Teams 1", TeamCount: 2}))
	repo.staleCategoryWrites = 2

	err := a.RecordTeamAdded(ctx, "cat-1")

	require.NoError(t, err)
	assert.Equal(t, 3, repo.category("cat-1").TeamCount)
}

func TestCategoryAllocator_Contention(t *testing.T) {
	a, repo, _ := setupCategoryAllocator(t, 5)
	ctx := context.Background()
	require.NoError(t, repo.InsertCategory(ctx, &models.Category{ID: "cat-1", Name: "Teams 1", TeamCount: 2}))
	repo.staleCategoryWrites = 10

	err := a.RecordTeamAdded(ctx, "cat-1")

	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, 2, repo.category("cat-1").TeamCount)
}

func TestCategoryAllocator_LostCreateRaceDiscardsParent(t *testing.T) {
	a, repo, prov := setupCategoryAllocator(t, 2)
	repo.insertCategoryErrs = []error{store.ErrCategoryExists}

	c, err := a.Allocate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, prov.Calls(provisioner.OpDeleteParent))
	assert.Equal(t, 1, prov.ParentCount())
	assert.Equal(t, c.Name, repo.category(c.ID).Name)
}

func TestCategoryAllocator_ParentCreationFails(t *testing.T) {
	a, repo, prov := setupCategoryAllocator(t, 2)
	prov.Fail(provisioner.OpCreateParent, errors.New("upstream down"))

	_, err := a.Allocate(context.Background())

	assert.ErrorIs(t, err, ErrProvisioningFailed)
	n, _ := repo.CountCategories(context.Background())
	assert.Equal(t, 0, n)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/provisioner"
	"github.com/dimitrije/teamforge/internal/store"
)

// errCategoryFull means a category filled up between allocation and the
// count increment. The caller allocates again.
var errCategoryFull = errors.New("category full")

// CategoryAllocator places teams into capacity-bounded categories and keeps
// each category's team count.
type CategoryAllocator struct {
	store    TeamRepository
	prov     provisioner.Provisioner
	capacity int
	baseName string
	retry    retrier
	logger   *slog.Logger
}

func NewCategoryAllocator(s TeamRepository, prov provisioner.Provisioner, capacity int, baseName string, retry retrier, logger *slog.Logger) *CategoryAllocator {
	return &CategoryAllocator{
		store:    s,
		prov:     prov,
		capacity: capacity,
		baseName: baseName,
		retry:    retry,
		logger:   logger,
	}
}

// WithStore returns an allocator whose store calls go through s, typically a
// session store.
func (a *CategoryAllocator) WithStore(s TeamRepository) *CategoryAllocator {
	c := *a
	c.store = s
	return &c
}

// Allocate returns a category with room for one more team, creating a new
// parent resource and category when every existing one is full.
func (a *CategoryAllocator) Allocate(ctx context.Context) (*models.Category, error) {
	for attempt := 0; attempt < a.retry.attempts; attempt++ {
		c, err := a.store.FindUnfilledCategory(ctx, a.capacity)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, unavailable(err)
		}

		c, err = a.create(ctx)
		if errors.Is(err, store.ErrCategoryExists) {
			// another allocator created the next category first
			continue
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, ErrContention.With("could not allocate a category", nil)
}

func (a *CategoryAllocator) create(ctx context.Context) (*models.Category, error) {
	n, err := a.store.CountCategories(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	name := fmt.Sprintf("%s %d", a.baseName, n+1)

	parentID, err := a.prov.CreateParent(ctx, name)
	if err != nil {
		return nil, ErrProvisioningFailed.With("could not create category", err)
	}

	c := &models.Category{ID: parentID, Name: name}
	if err := a.store.InsertCategory(ctx, c); err != nil {
		if delErr := a.prov.DeleteParent(context.WithoutCancel(ctx), parentID); delErr != nil {
			a.logger.Error("failed to remove unused category parent", "parent_id", parentID, "error", delErr)
		}
		if errors.Is(err, store.ErrCategoryExists) {
			return nil, err
		}
		return nil, unavailable(err)
	}

	a.logger.Info("category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

// Reserve allocates a category and counts the new team in it. If the
// category fills up in between, allocation starts over.
func (a *CategoryAllocator) Reserve(ctx context.Context) (*models.Category, error) {
	for attempt := 0; attempt < a.retry.attempts; attempt++ {
		c, err := a.Allocate(ctx)
		if err != nil {
			return nil, err
		}

		err = a.RecordTeamAdded(ctx, c.ID)
		if errors.Is(err, errCategoryFull) {
			a.logger.Debug("category filled during allocation", "category_id", c.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		c.TeamCount++
		return c, nil
	}
	return nil, ErrContention.With("could not reserve a category slot", nil)
}

// RecordTeamAdded increments the category's team count. It never pushes the
// count past capacity; a full category yields errCategoryFull.
func (a *CategoryAllocator) RecordTeamAdded(ctx context.Context, categoryID string) error {
	return a.retry.conditional(ctx, "category_add", func(ctx context.Context) error {
		cur, err := a.store.FindCategory(ctx, categoryID)
		if err != nil {
			return unavailable(err)
		}
		if cur.Full(a.capacity) {
			return errCategoryFull
		}
		next := *cur
		next.TeamCount++
		return stale(a.store.ReplaceCategory(ctx, cur, &next))
	})
}

func (a *CategoryAllocator) RecordTeamRemoved(ctx context.Context, categoryID string) error {
	return a.retry.conditional(ctx, "category_remove", func(ctx context.Context) error {
		cur, err := a.store.FindCategory(ctx, categoryID)
		if err != nil {
			return unavailable(err)
		}
		if cur.TeamCount == 0 {
			a.logger.Warn("category count already zero", "category_id", categoryID)
			return nil
		}
		next := *cur
		next.TeamCount--
		return stale(a.store.ReplaceCategory(ctx, cur, &next))
	})
}

package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// catalogRoot is FRED's implicit top-level category. It has children but is
// not a category record of its own.
const catalogRoot = 0

// ResolveRoots turns configured root IDs into the IDs discovery starts from.
// The singleton [0] means "whole catalog": the children of the implicit
// root become the roots and category 0 is never resolved as a record. Any
// other list drops 0 entries and resolves each remaining ID so that a
// mistyped root fails the run before traversal starts.
func ResolveRoots(ctx context.Context, client CatalogClient, roots []int, logger *slog.Logger) ([]int, error) {
	if len(roots) == 1 && roots[0] == catalogRoot {
		children, err := client.CategoryChildren(ctx, catalogRoot)
		if err != nil {
			return nil, fmt.Errorf("sync: listing top-level categories: %w", err)
		}

		ids := make([]int, 0, len(children))
		for _, c := range children {
			ids = append(ids, c.ID)
		}

		logger.Info("resolved whole-catalog roots", slog.Int("count", len(ids)))

		if len(ids) == 0 {
			return nil, ErrNoRoots
		}

		return ids, nil
	}

	ids := make([]int, 0, len(roots))
	seen := make(map[int]bool, len(roots))

	for _, id := range roots {
		if id == catalogRoot || seen[id] {
			continue
		}

		cat, err := client.Category(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("sync: resolving root category %d: %w", id, err)
		}

		seen[id] = true
		ids = append(ids, cat.ID)
	}

	if len(ids) == 0 {
		return nil, ErrNoRoots
	}

	return ids, nil
}

// DiscoverCategories returns every category reachable from roots via
// "children of" edges, roots included, in breadth-first visit order. Each
// ID is fetched at most once no matter how many parents reference it. A
// failed children fetch aborts discovery: a partial category set would
// silently drop subtrees.
func DiscoverCategories(ctx context.Context, client CatalogClient, roots []int, logger *slog.Logger) ([]int, error) {
	visited := make(map[int]bool, len(roots))
	queue := make([]int, 0, len(roots))
	order := make([]int, 0, len(roots))

	for _, id := range roots {
		if visited[id] {
			continue
		}

		visited[id] = true
		queue = append(queue, id)
		order = append(order, id)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sync: discovery canceled: %w", err)
		}

		id := queue[0]
		queue = queue[1:]

		logger.Debug("fetching subcategories", slog.Int("category_id", id))

		children, err := client.CategoryChildren(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("sync: fetching children of category %d: %w", id, err)
		}

		for _, child := range children {
			if visited[child.ID] {
				continue
			}

			visited[child.ID] = true
			queue = append(queue, child.ID)
			order = append(order, child.ID)
		}
	}

	logger.Info("category discovery complete",
		slog.Int("roots", len(roots)),
		slog.Int("categories", len(order)),
	)

	return order, nil
}

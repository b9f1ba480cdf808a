package sync

import (
	"context"
	"fmt"

	"github.com/tonimelisma/fredsync/internal/fred"
)

// rootCategoryName is the display name of the implicit top-level category.
const rootCategoryName = "Categories"

// PrimaryCategory picks the category a series is filed under when it belongs
// to several: the one with the numerically largest ParentID. Deeper
// categories tend to have larger parent IDs, so this usually selects the
// most specific one, but it is a heuristic, not a guarantee. On ties the
// first category in the list wins.
func PrimaryCategory(cats []fred.Category) (fred.Category, error) {
	if len(cats) == 0 {
		return fred.Category{}, ErrNoCategories
	}

	best := cats[0]
	for _, c := range cats[1:] {
		if c.ParentID > best.ParentID {
			best = c
		}
	}

	return best, nil
}

// parentCategory fetches the parent record of c. The implicit root has no
// record of its own and is synthesized without a request.
func parentCategory(ctx context.Context, client CatalogClient, c fred.Category) (fred.Category, error) {
	if c.ParentID == catalogRoot {
		return fred.Category{ID: catalogRoot, ParentID: -1, Name: rootCategoryName}, nil
	}

	parent, err := client.Category(ctx, c.ParentID)
	if err != nil {
		return fred.Category{}, fmt.Errorf("sync: fetching parent category %d: %w", c.ParentID, err)
	}

	return *parent, nil
}

package fred

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// API endpoints, relative to the base URL.
const (
	endpointCategory         = "/category"
	endpointCategoryChildren = "/category/children"
	endpointCategorySeries   = "/category/series"
	endpointSeriesCategories = "/series/categories"
	endpointSeriesTags       = "/series/tags"
	endpointSeriesObs        = "/series/observations"
)

// Category returns a single category record.
func (c *Client) Category(ctx context.Context, categoryID int) (*Category, error) {
	params := url.Values{"category_id": {strconv.Itoa(categoryID)}}

	var cr categoriesResponse
	if err := c.getJSON(ctx, endpointCategory, params, &cr); err != nil {
		return nil, err
	}

	if len(cr.Categories) == 0 {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Endpoint:   endpointCategory,
			Message:    fmt.Sprintf("category %d not in response", categoryID),
			Err:        ErrNotFound,
		}
	}

	cat := cr.Categories[0].toCategory()

	c.logger.Debug("fetched category",
		slog.Int("category_id", cat.ID),
		slog.Int("parent_id", cat.ParentID),
	)

	return &cat, nil
}

// CategoryChildren returns the direct children of a category. Category 0
// is the catalog root.
func (c *Client) CategoryChildren(ctx context.Context, categoryID int) ([]Category, error) {
	params := url.Values{"category_id": {strconv.Itoa(categoryID)}}

	var cr categoriesResponse
	if err := c.getJSON(ctx, endpointCategoryChildren, params, &cr); err != nil {
		return nil, err
	}

	children := cr.toCategories()

	c.logger.Debug("fetched category children",
		slog.Int("category_id", categoryID),
		slog.Int("count", len(children)),
	)

	return children, nil
}

// SeriesCategories returns every category the series is filed under.
func (c *Client) SeriesCategories(ctx context.Context, seriesID string) ([]Category, error) {
	params := url.Values{"series_id": {seriesID}}

	var cr categoriesResponse
	if err := c.getJSON(ctx, endpointSeriesCategories, params, &cr); err != nil {
		return nil, err
	}

	return cr.toCategories(), nil
}

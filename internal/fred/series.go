package fred

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
)

// MaxPageLimit is the largest page FRED serves from /category/series.
const MaxPageLimit = 1000

// CategorySeries returns one page of the series attached to a category.
// limit is capped at MaxPageLimit. A page shorter than limit is the last.
func (c *Client) CategorySeries(ctx context.Context, categoryID, offset, limit int) ([]Series, error) {
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	params := url.Values{
		"category_id": {strconv.Itoa(categoryID)},
		"offset":      {strconv.Itoa(offset)},
		"limit":       {strconv.Itoa(limit)},
	}

	var sr seriessResponse
	if err := c.getJSON(ctx, endpointCategorySeries, params, &sr); err != nil {
		return nil, err
	}

	series := make([]Series, 0, len(sr.Series))
	for i := range sr.Series {
		series = append(series, sr.Series[i].toSeries())
	}

	c.logger.Debug("fetched category series page",
		slog.Int("category_id", categoryID),
		slog.Int("offset", offset),
		slog.Int("count", len(series)),
	)

	return series, nil
}

// SeriesTags returns the tag names attached to a series.
func (c *Client) SeriesTags(ctx context.Context, seriesID string) ([]string, error) {
	params := url.Values{"series_id": {seriesID}}

	var tr tagsResponse
	if err := c.getJSON(ctx, endpointSeriesTags, params, &tr); err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(tr.Tags))
	for _, t := range tr.Tags {
		tags = append(tags, t.Name)
	}

	return tags, nil
}

// SeriesObservations returns every observation of a series, oldest first.
func (c *Client) SeriesObservations(ctx context.Context, seriesID string) ([]Observation, error) {
	params := url.Values{
		"series_id":  {seriesID},
		"sort_order": {"asc"},
	}

	var or observationsResponse
	if err := c.getJSON(ctx, endpointSeriesObs, params, &or); err != nil {
		return nil, err
	}

	obs := make([]Observation, 0, len(or.Observations))
	for i := range or.Observations {
		obs = append(obs, or.Observations[i].toObservation())
	}

	c.logger.Debug("fetched observations",
		slog.String("series_id", seriesID),
		slog.Int("count", len(obs)),
	)

	return obs, nil
}

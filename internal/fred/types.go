package fred

import (
	"math"
	"strconv"
	"strings"
)

// DateLayout is the calendar-date format FRED uses for observation_start,
// observation_end and observation dates.
const DateLayout = "2006-01-02"

// missingValue is how FRED marks an observation with no value.
const missingValue = "."

// Category is a node in the FRED category hierarchy. ParentID is 0 for
// top-level categories, whose implicit parent is the catalog root.
type Category struct {
	ID       int
	ParentID int
	Name     string
}

// Series describes one FRED series. Two Series values with the same ID are
// the same series; all other fields are descriptive.
type Series struct {
	ID                      string
	Title                   string
	ObservationStart        string
	ObservationEnd          string // freshness marker, DateLayout
	Frequency               string
	FrequencyShort          string
	Units                   string
	UnitsShort              string
	SeasonalAdjustment      string
	SeasonalAdjustmentShort string
	LastUpdated             string
	Popularity              int
	GroupPopularity         int
	Notes                   string
}

// Observation is one dated sample of a series. Missing is set when FRED
// reported no value for the date; Value is NaN in that case.
type Observation struct {
	Date    string
	Value   float64
	Missing bool
}

// categoryResponse mirrors a FRED category JSON object.
// Unexported; callers receive normalized Category values.
type categoryResponse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parent_id"`
}

func (c *categoryResponse) toCategory() Category {
	return Category{
		ID:       c.ID,
		ParentID: c.ParentID,
		Name:     c.Name,
	}
}

// categoriesResponse wraps the categories array returned by /category,
// /category/children and /series/categories.
type categoriesResponse struct {
	Categories []categoryResponse `json:"categories"`
}

func (r *categoriesResponse) toCategories() []Category {
	cats := make([]Category, 0, len(r.Categories))
	for i := range r.Categories {
		cats = append(cats, r.Categories[i].toCategory())
	}

	return cats
}

// seriesResponse mirrors a FRED series JSON object.
type seriesResponse struct {
	ID                      string `json:"id"`
	Title                   string `json:"title"`
	ObservationStart        string `json:"observation_start"`
	ObservationEnd          string `json:"observation_end"`
	Frequency               string `json:"frequency"`
	FrequencyShort          string `json:"frequency_short"`
	Units                   string `json:"units"`
	UnitsShort              string `json:"units_short"`
	SeasonalAdjustment      string `json:"seasonal_adjustment"`
	SeasonalAdjustmentShort string `json:"seasonal_adjustment_short"`
	LastUpdated             string `json:"last_updated"`
	Popularity              int    `json:"popularity"`
	GroupPopularity         int    `json:"group_popularity"`
	Notes                   string `json:"notes"`
}

func (s *seriesResponse) toSeries() Series {
	return Series{
		ID:                      s.ID,
		Title:                   strings.TrimSpace(s.Title),
		ObservationStart:        s.ObservationStart,
		ObservationEnd:          s.ObservationEnd,
		Frequency:               s.Frequency,
		FrequencyShort:          s.FrequencyShort,
		Units:                   s.Units,
		UnitsShort:              s.UnitsShort,
		SeasonalAdjustment:      s.SeasonalAdjustment,
		SeasonalAdjustmentShort: s.SeasonalAdjustmentShort,
		LastUpdated:             s.LastUpdated,
		Popularity:              s.Popularity,
		GroupPopularity:         s.GroupPopularity,
		Notes:                   s.Notes,
	}
}

// seriessResponse wraps /category/series. FRED really does spell the array
// key "seriess".
type seriessResponse struct {
	Count  int              `json:"count"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
	Series []seriesResponse `json:"seriess"` //nolint:tagliatelle // FRED key
}

// tagsResponse wraps /series/tags.
type tagsResponse struct {
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// observationResponse mirrors one /series/observations entry. Values arrive
// as strings so that "." can mark a missing value.
type observationResponse struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type observationsResponse struct {
	Observations []observationResponse `json:"observations"`
}

// parseValue converts a FRED observation value string. Anything that does
// not parse as a float is treated as missing, like ".".
func parseValue(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == missingValue {
		return math.NaN(), true
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN(), true
	}

	return v, false
}

func (o *observationResponse) toObservation() Observation {
	v, missing := parseValue(o.Value)

	return Observation{
		Date:    o.Date,
		Value:   v,
		Missing: missing,
	}
}

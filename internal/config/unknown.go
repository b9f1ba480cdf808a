package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys are the valid top-level keys in the config file.
var knownKeys = map[string]bool{
	// API settings
	"api_key": true, "base_url": true, "requests_per_minute": true, "request_timeout": true,
	// Catalog settings
	"root_categories": true, "min_observation_end": true, "series_filter": true, "expand_workers": true,
	// Storage settings
	"db_path": true, "metrics_file": true,
	// Logging settings
	"log_level": true, "log_format": true, "log_file": true,
	// Watch settings
	"poll_interval": true,
}

// knownKeysList is the sorted slice form of knownKeys. Sorted for
// deterministic suggestions when two candidates have the same edit distance.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		// A table like [foo] reports foo and foo.bar; report the top once.
		if len(key) > 1 {
			continue
		}

		name := key[0]

		if suggestion := closestMatch(name, knownKeysList); suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q (did you mean %q?)", name, suggestion))
		} else {
			errs = append(errs, fmt.Errorf("unknown config key %q", name))
		}
	}

	return errors.Join(errs...)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization: two rows instead of a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

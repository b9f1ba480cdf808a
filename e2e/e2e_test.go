//go:build e2e

// Package e2e runs the fredsync binary against the live FRED API. Requires
// FRED_API_KEY (env or .env at the module root). The catalog slice walked is
// kept small with FREDSYNC_E2E_ROOT and FREDSYNC_E2E_SERIES.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fredsync/testutil"
)

var (
	binaryPath string
	rootID     string
	seriesID   string
)

func TestMain(m *testing.M) {
	moduleRoot := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(moduleRoot, ".env"))
	testutil.RequireEnv("FRED_API_KEY", "Get a key at https://fred.stlouisfed.org/docs/api/api_key.html")

	rootID = testutil.EnvOr("FREDSYNC_E2E_ROOT", "106")
	seriesID = testutil.EnvOr("FREDSYNC_E2E_SERIES", "GDP")

	tmpDir, err := os.MkdirTemp("", "fredsync-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "fredsync")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = moduleRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// runCLI runs the binary against an isolated database and config home.
func runCLI(t *testing.T, dbPath string, args ...string) (string, string) {
	t.Helper()

	fullArgs := append([]string{"--db", dbPath}, args...)
	cmd := exec.Command(binaryPath, fullArgs...)
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+filepath.Join(filepath.Dir(dbPath), "config"),
		"FREDSYNC_CONFIG=",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String()
}

type runReport struct {
	RunID     string   `json:"run_id"`
	Series    int      `json:"series"`
	Skipped   int      `json:"skipped"`
	Created   []string `json:"created"`
	Updated   []string `json:"updated"`
	Abandoned []string `json:"abandoned"`
}

func TestE2E_SyncRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fredsync.db")
	catalog := []string{"--root", rootID, "--series", seriesID, "--min-observation-end", "1900-01-01"}

	t.Run("discover", func(t *testing.T) {
		stdout, _ := runCLI(t, dbPath, append([]string{"--json", "discover"}, catalog...)...)

		var out struct {
			Categories []int    `json:"categories"`
			Series     []string `json:"series"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.NotEmpty(t, out.Categories)
		assert.Equal(t, []string{seriesID}, out.Series)
	})

	t.Run("dry_run", func(t *testing.T) {
		stdout, _ := runCLI(t, dbPath, append([]string{"--json", "sync", "--dry-run"}, catalog...)...)

		var r runReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &r))
		assert.Equal(t, []string{seriesID}, r.Created)
	})

	t.Run("first_sync_creates", func(t *testing.T) {
		stdout, _ := runCLI(t, dbPath, append([]string{"--json", "sync"}, catalog...)...)

		var r runReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &r))
		assert.Equal(t, []string{seriesID}, r.Created)
		assert.Empty(t, r.Abandoned)
	})

	t.Run("second_sync_skips", func(t *testing.T) {
		stdout, _ := runCLI(t, dbPath, append([]string{"--json", "sync"}, catalog...)...)

		var r runReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &r))
		assert.Empty(t, r.Created)
		assert.Empty(t, r.Updated)
		assert.Equal(t, 1, r.Skipped)
	})

	t.Run("series", func(t *testing.T) {
		stdout, _ := runCLI(t, dbPath, "--json", "series", seriesID, "--tail", "3")

		var out struct {
			SeriesID     string `json:"series_id"`
			Observations int    `json:"observations"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, seriesID, out.SeriesID)
		assert.Positive(t, out.Observations)
	})

	t.Run("status", func(t *testing.T) {
		stdout, _ := runCLI(t, dbPath, "--json", "status")

		var out struct {
			Series int               `json:"series"`
			Runs   []json.RawMessage `json:"runs"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, 1, out.Series)
		// Dry run plus two real runs.
		assert.Len(t, out.Runs, 3)
	})
}

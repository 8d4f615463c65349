package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/ducksgather/internal/auth"
	"github.com/pfrederiksen/ducksgather/internal/ingest"
	"github.com/pfrederiksen/ducksgather/internal/storage"
)

// calendarServer serves the listing fixture as page one and 404 after it
func calendarServer(t *testing.T) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", "calendar_page.html"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testEnv writes a snapshot-backed config into a fresh working directory
func testEnv(t *testing.T) (configPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	dataDir = filepath.Join(dir, "data")
	configPath = filepath.Join(dir, "ducksgather.yaml")
	cfg := fmt.Sprintf(`storage:
  driver: snapshot
  data_dir: %s
scraper:
  request_timeout: 5s
log:
  level: error
`, dataDir)
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))
	return configPath, dataDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func decodeReport(t *testing.T, out string) reportOutput {
	t.Helper()
	var r reportOutput
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.NotNil(t, r.Report)
	return r
}

func TestIngestDryRun(t *testing.T) {
	srv := calendarServer(t)
	cfgPath, dataDir := testEnv(t)

	out, err := run(t, "ingest", "--config", cfgPath, "--url", srv.URL, "--dry-run", "--format", "json")
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.True(t, r.DryRun)
	assert.Equal(t, ingest.StateDone, r.State)
	assert.Equal(t, ingest.StopNotFound, r.StopReason)
	assert.Equal(t, 3, r.Persisted)

	_, statErr := os.Stat(filepath.Join(dataDir, "snapshot.json"))
	assert.True(t, os.IsNotExist(statErr), "dry run must not create a snapshot")
}

func TestIngestSnapshotIsIdempotent(t *testing.T) {
	srv := calendarServer(t)
	cfgPath, dataDir := testEnv(t)

	out, err := run(t, "ingest", "--config", cfgPath, "--url", srv.URL, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, 3, decodeReport(t, out).Persisted)

	out, err = run(t, "ingest", "--config", cfgPath, "--url", srv.URL, "--format", "json")
	require.NoError(t, err)
	second := decodeReport(t, out)
	assert.Equal(t, 0, second.Persisted)
	assert.Equal(t, 3, second.Duplicates)

	s, err := storage.New(dataDir)
	require.NoError(t, err)
	snap, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Events, 3)
}

func TestIngestTextReport(t *testing.T) {
	srv := calendarServer(t)
	cfgPath, _ := testEnv(t)

	out, err := run(t, "ingest", "--config", cfgPath, "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored")
	assert.Contains(t, out, "Source: "+srv.URL)
}

func TestIngestAbortedExitCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	cfgPath, _ := testEnv(t)

	out, err := run(t, "ingest", "--config", cfgPath, "--url", srv.URL, "--format", "json")
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrAborted)
	assert.Equal(t, ExitAborted, ExitCode(err))

	r := decodeReport(t, out)
	assert.Equal(t, ingest.StateAborted, r.State)
	assert.Equal(t, ingest.StopFetchFailed, r.StopReason)
}

func TestIngestRejectsBadFlags(t *testing.T) {
	cfgPath, _ := testEnv(t)

	_, err := run(t, "ingest", "--config", cfgPath, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))

	_, err = run(t, "ingest", "--config", cfgPath, "--store", "sqlite", "--url", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
}

func TestExportCSV(t *testing.T) {
	srv := calendarServer(t)
	cfgPath, dataDir := testEnv(t)
	outPath := filepath.Join(t.TempDir(), "events.csv")

	_, err := run(t, "export", "--config", cfgPath, "--url", srv.URL, "--sort", "title", "-o", outPath)
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "title", rows[0][0])
	assert.LessOrEqual(t, strings.ToLower(rows[1][0]), strings.ToLower(rows[2][0]))
	assert.LessOrEqual(t, strings.ToLower(rows[2][0]), strings.ToLower(rows[3][0]))

	_, statErr := os.Stat(filepath.Join(dataDir, "snapshot.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportICSToStdout(t *testing.T) {
	srv := calendarServer(t)
	cfgPath, _ := testEnv(t)

	out, err := run(t, "export", "--config", cfgPath, "--url", srv.URL, "--format", "ics", "--name", "Quad")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "X-WR-CALNAME:Quad")
	assert.Equal(t, 3, strings.Count(out, "BEGIN:VEVENT"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	cfgPath, _ := testEnv(t)
	_, err := run(t, "export", "--config", cfgPath, "--format", "pdf")
	require.Error(t, err)
}

func TestSeedLocations(t *testing.T) {
	cfgPath, dataDir := testEnv(t)
	list := filepath.Join(t.TempDir(), "buildings.yaml")
	require.NoError(t, os.WriteFile(list, []byte(`- building_name: Erb Memorial Union
  latitude: 44.0449
  longitude: -123.0722
- building_name: "  "
- building_name: Knight Library
`), 0o600))

	out, err := run(t, "seed-locations", "--config", cfgPath, "-f", list)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 locations (1 skipped)")

	s, err := storage.New(dataDir)
	require.NoError(t, err)
	snap, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Locations, 2)
}

func TestSeedLocationsRequiresFile(t *testing.T) {
	cfgPath, _ := testEnv(t)
	_, err := run(t, "seed-locations", "--config", cfgPath)
	require.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	cfgPath, _ := testEnv(t)
	_, err := run(t, "ingest", "--config", cfgPath, "--log-level", "loud", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitError, ExitCode(assert.AnError))
	assert.Equal(t, ExitAborted, ExitCode(&exitError{code: ExitAborted, err: assert.AnError}))
	assert.Equal(t, ExitAborted, ExitCode(fmt.Errorf("wrapped: %w", &exitError{code: ExitAborted, err: assert.AnError})))
}

func TestUserToken(t *testing.T) {
	cfgPath, _ := testEnv(t)
	t.Setenv("DUCKS_AUTH_JWT_SECRET", "cli-test-secret")
	userID := "0b6f2c4e-6d1a-4c1e-9d7a-2f7d8b1e5a10"

	out, err := run(t, "user", "token", userID, "duck@uoregon.edu", "--config", cfgPath, "--ttl", "5m")
	require.NoError(t, err)

	claims, err := auth.NewJWTManager("cli-test-secret", time.Minute, "").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject)
	assert.Equal(t, "duck@uoregon.edu", claims.Email)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestUserTokenRejectsBadID(t *testing.T) {
	cfgPath, _ := testEnv(t)
	t.Setenv("DUCKS_AUTH_JWT_SECRET", "cli-test-secret")

	_, err := run(t, "user", "token", "not-a-uuid", "duck@uoregon.edu", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user id")
}

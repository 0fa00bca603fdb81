package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/sprout/internal/archive"
	serrors "github.com/randalmurphal/sprout/internal/errors"
	"github.com/randalmurphal/sprout/internal/model"
	"github.com/randalmurphal/sprout/internal/storage"
)

// isolate points HOME and the working directory at a fresh temp dir so no
// real config file is picked up, and returns the data directory to use.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Chdir(tmp)
	return filepath.Join(tmp, "data")
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func seed(t *testing.T, dataDir string) {
	t.Helper()
	store, err := storage.NewBackend(storage.Options{DataDir: dataDir})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000).UTC()
	for _, name := range []string{"Monstera", "Calathea"} {
		p := &model.Plant{Name: name, Species: "tropical", AcquiredAt: t0}
		require.NoError(t, store.InsertPlant(ctx, p))
		require.NoError(t, store.InsertDiaryEntry(ctx, &model.DiaryEntry{PlantID: p.ID, Timestamp: t0, Type: "note", Note: "repotted"}))
	}
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sprout version "+Version)
}

func TestExportInspectImport(t *testing.T) {
	dataDir := isolate(t)
	seed(t, dataDir)
	dest := filepath.Join(t.TempDir(), "backup.zip")

	_, stderr, err := run(t, "--data-dir", dataDir, "--quiet", "export", dest)
	require.NoError(t, err, stderr)
	_, err = os.Stat(dest)
	require.NoError(t, err)

	out, _, err := run(t, "--data-dir", dataDir, "--json", "inspect", dest)
	require.NoError(t, err)
	var info archive.ArchiveInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, archive.CurrentVersion, info.Version)
	assert.Equal(t, 4, info.TotalRows())

	out, _, err = run(t, "--data-dir", dataDir, "--json", "import", dest, "--mode", "merge")
	require.NoError(t, err)
	var report importReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Counts.Plants)
	assert.Empty(t, report.Warnings)

	out, _, err = run(t, "--data-dir", dataDir, "--json", "status")
	require.NoError(t, err)
	var status statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 4, status.Counts.Plants)
	assert.Equal(t, 4, status.Counts.DiaryEntries)
}

func TestExport_SinglePlantNotFound(t *testing.T) {
	dataDir := isolate(t)
	seed(t, dataDir)
	dest := filepath.Join(t.TempDir(), "missing.zip")

	_, stderr, err := run(t, "--data-dir", dataDir, "export", dest, "--plant", "999")
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.CodePlantNotFound))
	var r reported
	assert.True(t, errors.As(err, &r))
	assert.Contains(t, stderr, "Exporting failed")
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestImport_UnsupportedVersion(t *testing.T) {
	dataDir := isolate(t)
	seed(t, dataDir)

	src := filepath.Join(t.TempDir(), "future.zip")
	f, err := os.Create(src)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(archive.DataFileCSV)
	require.NoError(t, err)
	_, err = w.Write([]byte("Version,99\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out, _, err := run(t, "--data-dir", dataDir, "--json", "import", src)
	require.Error(t, err)
	var report importReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Success)
	assert.Equal(t, string(serrors.CodeUnsupportedVersion), report.Code)

	out, _, err = run(t, "--data-dir", dataDir, "--json", "status")
	require.NoError(t, err)
	var status statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 2, status.Counts.Plants, "failed import must leave data untouched")
}

func TestImport_InvalidMode(t *testing.T) {
	dataDir := isolate(t)
	_, _, err := run(t, "--data-dir", dataDir, "import", "x.zip", "--mode", "append")
	require.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	dataDir := isolate(t)
	t.Setenv("SPROUT_EXPORT_FORMAT", "json")

	out, _, err := run(t, "--data-dir", dataDir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "format: json")
	assert.Contains(t, out, "data_dir: "+dataDir)

	out, _, err = run(t, "--data-dir", dataDir, "config", "show", "--sources")
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "export.format"):
			assert.Contains(t, line, "env: SPROUT_EXPORT_FORMAT")
		case strings.HasPrefix(line, "data_dir"):
			assert.Contains(t, line, "flag: --data-dir")
		}
	}
}

func TestConfigInit(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(".sprout", "config.yaml"))

	_, _, err = run(t, "config", "init")
	require.Error(t, err, "second init without --force must fail")

	_, _, err = run(t, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfig_InvalidFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("import:\n  mode: sideways\n"), 0o644))

	_, _, err := run(t, "--config", path, "status")
	assert.True(t, serrors.HasCode(err, serrors.CodeConfigInvalid))
}

func TestPrintWarnings(t *testing.T) {
	var buf bytes.Buffer
	printWarnings(&buf, nil)
	assert.Empty(t, buf.String())

	printWarnings(&buf, []archive.ImportWarning{
		{Category: "diary entries", Row: 2, Reason: "invalid plant id"},
		{Category: "reminders", Row: 5, Reason: "unknown plant 7"},
	})
	out := buf.String()
	assert.Contains(t, out, "2 rows skipped")
	assert.Contains(t, out, "diary entries row 2: invalid plant id")
	assert.Contains(t, out, "reminders row 5: unknown plant 7")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, serrors.ErrPlantNotFound(3), true)
	assert.Contains(t, buf.String(), "Code: PLANT_NOT_FOUND")

	buf.Reset()
	PrintError(&buf, errors.New("plain"), false)
	assert.Equal(t, "Error: plain\n", buf.String())
}

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

func testRecord(t *testing.T) *domain.AppRecord {
	t.Helper()
	return domain.NewAppRecord(domain.AppSpec{
		Name: "demo", Type: domain.AppTypeBun, Port: 3000,
		Mode: domain.ModeDev, Replicas: 1,
	}, domain.RecordDefaults{
		DevNamespace:  "development",
		ProdNamespace: "production",
		MinInstances:  1,
		MaxInstances:  10,
	})
}

func TestLoadReturnsNilWhenAbsent(t *testing.T) {
	s := NewFileStore(t.TempDir())

	record, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir())
	record := testRecord(t)

	require.NoError(t, s.Save(record))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.AppName, loaded.AppName)
	assert.Equal(t, record.AttemptID, loaded.AttemptID)
	assert.Equal(t, record.Status, loaded.Status)
}

func TestSaveUsesCamelCaseKeys(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(testRecord(t)))

	data, err := os.ReadFile(filepath.Join(dir, StateDir, StateFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"appName"`)
	assert.Contains(t, string(data), `"attemptId"`)
	assert.Contains(t, string(data), `"kubernetesEnabled"`)
	assert.NotContains(t, string(data), `"AppName"`)
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(testRecord(t)))
	require.NoError(t, s.Save(testRecord(t)))

	entries, err := os.ReadDir(filepath.Join(dir, StateDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StateFile, entries[0].Name())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, StateDir), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, err := s.Load()
	assert.Error(t, err)
}

func TestClearIsIdempotent(t *testing.T) {
	s := NewFileStore(t.TempDir())
	require.NoError(t, s.Save(testRecord(t)))

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	record, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

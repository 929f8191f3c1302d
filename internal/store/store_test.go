package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botforge/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	return s
}

func record(id, status string, finished time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:         id,
		Status:     status,
		NeedsUI:    true,
		ProjectDir: "/tmp/generated_project_" + id,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}
}

func TestArchiveAndGet(t *testing.T) {
	s := openTestStore(t)

	rec := record("run-a", "completed", time.Now())
	rec.BackendURL = "http://localhost:8000"
	rec.Warning = "deployment failed: port conflict"
	require.NoError(t, s.Archive(rec))

	got, err := s.Get("run-a")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "http://localhost:8000", got.BackendURL)
	assert.Equal(t, "deployment failed: port conflict", got.Warning)
	assert.True(t, got.NeedsUI)
}

func TestGetMissingRecord(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("absent")
	assert.Error(t, err)
}

func TestArchiveIsUpsert(t *testing.T) {
	s := openTestStore(t)

	rec := record("run-b", "completed", time.Now())
	require.NoError(t, s.Archive(rec))
	rec.Reason = "amended"
	require.NoError(t, s.Archive(rec))

	got, err := s.Get("run-b")
	require.NoError(t, err)
	assert.Equal(t, "amended", got.Reason)

	all, err := s.List(10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListOrdersByFinishTime(t *testing.T) {
	s := openTestStore(t)

	base := time.Now()
	require.NoError(t, s.Archive(record("old", "completed", base.Add(-2*time.Hour))))
	require.NoError(t, s.Archive(record("new", "aborted", base)))
	require.NoError(t, s.Archive(record("mid", "completed", base.Add(-time.Hour))))

	all, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)
}

func TestListHonorsLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Archive(record(id, "completed", base.Add(time.Duration(i)*time.Minute))))
	}
	all, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

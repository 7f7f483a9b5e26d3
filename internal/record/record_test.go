package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classprep/internal/model"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s := InDir(filepath.Join(t.TempDir(), "data"))
	s.now = func() time.Time { return time.Date(2026, 10, 19, 21, 0, 0, 0, time.UTC) }
	return s
}

func TestLoad_MissingRecord(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.Exists())
	rec, err := s.Load()
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		pairs []model.ResourcePair
	}{
		{"empty", []model.ResourcePair{}},
		{"one pair", []model.ResourcePair{{FileID: "f1", AssignmentID: "a1"}}},
		{"many pairs", []model.ResourcePair{
			{FileID: "f1", AssignmentID: "a1"},
			{FileID: "f2", AssignmentID: "a2"},
			{FileID: "f3", AssignmentID: "a3"},
			{FileID: "f4"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			in := &model.RunRecord{
				RunID:        "run-1",
				ScheduledFor: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC),
				Pairs:        tt.pairs,
			}
			require.NoError(t, s.Save(in))
			assert.True(t, s.Exists())

			out, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, CurrentVersion, out.Version)
			assert.Equal(t, "run-1", out.RunID)
			assert.True(t, in.ScheduledFor.Equal(out.ScheduledFor))
			assert.Equal(t, tt.pairs, out.Pairs)
			assert.Equal(t, len(tt.pairs), out.Len())
		})
	}
}

func TestSave_NilPairsLoadAsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(&model.RunRecord{}))

	out, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, out.Pairs)
	assert.Empty(t, out.Pairs)
}

func TestSave_ReplacesPreviousRecord(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(&model.RunRecord{Pairs: []model.ResourcePair{{FileID: "old", AssignmentID: "old-a"}}}))
	require.NoError(t, s.Save(&model.RunRecord{Pairs: []model.ResourcePair{{FileID: "new", AssignmentID: "new-a"}}}))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []model.ResourcePair{{FileID: "new", AssignmentID: "new-a"}}, out.Pairs)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should remain")
}

func TestSave_RejectsInvalidRecordAndKeepsOld(t *testing.T) {
	s := newTestStore(t)
	good := []model.ResourcePair{{FileID: "f1", AssignmentID: "a1"}}
	require.NoError(t, s.Save(&model.RunRecord{Pairs: good}))

	err := s.Save(&model.RunRecord{Pairs: []model.ResourcePair{{AssignmentID: "a2"}}})
	require.Error(t, err)

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, good, out.Pairs)
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"version": 1, "pairs": [{"file_id": "f1"`},
		{"not json", "\x80\x03]q\x00"},
		{"unknown version", `{"version": 7, "pairs": []}`},
		{"missing version", `{"pairs": []}`},
		{"missing file id", `{"version": 1, "pairs": [{"assignment_id": "a1"}]}`},
		{"duplicate file id", `{"version": 1, "pairs": [{"file_id": "f1", "assignment_id": "a1"}, {"file_id": "f1", "assignment_id": "a2"}]}`},
		{"duplicate assignment id", `{"version": 1, "pairs": [{"file_id": "f1", "assignment_id": "a1"}, {"file_id": "f2", "assignment_id": "a1"}]}`},
		{"parallel lists", `{"version": 1, "pairs": {"file_ids": ["f1"], "assignment_ids": ["a1"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0o644))

			rec, err := s.Load()
			assert.Nil(t, rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
			assert.False(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestSave_Nil(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save(nil))
	assert.False(t, s.Exists())
}

func TestSave_StampsSavedAt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(&model.RunRecord{}))

	out, err := s.Load()
	require.NoError(t, err)
	assert.True(t, out.SavedAt.Equal(time.Date(2026, 10, 19, 21, 0, 0, 0, time.UTC)))
}

func TestExists_UnreadableLocationIsNotMissing(t *testing.T) {
	// A regular file where the data directory should be makes stat fail
	// with something other than "does not exist".
	blocker := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	s := InDir(blocker)

	assert.True(t, s.Exists(), "only a definite absence means no record")

	_, err := s.Load()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

// Package record persists the RunRecord between invocations.
//
// The record is a small JSON document that names every file and assignment
// the last run left behind. It is read once at the start of a run and
// replaced atomically at the end:
//
//   - Save writes a temp file in the same directory, fsyncs it, then renames
//     it over the target, so an interrupted save never leaves a partial record
//   - Load distinguishes a missing record (ErrNotFound) from one that cannot
//     be trusted (ErrCorrupt); a corrupt record must never be read as "empty"
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/classprep/internal/fsutil"
	"github.com/roach88/classprep/internal/model"
)

// CurrentVersion is the record format written by Save.
const CurrentVersion = 1

// FileName is the record's name inside the data directory.
const FileName = "yesterday.json"

var (
	// ErrNotFound means no previous run left a record.
	ErrNotFound = errors.New("run record not found")

	// ErrCorrupt means a record exists but cannot be parsed into a valid
	// RunRecord. Remote resources may be orphaned; an operator must inspect it.
	ErrCorrupt = errors.New("run record is corrupt")
)

// FileStore keeps the RunRecord in a single JSON file.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore returns a store for the record at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// InDir returns a store for the record inside dataDir.
func InDir(dataDir string) *FileStore {
	return NewFileStore(filepath.Join(dataDir, FileName))
}

// Path returns the record file location.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether a record file may be present. Only a definite
// "does not exist" is false; any other stat error leaves Load to report it.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return !errors.Is(err, os.ErrNotExist)
}

// Load reads and validates the record.
func (s *FileStore) Load() (*model.RunRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}

	var rec model.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if err := Validate(&rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if rec.Pairs == nil {
		rec.Pairs = []model.ResourcePair{}
	}
	return &rec, nil
}

// Save replaces the record atomically.
func (s *FileStore) Save(rec *model.RunRecord) error {
	if rec == nil {
		return errors.New("save run record: nil record")
	}
	out := *rec
	out.Version = CurrentVersion
	if out.Pairs == nil {
		out.Pairs = []model.ResourcePair{}
	}
	if out.SavedAt.IsZero() {
		out.SavedAt = s.now().UTC()
	}
	if err := Validate(&out); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("save run record: %w", err)
	}
	data = append(data, '\n')

	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}
	return nil
}

// Validate checks the structural invariants of a record.
// A pair must name a file; no file or assignment id may appear twice.
func Validate(rec *model.RunRecord) error {
	if rec.Version != CurrentVersion {
		return fmt.Errorf("unsupported version %d", rec.Version)
	}

	files := make(map[string]bool, len(rec.Pairs))
	assignments := make(map[string]bool, len(rec.Pairs))
	for i, p := range rec.Pairs {
		if p.FileID == "" {
			return fmt.Errorf("pair %d: missing file_id", i)
		}
		if files[p.FileID] {
			return fmt.Errorf("pair %d: duplicate file_id %q", i, p.FileID)
		}
		files[p.FileID] = true

		if p.AssignmentID == "" {
			continue
		}
		if assignments[p.AssignmentID] {
			return fmt.Errorf("pair %d: duplicate assignment_id %q", i, p.AssignmentID)
		}
		assignments[p.AssignmentID] = true
	}
	return nil
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"axewatch/internal/jsonx"
)

// ErrCorruptHistory indicates a history file that exists but is not a JSON
// array of records.
var ErrCorruptHistory = errors.New("storage: corrupt history file")

// HistoryStore defines best-difficulty history persistence.
type HistoryStore interface {
	Load(ctx context.Context) ([]DifficultyRecord, error)
	Append(ctx context.Context, history []DifficultyRecord, value float64, ts time.Time) ([]DifficultyRecord, bool, error)
}

// FileStore keeps the history in a single JSON file that is rewritten on
// every append. The mutex only serializes writers within this process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore binds a store to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the full history. A missing file is an empty history.
func (s *FileStore) Load(ctx context.Context) ([]DifficultyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []DifficultyRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	return decodeHistory(data)
}

func decodeHistory(data []byte) ([]DifficultyRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []DifficultyRecord{}, nil
	}

	var entries []json.RawMessage
	if err := jsonx.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}

	history := make([]DifficultyRecord, 0, len(entries))
	for _, entry := range entries {
		history = append(history, decodeRecord(entry))
	}
	return history, nil
}

// Append adds value at ts unless it equals the tail's value, then persists
// the whole sequence. appended reports whether a record was added.
func (s *FileStore) Append(ctx context.Context, history []DifficultyRecord, value float64, ts time.Time) ([]DifficultyRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return history, false, err
	}

	next, appended := AppendRecord(history, value, ts)
	if !appended {
		return history, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(next); err != nil {
		return history, false, err
	}
	return next, true, nil
}

// Record loads the history and appends value in one step under the store
// lock, so the poller and chat commands do not interleave inside a process.
func (s *FileStore) Record(ctx context.Context, value float64, ts time.Time) ([]DifficultyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.Load(ctx)
	if err != nil {
		return nil, false, err
	}

	next, appended := AppendRecord(history, value, ts)
	if !appended {
		return history, false, nil
	}
	if err := s.write(next); err != nil {
		return history, false, err
	}
	return next, true, nil
}

func (s *FileStore) write(history []DifficultyRecord) error {
	if history == nil {
		history = []DifficultyRecord{}
	}
	data, err := jsonx.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// AppendRecord is the pure half of Append. An invalid tail never matches.
func AppendRecord(history []DifficultyRecord, value float64, ts time.Time) ([]DifficultyRecord, bool) {
	if n := len(history); n > 0 {
		tail := history[n-1]
		if tail.Valid && tail.Best == value {
			return history, false
		}
	}
	next := make([]DifficultyRecord, len(history), len(history)+1)
	copy(next, history)
	return append(next, NewRecord(value, ts)), true
}

// RankDescending returns a copy ordered by value, highest first. Equal values
// keep their insertion order; invalid records go last.
func RankDescending(history []DifficultyRecord) []DifficultyRecord {
	ranked := slices.Clone(history)
	slices.SortStableFunc(ranked, func(a, b DifficultyRecord) int {
		switch {
		case a.Valid && !b.Valid:
			return -1
		case !a.Valid && b.Valid:
			return 1
		case !a.Valid && !b.Valid:
			return 0
		case a.Best > b.Best:
			return -1
		case a.Best < b.Best:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

// Latest returns the most recent valid record.
func Latest(history []DifficultyRecord) (DifficultyRecord, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Valid {
			return history[i], true
		}
	}
	return DifficultyRecord{}, false
}

var _ HistoryStore = (*FileStore)(nil)

package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"PstrykSentinel/internal/model"
)

// CorruptionError describes a cache file that exists but cannot be used.
type CorruptionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache %s unusable: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("cache %s unusable: %s", e.Path, e.Reason)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Store persists the last good CacheRecord as a single JSON file.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a store writing to path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Load returns the cached record. Any problem with the file is logged and
// reported as absence.
func (s *Store) Load() (*model.CacheRecord, bool) {
	rec, err := s.read()
	if err != nil {
		var ce *CorruptionError
		if errors.As(err, &ce) {
			s.logger.Warn("ignoring cache file", zap.String("path", s.path), zap.Error(err))
		} else {
			s.logger.Debug("no cache file", zap.String("path", s.path), zap.Error(err))
		}
		return nil, false
	}
	return rec, true
}

func (s *Store) read() (*model.CacheRecord, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, &CorruptionError{Path: s.path, Reason: "read failed", Err: err}
	}
	if len(payload) == 0 {
		return nil, &CorruptionError{Path: s.path, Reason: "empty file"}
	}

	var rec model.CacheRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, &CorruptionError{Path: s.path, Reason: "decode failed", Err: err}
	}
	if rec.Version != model.CacheVersion {
		return nil, &CorruptionError{Path: s.path, Reason: fmt.Sprintf("unsupported version %d", rec.Version)}
	}
	if err := rec.Validate(); err != nil {
		return nil, &CorruptionError{Path: s.path, Reason: "invalid series", Err: err}
	}
	return &rec, nil
}

// Save replaces the cache file atomically: the record is written to a temp
// file in the same directory, synced and renamed over the target.
func (s *Store) Save(rec *model.CacheRecord) error {
	if rec == nil {
		return errors.New("nil cache record")
	}
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode cache record")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create cache dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create cache temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write cache temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync cache temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close cache temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "persist cache file")
	}
	committed = true
	return nil
}

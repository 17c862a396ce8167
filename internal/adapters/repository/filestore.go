package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

const (
	backupPrefix     = "snapshot-"
	backupSuffix     = ".json"
	backupTimeLayout = "20060102T150405.000Z"
	defaultRetention = 10
)

// FileStore keeps the document in two JSON files: the enhanced file holds
// the versioned document, the primary file the flat live state for older
// readers. Every save first copies the previous enhanced file into the
// backup directory.
type FileStore struct {
	mu           sync.Mutex
	primaryPath  string
	enhancedPath string
	backupDir    string
	retention    int

	now   func() time.Time
	newID func() string
	log   logger.Logger
}

// NewFileStore creates a store rooted at dataDir.
func NewFileStore(dataDir string, opts ...Option) *FileStore {
	s := &FileStore{
		primaryPath:  filepath.Join(dataDir, "data.json"),
		enhancedPath: filepath.Join(dataDir, "data-enhanced.json"),
		backupDir:    filepath.Join(dataDir, "backups"),
		retention:    defaultRetention,
		now:          time.Now,
		newID:        uuid.NewString,
		log:          logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save backs up the previous document, then replaces the enhanced and the
// primary file. Each write goes through a temp file and a rename.
func (s *FileStore) Save(ctx context.Context, doc model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.Version == 0 {
		doc.Version = model.SchemaVersion
	}
	enhanced, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal document: %w", ErrWrite, err)
	}
	primary, err := json.MarshalIndent(doc.State, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal state: %w", ErrWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dir := range []string{filepath.Dir(s.enhancedPath), filepath.Dir(s.primaryPath), s.backupDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrWrite, dir, err)
		}
	}
	if err := s.backup(); err != nil {
		s.log.Warn(ctx, "backup skipped", logger.Error(err))
	}
	if err := writeAtomic(s.enhancedPath, enhanced); err != nil {
		return err
	}
	if err := writeAtomic(s.primaryPath, primary); err != nil {
		return err
	}
	metrics.UpdateSnapshotBytes(len(enhanced))
	return nil
}

// Load returns the enhanced document when it is readable, otherwise the
// migrated primary file, otherwise the default dataset.
func (s *FileStore) Load(ctx context.Context) Loaded {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reasons []error
	for _, c := range []struct {
		path string
		src  Source
	}{
		{s.enhancedPath, SourceEnhanced},
		{s.primaryPath, SourcePrimary},
	} {
		data, err := os.ReadFile(c.path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			reasons = append(reasons, fmt.Errorf("read %s: %w", c.path, err))
			continue
		}
		doc, err := Decode(data, s.now(), s.newID)
		if err != nil {
			s.log.Warn(ctx, "snapshot unusable",
				logger.String("path", c.path),
				logger.Error(err),
			)
			reasons = append(reasons, fmt.Errorf("%s: %w", c.path, err))
			continue
		}
		s.log.Info(ctx, "snapshot loaded",
			logger.String("source", string(c.src)),
			logger.Int("batches", len(doc.Batches)),
			logger.Int("candidates", len(doc.State.Candidates)),
		)
		return Loaded{Document: doc, Source: c.src}
	}

	reason := errors.Join(reasons...)
	if reason == nil {
		reason = ErrNoData
	}
	metrics.RecordLoadFallback()
	s.log.Warn(ctx, "using default dataset", logger.Error(reason))
	return Loaded{
		Document: DefaultDocument(s.now(), s.newID),
		Source:   SourceDefaults,
		Fallback: true,
		Reason:   reason,
	}
}

// Backups lists backup files, newest first.
func (s *FileStore) Backups() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos, err := s.listBackups()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(infos))
	for i, b := range infos {
		out[i] = b.path
	}
	return out, nil
}

// backup copies the current enhanced file and prunes old copies. Caller
// holds s.mu.
func (s *FileStore) backup() error {
	data, err := os.ReadFile(s.enhancedPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read previous snapshot: %w", err)
	}
	name := backupPrefix + s.now().UTC().Format(backupTimeLayout) + backupSuffix
	if err := writeAtomic(filepath.Join(s.backupDir, name), data); err != nil {
		return err
	}
	return s.prune()
}

type backupFile struct {
	path    string
	modTime time.Time
}

func (s *FileStore) listBackups() ([]backupFile, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var out []backupFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, backupFile{path: filepath.Join(s.backupDir, name), modTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].modTime.Equal(out[j].modTime) {
			return out[i].modTime.After(out[j].modTime)
		}
		// Names embed the timestamp, so they break mod time ties.
		return out[i].path > out[j].path
	})
	return out, nil
}

// prune keeps the newest retention backups.
func (s *FileStore) prune() error {
	files, err := s.listBackups()
	if err != nil {
		return err
	}
	kept := len(files)
	for i := s.retention; i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove backup: %w", err)
		}
		kept--
	}
	metrics.UpdateBackupsRetained(kept)
	return nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrWrite, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("%w: write %s: %w", ErrWrite, path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("%w: sync %s: %w", ErrWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("%w: close %s: %w", ErrWrite, path, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name) // best-effort cleanup
		return fmt.Errorf("%w: rename %s: %w", ErrWrite, path, err)
	}
	return nil
}

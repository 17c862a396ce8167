package repository

import (
	"time"

	"github.com/okian/judgeboard/pkg/logger"
)

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithPrimaryFile overrides the flat state file path.
func WithPrimaryFile(path string) Option {
	return func(s *FileStore) {
		if path != "" {
			s.primaryPath = path
		}
	}
}

// WithEnhancedFile overrides the versioned document path.
func WithEnhancedFile(path string) Option {
	return func(s *FileStore) {
		if path != "" {
			s.enhancedPath = path
		}
	}
}

// WithBackupDir overrides the backup directory.
func WithBackupDir(dir string) Option {
	return func(s *FileStore) {
		if dir != "" {
			s.backupDir = dir
		}
	}
}

// WithBackupRetention sets how many backups are kept.
func WithBackupRetention(n int) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithClock sets the time source used for backup names and defaults.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the id source used by migrations and defaults.
func WithIDGenerator(fn func() string) Option {
	return func(s *FileStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.log = l
		}
	}
}

// FlusherOption applies a configuration option to the Flusher.
type FlusherOption func(*Flusher)

// WithDebounce sets the trailing delay between a dirty signal and the save.
func WithDebounce(d time.Duration) FlusherOption {
	return func(f *Flusher) {
		if d > 0 {
			f.debounce = d
		}
	}
}

// WithFlusherLogger sets the flusher logger.
func WithFlusherLogger(l logger.Logger) FlusherOption {
	return func(f *Flusher) {
		if l != nil {
			f.log = l
		}
	}
}

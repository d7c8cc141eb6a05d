package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const storageDirPerm = 0o755

// Storage manages the temporary storage directory: the single shared mutable
// resource of the service. Files are created by the download pipeline, read by
// the file server, and deleted by either the sweeper (time-based) or the file
// server (serve-based). Presence on disk defines existence; the in-memory
// registry mirrors it so the stored-file gauge and sweep decisions do not need
// repeated stats.
type Storage struct {
	fs  afero.Fs
	dir string

	mu    sync.RWMutex
	files map[string]StoredFile
}

// NewStorage returns a Storage rooted at dir on the given filesystem.
// Call Init before use.
func NewStorage(fs afero.Fs, dir string) *Storage {
	return &Storage{
		fs:    fs,
		dir:   dir,
		files: make(map[string]StoredFile),
	}
}

// Init ensures the storage directory exists and seeds the registry from any
// entries already on disk (files leaked by a crash keep their mod time as
// creation time, so the sweeper still reclaims them).
func (s *Storage) Init() error {
	if err := s.fs.MkdirAll(s.dir, storageDirPerm); err != nil {
		return fmt.Errorf("create storage dir %q: %w", s.dir, err)
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("list storage dir %q: %w", s.dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		s.files[e.Name()] = StoredFile{Name: e.Name(), CreatedAt: e.ModTime()}
	}
	return nil
}

// Dir returns the storage directory path.
func (s *Storage) Dir() string {
	return s.dir
}

// Count returns the number of registered files. Used for metrics.
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Create opens a new file for writing and registers it with the current time.
func (s *Storage) Create(name string) (afero.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Create(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.files[name] = StoredFile{Name: name, CreatedAt: time.Now()}
	s.mu.Unlock()
	return f, nil
}

// Adopt registers a file that was produced outside Storage (the transcoder
// writes its output directly). Returns ErrNotFound if it is not on disk.
func (s *Storage) Adopt(name string) (StoredFile, error) {
	path, err := s.resolve(name)
	if err != nil {
		return StoredFile{}, err
	}

	if _, err := s.fs.Stat(path); err != nil {
		return StoredFile{}, ErrNotFound
	}

	sf := StoredFile{Name: name, CreatedAt: time.Now()}
	s.mu.Lock()
	s.files[name] = sf
	s.mu.Unlock()
	return sf, nil
}

// Open returns a reader over the named file, or ErrNotFound if it does not
// exist under the storage directory. The name is canonicalized and contained
// within the directory before opening.
func (s *Storage) Open(name string) (afero.File, os.FileInfo, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, nil, err
	}

	info, err := s.fs.Stat(path)
	if err != nil || info.IsDir() {
		return nil, nil, ErrNotFound
	}

	f, err := s.fs.Open(path)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// Size returns the on-disk size of the named file.
func (s *Storage) Size(name string) (int64, error) {
	path, err := s.resolve(name)
	if err != nil {
		return 0, err
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		return 0, ErrNotFound
	}
	return info.Size(), nil
}

// Remove deletes the named file and unregisters it. Removing a file that is
// already gone is not an error.
func (s *Storage) Remove(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.files, name)
	s.mu.Unlock()

	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sweep deletes every file in the storage directory older than retention,
// returning how many were removed. The directory listing is the source of
// truth so files unknown to the registry are reclaimed too. Any listing or
// removal failure aborts the cycle; the caller decides whether to surface it.
func (s *Storage) Sweep(now time.Time, retention time.Duration) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("list storage dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if now.Sub(e.ModTime()) <= retention {
			continue
		}
		if err := s.Remove(e.Name()); err != nil {
			return removed, fmt.Errorf("remove %q: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// resolve canonicalizes name and rejects anything that would escape the
// storage directory. Filenames served here come straight from the request
// path, so only plain base names are accepted.
func (s *Storage) resolve(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean != filepath.Base(clean) || clean == "." || clean == ".." || filepath.IsAbs(clean) {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, clean), nil
}

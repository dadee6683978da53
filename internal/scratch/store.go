package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"audio-compressor/internal/logging"
	"audio-compressor/internal/metrics"
)

// ErrStorageUnavailable is returned when the scratch directory cannot hold a
// new file: it is missing, not writable, or out of space.
var ErrStorageUnavailable = errors.New("scratch storage unavailable")

// ErrUploadRead is returned by SaveUpload when the upload itself could not be
// read to the end.
var ErrUploadRead = errors.New("upload could not be read")

const (
	kindInput  = "input"
	kindOutput = "output"

	// OutputExt is the extension given to every transcode result.
	OutputExt = ".mp3"

	maxExtLen = 10
)

// Upload describes an uploaded audio file persisted to scratch.
type Upload struct {
	Path        string
	Filename    string
	ContentType string // advisory, as declared by the client
	Size        int64
}

// Store reserves and releases files inside one scratch directory.
type Store struct {
	dir   string
	retry RetryConfig

	mu   sync.Mutex
	live map[string]struct{}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving scratch dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrStorageUnavailable, abs, err)
	}

	return &Store{
		dir:   abs,
		retry: DefaultRetryConfig(),
		live:  make(map[string]struct{}),
	}, nil
}

// Dir returns the absolute scratch directory.
func (s *Store) Dir() string {
	return s.dir
}

// AllocateInput reserves a unique path for an uploaded file. ext is taken
// from the client filename and is dropped if it does not look like a plain
// extension.
func (s *Store) AllocateInput(ext string) (string, error) {
	return s.allocate(kindInput, sanitizeExt(ext))
}

// AllocateOutput reserves a unique path for a transcode result.
func (s *Store) AllocateOutput() (string, error) {
	return s.allocate(kindOutput, OutputExt)
}

func (s *Store) allocate(kind, ext string) (string, error) {
	path := filepath.Join(s.dir, kind+"-"+uuid.NewString()+ext)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: reserving %s: %w", ErrStorageUnavailable, path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: reserving %s: %w", ErrStorageUnavailable, path, err)
	}

	s.track(path)
	return path, nil
}

// SaveUpload persists r to a freshly allocated input path. On failure nothing
// is left behind in scratch. Write failures wrap ErrStorageUnavailable; read
// failures are returned as-is so the caller can tell a broken upload from a
// broken disk.
func (s *Store) SaveUpload(r io.Reader, filename, contentType string) (*Upload, error) {
	path, err := s.AllocateInput(filepath.Ext(filename))
	if err != nil {
		return nil, err
	}

	if err := s.fill(path, r); err != nil {
		if relErr := s.Release(path); relErr != nil {
			logging.Warn("Failed to release %s after failed upload: %v", path, relErr)
		}
		return nil, err
	}

	size, err := s.Size(path)
	if err != nil {
		if relErr := s.Release(path); relErr != nil {
			logging.Warn("Failed to release %s after failed upload: %v", path, relErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return &Upload{
		Path:        path,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *Store) fill(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrStorageUnavailable, path, err)
	}

	src := &readTracker{r: r}
	_, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil && src.err != nil:
		return fmt.Errorf("%w: %w", ErrUploadRead, copyErr)
	case copyErr != nil:
		return fmt.Errorf("%w: writing %s: %w", ErrStorageUnavailable, path, copyErr)
	case closeErr != nil:
		return fmt.Errorf("%w: closing %s: %w", ErrStorageUnavailable, path, closeErr)
	}
	return nil
}

// readTracker remembers the last error returned by the source reader.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}

// Size returns the byte size of the file at path.
func (s *Store) Size(path string) (int64, error) {
	info, err := statWithRetry(path, s.retry)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Release deletes the file at path. A missing file or an empty path is not an
// error. Other failures are returned for logging only.
func (s *Store) Release(path string) error {
	if path == "" {
		return nil
	}

	s.untrack(path)

	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	metrics.ScratchReleaseErrors.Inc()
	return fmt.Errorf("releasing %s: %w", path, err)
}

// Active returns the number of files currently reserved and not yet released.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Store) track(path string) {
	s.mu.Lock()
	s.live[path] = struct{}{}
	n := len(s.live)
	s.mu.Unlock()
	metrics.ScratchFilesActive.Set(float64(n))
}

func (s *Store) untrack(path string) {
	s.mu.Lock()
	delete(s.live, path)
	n := len(s.live)
	s.mu.Unlock()
	metrics.ScratchFilesActive.Set(float64(n))
}

func (s *Store) isLive(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[path]
	return ok
}

// Purge removes input and output files that no in-flight request owns.
// Files not created by a Store are left alone. It returns the number of
// files removed.
func (s *Store) Purge() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading scratch dir: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !isScratchName(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if s.isLive(path) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Info("Purged %d orphaned scratch files from %s", removed, s.dir)
	}
	return removed, errors.Join(errs...)
}

// GetStats reports the files currently present in the scratch directory and
// how many of them are scratch files no request holds. It satisfies
// metrics.StatsProvider.
func (s *Store) GetStats() metrics.Stats {
	var stats metrics.Stats

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logging.Debug("Failed to read scratch dir for stats: %v", err)
		return stats
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Files++
		stats.Bytes += info.Size()
		if isScratchName(entry.Name()) && !s.isLive(filepath.Join(s.dir, entry.Name())) {
			stats.Orphans++
		}
	}
	return stats
}

// CheckWritable verifies a file can be created and removed in the scratch
// directory.
func (s *Store) CheckWritable() error {
	path, err := s.allocate("probe", "")
	if err != nil {
		return err
	}
	return s.Release(path)
}

func isScratchName(name string) bool {
	return strings.HasPrefix(name, kindInput+"-") ||
		strings.HasPrefix(name, kindOutput+"-") ||
		strings.HasPrefix(name, "probe-")
}

// sanitizeExt returns ext lowercased if it is a short alphanumeric extension,
// and "" otherwise.
func sanitizeExt(ext string) string {
	if ext == "" || ext == "." || len(ext) > maxExtLen || ext[0] != '.' {
		return ""
	}
	ext = strings.ToLower(ext)
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spherical/xtox/internal/domain"
)

var (
	_ domain.ArtifactSink = (*FileSink)(nil)
	_ domain.ArtifactSink = (*MemorySink)(nil)
)

// FileSink writes artifacts into a directory. Existing files are kept; a
// clashing name gets a " (n)" suffix before the extension.
type FileSink struct {
	dir       string
	overwrite bool
}

// NewFileSink creates a sink rooted at dir ("" means the working directory).
func NewFileSink(dir string, overwrite bool) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{dir: dir, overwrite: overwrite}
}

// Dir returns the target directory.
func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name = sanitize(name)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	target := filepath.Join(s.dir, name)
	if !s.overwrite {
		target = nextFree(target)
	}

	tmp, err := os.CreateTemp(s.dir, ".xtox-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("move into place: %w", err)
	}
	return target, nil
}

// sanitize keeps only the final path element so a service-supplied name
// cannot escape the output directory.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "artifact"
	}
	return name
}

func nextFree(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// MemorySink keeps artifacts in memory, keyed by name.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (s *MemorySink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	return "memory://" + name, nil
}

// Get returns a saved artifact.
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	return data, ok
}

// Names lists saved artifacts in sorted order.
func (s *MemorySink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

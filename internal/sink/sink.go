// Package sink provides the destinations generated files are written to.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Sink reads and writes generated files by slash-separated relative path.
// Implementations must be safe for concurrent calls on disjoint paths.
type Sink interface {
	// Read returns the current content of path. A missing file yields an
	// error matching fs.ErrNotExist.
	Read(ctx context.Context, path string) ([]byte, error)
	// Write stores content at path. When overwrite is false and the file
	// already exists, Write fails with an error matching fs.ErrExist.
	Write(ctx context.Context, path string, content []byte, overwrite bool) error
}

func existsErr(path string) error {
	return fmt.Errorf("sink: %q: %w", path, fs.ErrExist)
}

func notExistErr(path string) error {
	return fmt.Errorf("sink: %q: %w", path, fs.ErrNotExist)
}

// Filesystem writes below Root on the local filesystem.
type Filesystem struct {
	Root string
	// Mode is the file permission mode (default 0644).
	Mode os.FileMode
}

// NewFilesystem returns a sink rooted at root.
func NewFilesystem(root string) *Filesystem {
	return &Filesystem{Root: root, Mode: 0o644}
}

func (s *Filesystem) resolve(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", fmt.Errorf("sink: invalid path %q: %w", path, err)
	}
	absRoot, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("sink: resolve root: %w", err)
	}
	full := filepath.Join(absRoot, filepath.FromSlash(path))
	if !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("sink: path escapes root directory: %q", path)
	}
	return full, nil
}

// Read implements Sink.
func (s *Filesystem) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Write implements Sink with a temp file and rename (or hard link when the
// target must not exist), so readers never observe a partial file.
func (s *Filesystem) Write(ctx context.Context, path string, content []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sink: create directories: %w", err)
	}

	mode := s.Mode
	if mode == 0 {
		mode = 0o644
	}

	tmp, err := os.CreateTemp(dir, ".eyriegen-*.tmp")
	if err != nil {
		return fmt.Errorf("sink: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	_, writeErr := tmp.Write(content)
	closeErr := tmp.Close()
	if writeErr != nil {
		cleanup()
		return fmt.Errorf("sink: write temp file: %w", writeErr)
	}
	if closeErr != nil {
		cleanup()
		return fmt.Errorf("sink: close temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		cleanup()
		return fmt.Errorf("sink: set file mode: %w", err)
	}

	if overwrite {
		if err := os.Rename(tmpPath, full); err != nil {
			cleanup()
			return fmt.Errorf("sink: rename temp file: %w", err)
		}
		return nil
	}

	// os.Link fails atomically when the target exists.
	err = os.Link(tmpPath, full)
	cleanup()
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return existsErr(path)
		}
		return fmt.Errorf("sink: create file: %w", err)
	}
	return nil
}

// Memory keeps files in memory. Used by tests and by Plan as scratch space.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// Read implements Sink.
func (s *Memory) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[path]
	if !ok {
		return nil, notExistErr(path)
	}
	return append([]byte(nil), content...), nil
}

// Write implements Sink.
func (s *Memory) Write(ctx context.Context, path string, content []byte, overwrite bool) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("sink: invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; ok && !overwrite {
		return existsErr(path)
	}
	s.files[path] = append([]byte(nil), content...)
	return nil
}

// Paths returns the stored paths, sorted.
func (s *Memory) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for path := range s.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// PlannedWrite is one write a Plan would have performed.
type PlannedWrite struct {
	Path    string
	Bytes   int
	Existed bool
}

// Plan records writes without performing them. Reads fall through to Base
// unless the path was written during the plan.
type Plan struct {
	Base Sink

	mu      sync.Mutex
	pending *Memory
	writes  map[string]PlannedWrite
}

// NewPlan returns a dry-run sink over base. base may be nil.
func NewPlan(base Sink) *Plan {
	return &Plan{Base: base, pending: NewMemory(), writes: make(map[string]PlannedWrite)}
}

// Read implements Sink.
func (p *Plan) Read(ctx context.Context, path string) ([]byte, error) {
	content, err := p.pending.Read(ctx, path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return content, err
	}
	if p.Base == nil {
		return nil, notExistErr(path)
	}
	return p.Base.Read(ctx, path)
}

// Write implements Sink.
func (p *Plan) Write(ctx context.Context, path string, content []byte, overwrite bool) error {
	_, err := p.Read(ctx, path)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if existed && !overwrite {
		return existsErr(path)
	}
	if err := p.pending.Write(ctx, path, content, true); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.writes[path]; ok {
		existed = prev.Existed
	}
	p.writes[path] = PlannedWrite{Path: path, Bytes: len(content), Existed: existed}
	return nil
}

// Writes returns the planned writes sorted by path.
func (p *Plan) Writes() []PlannedWrite {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlannedWrite, 0, len(p.writes))
	for _, w := range p.writes {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ValidatePath checks that path is relative, slash-separated, clean and does
// not traverse upwards.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return errors.New("absolute paths not allowed")
	}
	if len(path) >= 2 && path[1] == ':' {
		return errors.New("absolute paths not allowed")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return errors.New("path traversal not allowed")
		}
	}
	if cleaned := filepath.ToSlash(filepath.Clean(path)); cleaned != path {
		return fmt.Errorf("path is not clean (expected %q)", cleaned)
	}
	return nil
}

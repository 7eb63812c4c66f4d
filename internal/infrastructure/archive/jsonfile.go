package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/google/uuid"
)

var _ output.SessionArchive = (*FileArchive)(nil)

// FileArchive keeps one indented JSON document per session under a directory.
type FileArchive struct {
	dir string
	mu  sync.Mutex
}

func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive.NewFileArchive: %w", err)
	}
	return &FileArchive{dir: dir}, nil
}

func (a *FileArchive) Save(ctx context.Context, result entity.SessionResult) error {
	path, err := a.path(result.SessionID)
	if err != nil {
		return fmt.Errorf("archive.FileArchive.Save: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("archive.FileArchive.Save: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("archive.FileArchive.Save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive.FileArchive.Save: %w", err)
	}
	return nil
}

func (a *FileArchive) Get(ctx context.Context, id string) (*entity.SessionResult, error) {
	path, err := a.path(id)
	if err != nil {
		return nil, fmt.Errorf("archive.FileArchive.Get: %w", err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("archive.FileArchive.Get: session %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("archive.FileArchive.Get: %w", err)
	}

	var result entity.SessionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("archive.FileArchive.Get: decode %s: %w", path, err)
	}
	return &result, nil
}

// List returns the IDs of all archived sessions, sorted.
func (a *FileArchive) List(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(a.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("archive.FileArchive.List: %w", err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, filepath.Base(m[:len(m)-len(".json")]))
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *FileArchive) Close() error {
	return nil
}

// path only accepts UUIDs so an ID can never escape the archive directory.
func (a *FileArchive) path(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", &entity.ValidationError{Field: "session_id", Reason: fmt.Sprintf("%q is not a session ID", id)}
	}
	return filepath.Join(a.dir, parsed.String()+".json"), nil
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	fileutil "pdfdesk/internal/file"
)

const manifestName = "manifest.json"

var (
	ErrInvalidName = errors.New("invalid name")
	ErrNotFound    = errors.New("output not found")
)

// Manifest records what was delivered for a task.
type Manifest struct {
	TaskID    string    `json:"task_id"`
	Strategy  Strategy  `json:"strategy"`
	Files     []File    `json:"files"`
	CreatedAt time.Time `json:"created_at"`
}

type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Store keeps delivered outputs under data_dir/outputs/<taskID>/.
type Store interface {
	EnsureTaskDir(ctx context.Context, taskID string) (string, error)
	Path(taskID, name string) (string, error)
	SaveManifest(ctx context.Context, m Manifest) error
	LoadManifest(ctx context.Context, taskID string) (Manifest, error)
	List(ctx context.Context) ([]Manifest, error)
	Remove(ctx context.Context, taskID string) error
}

type fileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) Store {
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) root() string {
	return filepath.Join(s.dataDir, "outputs")
}

func (s *fileStore) taskDir(taskID string) (string, error) {
	if err := checkName(taskID); err != nil {
		return "", err
	}
	return filepath.Join(s.root(), taskID), nil
}

func (s *fileStore) EnsureTaskDir(ctx context.Context, taskID string) (string, error) {
	dir, err := s.taskDir(taskID)
	if err != nil {
		return "", err
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("ensure task dir: %w", err)
	}
	return dir, nil
}

// Path resolves a delivered file. name must be a plain file name.
func (s *fileStore) Path(taskID, name string) (string, error) {
	dir, err := s.taskDir(taskID)
	if err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (s *fileStore) SaveManifest(ctx context.Context, m Manifest) error {
	dir, err := s.EnsureTaskDir(ctx, m.TaskID)
	if err != nil {
		return err
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(dir, manifestName), m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (s *fileStore) LoadManifest(ctx context.Context, taskID string) (Manifest, error) {
	dir, err := s.taskDir(taskID)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := fileutil.ReadJSON(filepath.Join(dir, manifestName), &m); err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, err
	}
	return m, nil
}

// List returns every manifest, newest first. Unreadable entries are skipped.
func (s *fileStore) List(ctx context.Context) ([]Manifest, error) {
	entries, err := os.ReadDir(s.root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	manifests := make([]Manifest, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := s.LoadManifest(ctx, e.Name())
		if err != nil {
			continue
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].CreatedAt.After(manifests[j].CreatedAt) })
	return manifests, nil
}

func (s *fileStore) Remove(ctx context.Context, taskID string) error {
	dir, err := s.taskDir(taskID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove outputs: %w", err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name == manifestName {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

package fleet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("fleet: record not found")

// ErrInvalidID is returned for ids that cannot name an override record.
var ErrInvalidID = errors.New("fleet: invalid entity id")

var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidID reports whether id is safe to use as an override record name.
func ValidID(id string) bool {
	return validID.MatchString(id) && id != "." && id != ".."
}

// Store reads the master listing and per-entity override records.
type Store interface {
	ReadRoot(ctx context.Context) ([]byte, error)
	ReadOverride(ctx context.Context, id string) ([]byte, error)
	WriteOverride(ctx context.Context, id string, payload []byte) error
}

// FileStore keeps the listing in one JSON file and overrides as
// <overridesDir>/<id>.json.
type FileStore struct {
	rootFile     string
	overridesDir string
}

func NewFileStore(rootFile, overridesDir string) *FileStore {
	return &FileStore{rootFile: rootFile, overridesDir: overridesDir}
}

func (f *FileStore) RootFile() string     { return f.rootFile }
func (f *FileStore) OverridesDir() string { return f.overridesDir }

func (f *FileStore) ReadRoot(ctx context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.rootFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (f *FileStore) ReadOverride(ctx context.Context, id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	b, err := os.ReadFile(f.overridePath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (f *FileStore) WriteOverride(ctx context.Context, id string, payload []byte) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if err := os.MkdirAll(f.overridesDir, 0o755); err != nil {
		return fmt.Errorf("create overrides dir: %w", err)
	}
	path := f.overridePath(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileStore) overridePath(id string) string {
	return filepath.Join(f.overridesDir, id+".json")
}

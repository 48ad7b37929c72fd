package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/types"
)

// FileVersion is written into every sidecar
const FileVersion = "1"

// ErrNotFound is returned by Load when an image has no stored edit
var ErrNotFound = errors.New("no stored edit")

// File is the on-disk sidecar structure
type File struct {
	Version   string           `json:"version"`
	Source    string           `json:"source"`
	UpdatedAt time.Time        `json:"updated_at"`
	Params    types.EditParams `json:"params"`
}

// Store persists edit parameters next to the images they belong to, or in a
// separate directory when one is given
type Store struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

// NewStore creates a sidecar store. An empty dir keeps sidecars beside their
// images.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Path returns where the sidecar for imagePath lives
func (s *Store) Path(imagePath string) string {
	if s.dir == "" {
		return utils.SidecarPath(imagePath)
	}
	return filepath.Join(s.dir, filepath.Base(utils.SidecarPath(imagePath)))
}

// Save writes params for imagePath, assigning a session ID when it has none.
// The stored params are returned.
func (s *Store) Save(imagePath string, params types.EditParams) (types.EditParams, error) {
	if err := params.Validate(); err != nil {
		return params, err
	}
	if params.SessionID == "" {
		params.SessionID = uuid.NewString()
	}

	f := File{
		Version:   FileVersion,
		Source:    filepath.Base(imagePath),
		UpdatedAt: s.now().UTC(),
		Params:    params,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return params, fmt.Errorf("failed to marshal sidecar: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(imagePath)
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return params, fmt.Errorf("failed to create sidecar directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return params, fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return params, fmt.Errorf("failed to write sidecar: %w", err)
	}
	return params, nil
}

// Load reads the stored edit for imagePath
func (s *Store) Load(imagePath string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(imagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar: %w", err)
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("%w: sidecar version %q", types.ErrInvalidParams, f.Version)
	}
	if err := f.Params.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadParams reads just the edit parameters for imagePath
func (s *Store) LoadParams(imagePath string) (types.EditParams, error) {
	f, err := s.Load(imagePath)
	if err != nil {
		return types.EditParams{}, err
	}
	return f.Params, nil
}

// LoadFile reads a sidecar by its own path rather than its image's
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar: %w", err)
	}
	if err := f.Params.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Exists reports whether imagePath has a stored edit
func (s *Store) Exists(imagePath string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return utils.FileExists(s.Path(imagePath))
}

// Delete removes the stored edit for imagePath; a missing sidecar is not an error
func (s *Store) Delete(imagePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(imagePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete sidecar: %w", err)
	}
	return nil
}

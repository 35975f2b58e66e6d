package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/home-alarm-central/internal/config"
	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
	"github.com/oshokin/home-alarm-central/internal/snapshot"
)

// Repository defines persistence operations for the alarm snapshot.
type Repository interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap *domain.Snapshot) error
}

// FileRepository persists the snapshot to a JSON file on disk.
// JSON is produced and consumed via protojson using the same Struct layout
// the control API returns.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s structpb.Struct
	if err = protojson.Unmarshal(contents, &s); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	snap, err := snapshot.FromStruct(&s)
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return snap, nil
}

// Save replaces the file atomically so a power cut never leaves half a snapshot.
func (r *FileRepository) Save(_ context.Context, snap *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := snapshot.ToStruct(snap)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := r.path + ".tmp"

	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

var _ ports.ArtifactStore = (*ArtifactStore)(nil)

// ArtifactStore implements ports.ArtifactStore using the local filesystem.
//
// Layout:
//
//	<base>/<run>/<node>.json          the artifact record
//	<base>/<run>/<node>/<name><ext>   the rendered content, for humans and tools
type ArtifactStore struct {
	BasePath string
}

// New creates an ArtifactStore rooted at basePath.
// If basePath is empty, it defaults to ".strata/artifacts".
func New(basePath string) *ArtifactStore {
	if basePath == "" {
		basePath = filepath.Join(".strata", "artifacts")
	}
	return &ArtifactStore{BasePath: basePath}
}

func (s *ArtifactStore) dir(runID, nodeID string) (string, error) {
	for _, part := range []string{runID, nodeID} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid path segment %q", part)
		}
	}
	return filepath.Join(s.BasePath, runID, nodeID), nil
}

// ContentPath returns where the rendered content of an artifact is written.
func (s *ArtifactStore) ContentPath(runID, nodeID string, artifact *domain.Artifact) (string, error) {
	dir, err := s.dir(runID, nodeID)
	if err != nil {
		return "", err
	}
	name := artifact.Name
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		name = nodeID
	}
	return filepath.Join(dir, name+artifact.Extension()), nil
}

// SaveArtifact writes the content file and then the record, both atomically.
func (s *ArtifactStore) SaveArtifact(ctx context.Context, runID, nodeID string, artifact *domain.Artifact) error {
	dir, err := s.dir(runID, nodeID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure artifact directory: %w", err)
	}

	contentPath, err := s.ContentPath(runID, nodeID, artifact)
	if err != nil {
		return err
	}
	if err := writeAtomic(dir, contentPath, []byte(artifact.Content)); err != nil {
		return err
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return writeAtomic(filepath.Dir(dir), dir+".json", data)
}

// LoadArtifact reads the artifact record.
func (s *ArtifactStore) LoadArtifact(ctx context.Context, runID, nodeID string) (*domain.Artifact, error) {
	dir, err := s.dir(runID, nodeID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(dir + ".json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to read artifact file: %w", err)
	}

	var a domain.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	return &a, nil
}

// writeAtomic writes to a temp file in dir, syncs it and renames it over dest.
func writeAtomic(dir, dest string, data []byte) error {
	// 1. Create Temp File
	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Rename
	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

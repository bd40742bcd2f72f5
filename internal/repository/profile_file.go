package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/companion/internal/domain"
)

// ProfileFileRepository stores the profile as a single JSON document on disk.
type ProfileFileRepository struct {
	path string
}

func NewProfileFileRepository(path string) *ProfileFileRepository {
	return &ProfileFileRepository{path: path}
}

// Load reads the profile. A missing file yields an empty profile.
func (r *ProfileFileRepository) Load(ctx context.Context) (*domain.Profile, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &domain.Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domain.Wrap(domain.ErrInvalidProfile, err)
	}
	return &p, nil
}

// Save writes p to a temporary file and renames it over the profile, so a
// crash never leaves a half written document.
func (r *ProfileFileRepository) Save(ctx context.Context, p *domain.Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".profile-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close profile: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace profile: %w", err)
	}
	return nil
}

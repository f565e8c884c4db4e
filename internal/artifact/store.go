// Package artifact stores and retrieves pipeline artifacts under
// hierarchical run/topic keys. The backing store is a directory tree;
// keys map directly to relative file paths, and each stage writes
// distinct keys so writers never collide.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"newscastd/internal/config"
	"newscastd/internal/services"
)

// Store persists artifacts beneath a root directory.
type Store struct {
	root string
}

// NewStore creates an artifact store rooted at the configured data
// directory.
func NewStore(cfg *config.Config) (*Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.Paths.DataDir) == "" {
		return nil, errors.New("artifact store requires a data directory")
	}
	root := filepath.Join(cfg.Paths.DataDir, "artifacts")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// NewStoreAt creates an artifact store rooted at an explicit directory.
func NewStoreAt(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("artifact store requires a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory backing the store.
func (s *Store) Root() string { return s.root }

func (s *Store) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if cleaned == "." || cleaned == "" || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Put writes data under key, creating parent directories as needed.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	return nil
}

// PutJSON marshals value with indentation and stores it under key.
func (s *Store) PutJSON(ctx context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// Get returns the full contents stored under key. A missing key is
// reported with the services.ErrNotFound marker.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "artifact", "get", key, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

// GetJSON unmarshals the artifact stored under key into out.
func (s *Store) GetJSON(ctx context.Context, key string, out any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrValidation, "artifact", "decode", key, err)
	}
	return nil
}

// Head reports whether key exists and, if so, its size in bytes.
func (s *Store) Head(ctx context.Context, key string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return 0, false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("stat artifact %s: %w", key, err)
	}
	if info.IsDir() {
		return 0, false, fmt.Errorf("artifact key %s is a directory", key)
	}
	return info.Size(), true, nil
}

// ReadFirst returns up to n leading bytes of the artifact, used for
// structural sniffs without loading whole audio files.
func (s *Store) ReadFirst(ctx context.Context, key string, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "artifact", "read-first", key, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", key, err)
	}
	defer file.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return buf[:read], nil
}

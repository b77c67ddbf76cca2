package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// ErrCacheMiss is returned by Cache.Load when nothing is stored for a domain.
var ErrCacheMiss = errors.New("data cache miss")

// Cache persists refreshed datasets so they survive restarts.
type Cache interface {
	Load(ctx context.Context, domain decisionkit.Domain) (Dataset, error)
	Save(ctx context.Context, domain decisionkit.Domain, ds Dataset) error
	Close() error
}

// FileCache stores each dataset as <dir>/<domain>_data.json.
type FileCache struct {
	dir string
	mu  sync.Mutex
}

// NewFileCache creates a file cache rooted at dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Path returns the file a domain is cached in.
func (c *FileCache) Path(domain decisionkit.Domain) string {
	return filepath.Join(c.dir, domain.String()+"_data.json")
}

// Load implements Cache.
func (c *FileCache) Load(ctx context.Context, domain decisionkit.Domain) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.Path(domain))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached %s data: %w", domain, err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode cached %s data: %w", domain, err)
	}
	return ds, nil
}

// Save implements Cache. Files are written to a temp file and renamed.
func (c *FileCache) Save(ctx context.Context, domain decisionkit.Domain, ds Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s data: %w", domain, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, domain.String()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s data: %w", domain, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s data: %w", domain, err)
	}
	if err := os.Rename(tmp.Name(), c.Path(domain)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to persist %s data: %w", domain, err)
	}
	return nil
}

// Close implements Cache.
func (c *FileCache) Close() error { return nil }

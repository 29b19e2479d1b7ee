package objectclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/railchat/internal/core"
)

// LocalClient stores objects as files under a root directory. Used when no
// bucket is configured.
type LocalClient struct {
	root string
}

func NewLocalClient(root string) (*LocalClient, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", root, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalClient{root: abs}, nil
}

func (c *LocalClient) path(key string) (string, error) {
	p := filepath.Join(c.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, c.root+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes blob root", key)
	}
	return p, nil
}

func (c *LocalClient) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	p, err := c.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistenceUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistenceUnavailable, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: write %s: %w", core.ErrPersistenceUnavailable, key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistenceUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistenceUnavailable, err)
	}
	return "file://" + filepath.ToSlash(p), nil
}

func (c *LocalClient) GetFile(ctx context.Context, key string) ([]byte, error) {
	p, err := c.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("get %s: %w", key, core.ErrNotFound)
	}
	return b, err
}

func (c *LocalClient) Exists(ctx context.Context, key string) (bool, error) {
	p, err := c.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (c *LocalClient) DeleteFile(ctx context.Context, key string) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ core.ObjectClient = (*LocalClient)(nil)

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	getter "github.com/hashicorp/go-getter"
)

const registryFetchTimeout = 120 * time.Second

// FetchRegistry downloads a chain config source into a temporary directory and
// returns the path of chainsFile inside it. The source can be anything go-getter
// understands: a local path, an http url, a git repo or an s3 bucket. The caller
// removes the returned directory.
func FetchRegistry(ctx context.Context, source, chainsFile string) (path string, dir string, err error) {
	dir, err = os.MkdirTemp("", "xcs-registry-")
	if err != nil {
		return "", "", fmt.Errorf("failed to create registry dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, registryFetchTimeout)
	defer cancel()

	pwd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working dir: %w", err)
	}
	dst := filepath.Join(dir, "registry")
	client := getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeAny,
	}
	if err := client.Get(); err != nil {
		return "", "", fmt.Errorf("failed to download registry: %w", err)
	}

	// a single file source lands at dst itself
	if info, statErr := os.Stat(dst); statErr == nil && !info.IsDir() {
		path = dst + filepath.Ext(chainsFile)
		if err := os.Rename(dst, path); err != nil {
			return "", "", fmt.Errorf("failed to rename registry file: %w", err)
		}
		return path, dir, nil
	}
	path = filepath.Join(dst, chainsFile)
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("registry source has no %s: %w", chainsFile, err)
	}
	return path, dir, nil
}

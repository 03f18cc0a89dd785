// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// maxNameAttempts bounds retries after filename collisions.
const maxNameAttempts = 16

// FS stores images in a local directory that is served under urlPrefix.
type FS struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewFS creates the upload directory if needed and returns a store rooted
// there. urlPrefix is the public path the directory is served under
// (e.g. "/uploads").
func NewFS(dir, urlPrefix string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	prefix := "/" + strings.Trim(urlPrefix, "/")
	slog.Info("filesystem asset store ready", "dir", dir, "prefix", prefix)
	return &FS{dir: dir, urlPrefix: prefix, now: time.Now}, nil
}

// Dir returns the directory files are written to.
func (s *FS) Dir() string {
	return s.dir
}

// URLPrefix returns the public path prefix.
func (s *FS) URLPrefix() string {
	return s.urlPrefix
}

// Save writes the upload to a new file. Files are created exclusively so
// an existing asset is never overwritten.
func (s *FS) Save(ctx context.Context, u Upload) (string, error) {
	if err := Validate(u); err != nil {
		return "", err
	}

	now := s.now()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := objectName(u, now, attempt)
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create asset file: %w", err)
		}

		written, err := io.Copy(f, io.LimitReader(u.Body, MaxUploadSize+1))
		if err == nil && written > MaxUploadSize {
			err = fmt.Errorf("image exceeds %d bytes", MaxUploadSize)
		}
		if err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write asset file: %w", err)
		}
		// The file is durable before its path is returned.
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("sync asset file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("close asset file: %w", err)
		}
		return path.Join(s.urlPrefix, name), nil
	}
	return "", fmt.Errorf("create asset file: no free name after %d attempts", maxNameAttempts)
}

// Exists reports whether the file behind a public path is present.
func (s *FS) Exists(_ context.Context, publicPath string) (bool, error) {
	full, ok := s.resolve(publicPath)
	if !ok {
		return false, nil
	}
	_, err := os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat asset: %w", err)
}

// Delete removes the file behind a public path. Missing files are ignored.
func (s *FS) Delete(_ context.Context, publicPath string) error {
	full, ok := s.resolve(publicPath)
	if !ok {
		return nil
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

// resolve maps a public path to a file inside the upload directory.
// Paths outside the prefix, or escaping the directory, are rejected.
func (s *FS) resolve(publicPath string) (string, bool) {
	clean := path.Clean("/" + strings.TrimSpace(publicPath))
	prefix := s.urlPrefix + "/"
	if !strings.HasPrefix(clean, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(clean, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage persists uploaded images. Two backends are provided: a
// local directory served as static files, and an S3-compatible bucket.
// Both hand out the public path recorded in a post's featuredImage and
// accept that same path back for deletion.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// MaxUploadSize is the largest accepted image (5 MB).
const MaxUploadSize = 5 << 20

// ErrUnsupportedType is returned for anything other than JPEG or PNG.
var ErrUnsupportedType = errors.New("images only: JPEG or PNG")

// allowedExtensions maps accepted file extensions to their content types.
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// allowedTypes are the declared content types accepted for upload.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// Upload is an image received from a client, not yet stored.
type Upload struct {
	Field       string // form field name, used to namespace the stored filename
	Filename    string // client-supplied original name
	ContentType string // declared content type
	Size        int64
	Body        io.Reader
}

// AssetStore saves and removes uploaded images.
type AssetStore interface {
	// Save stores the upload and returns its public path.
	Save(ctx context.Context, u Upload) (string, error)
	// Exists reports whether an asset is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes the asset at path. Deleting a missing asset is not an error.
	Delete(ctx context.Context, path string) error
}

// Validate checks the upload's extension and declared content type. Both
// must name JPEG or PNG.
func Validate(u Upload) error {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return ErrUnsupportedType
	}
	ct := strings.ToLower(strings.TrimSpace(u.ContentType))
	if i := strings.IndexByte(ct, ';'); i != -1 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !allowedTypes[ct] {
		return ErrUnsupportedType
	}
	if u.Size > MaxUploadSize {
		return fmt.Errorf("image too large: %d bytes exceeds %d", u.Size, MaxUploadSize)
	}
	return nil
}

// objectName builds the stored filename: "<field>-<unix nanos><ext>".
// attempt > 0 appends a counter after a name collision.
func objectName(u Upload, now time.Time, attempt int) string {
	field := u.Field
	if field == "" {
		field = "image"
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if attempt == 0 {
		return fmt.Sprintf("%s-%d%s", field, now.UnixNano(), ext)
	}
	return fmt.Sprintf("%s-%d-%d%s", field, now.UnixNano(), attempt, ext)
}

// contentTypeFor returns the canonical content type for a stored name.
func contentTypeFor(name string) string {
	if ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// DeleteIfPresent removes path unless it is empty or the placeholder,
// checking existence first. It reports whether a file was removed.
func DeleteIfPresent(ctx context.Context, store AssetStore, path, placeholder string) (bool, error) {
	if path == "" || path == placeholder {
		return false, nil
	}
	ok, err := store.Exists(ctx, path)
	if err != nil {
		return false, fmt.Errorf("check asset %s: %w", path, err)
	}
	if !ok {
		return false, nil
	}
	if err := store.Delete(ctx, path); err != nil {
		return false, fmt.Errorf("delete asset %s: %w", path, err)
	}
	return true, nil
}

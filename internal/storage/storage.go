// Package storage persists uploaded files (resumes, check-in photos) on
// local disk and hands back opaque references. Core records store only the
// reference; nothing else in the system assumes files live on disk, so a
// bucket-backed implementation can replace this one behind the same
// interface.
package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/gatehouse/gatehouse/internal/apperr"
)

// maxFileSize caps accepted uploads at 10 MiB.
const maxFileSize = 10 << 20

// Meta describes an upload.
type Meta struct {
	// Kind groups files into subdirectories: "resume", "checkin_photo".
	Kind string
	// Filename is the client's name for the file; only its extension is kept.
	Filename string
}

// Store is the file persistence interface core components depend on.
type Store interface {
	// Save persists raw bytes and returns an opaque reference.
	Save(data []byte, meta Meta) (string, error)

	// SaveDataURL decodes a data: URL (as produced by browser file inputs)
	// and persists its payload.
	SaveDataURL(dataURL string, meta Meta) (string, error)

	// Open returns the bytes behind a reference.
	Open(ref string) ([]byte, error)

	// Remove deletes the file behind a reference. Removing a missing
	// reference is not an error.
	Remove(ref string) error
}

// Disk is the local-filesystem Store.
type Disk struct {
	root string
}

// NewDisk creates a Disk store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", dir, err)
	}
	return &Disk{root: dir}, nil
}

// Save implements Store. References look like "resume/3f2a...-b1.pdf" and
// never contain client-controlled path segments.
func (d *Disk) Save(data []byte, meta Meta) (string, error) {
	if len(data) == 0 {
		return "", apperr.Validation("file", "empty upload")
	}
	if len(data) > maxFileSize {
		return "", apperr.Validation("file", "exceeds %d byte limit", maxFileSize)
	}
	kind := meta.Kind
	if kind == "" {
		kind = "misc"
	}
	if strings.ContainsAny(kind, "/\\.") {
		return "", apperr.Validation("kind", "invalid storage kind %q", kind)
	}

	name := uuid.New().String() + safeExt(meta.Filename)
	dir := filepath.Join(d.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create dir %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return kind + "/" + name, nil
}

// SaveDataURL implements Store.
func (d *Disk) SaveDataURL(dataURL string, meta Meta) (string, error) {
	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	return d.Save(data, meta)
}

// Open implements Store.
func (d *Disk) Open(ref string) ([]byte, error) {
	path, err := d.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", ref, err)
	}
	return data, nil
}

// Remove implements Store.
func (d *Disk) Remove(ref string) error {
	path, err := d.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", ref, err)
	}
	return nil
}

// resolve maps a reference to a path under the root, rejecting traversal.
func (d *Disk) resolve(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", apperr.Validation("ref", "invalid reference %q", ref)
	}
	return filepath.Join(d.root, clean), nil
}

// safeExt returns the filename's extension when it is a plausible one,
// else nothing.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// DecodeDataURL extracts the payload of a base64 data: URL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, apperr.Validation("file", "not a data URL")
	}
	idx := strings.Index(dataURL, ",")
	if idx < 0 {
		return nil, apperr.Validation("file", "malformed data URL")
	}
	header, payload := dataURL[5:idx], dataURL[idx+1:]
	if !strings.HasSuffix(header, ";base64") {
		return nil, apperr.Validation("file", "only base64 data URLs are accepted")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperr.Validation("file", "invalid base64 payload")
	}
	return data, nil
}

// Package storage owns the on-disk media tree under the configured root:
// Images/, Sketches/, Audio/, Exports/. Files are stored under uuid names
// and referenced by root-relative refs like "Audio/<uuid>.m4a".
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	DirImages   = "Images"
	DirSketches = "Sketches"
	DirAudio    = "Audio"
	DirExports  = "Exports"
)

var mediaDirs = []string{DirImages, DirSketches, DirAudio, DirExports}

// Media manages the media tree rooted at a single directory.
type Media struct {
	root string
}

// NewMedia creates the media tree under root, building any missing
// subdirectories.
func NewMedia(root string) (*Media, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: root is required")
	}
	for _, dir := range mediaDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("storage: create %s: %w", dir, err)
		}
	}
	return &Media{root: root}, nil
}

// Root returns the tree's root directory.
func (m *Media) Root() string { return m.root }

// Dir returns the absolute path of one of the media subdirectories.
func (m *Media) Dir(name string) string {
	return filepath.Join(m.root, name)
}

// Resolve turns a root-relative ref into an absolute path.
func (m *Media) Resolve(ref string) string {
	return filepath.Join(m.root, ref)
}

// Place moves src into the given subdirectory under a fresh uuid name and
// returns the root-relative ref. The extension comes from extHint when
// provided, otherwise from src.
func (m *Media) Place(dir, src, extHint string) (string, error) {
	ext := extHint
	if ext == "" {
		ext = filepath.Ext(src)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	ref := filepath.Join(dir, uuid.NewString()+ext)
	if err := moveFile(src, m.Resolve(ref)); err != nil {
		return "", fmt.Errorf("storage: place %s: %w", src, err)
	}
	return ref, nil
}

// Remove deletes the file behind ref. Missing files are not an error.
func (m *Media) Remove(ref string) error {
	if err := os.Remove(m.Resolve(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", ref, err)
	}
	return nil
}

// moveFile moves src to dst, replacing any existing file. Rename is tried
// first; a copy-and-delete covers moves across volumes.
func moveFile(src, dst string) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

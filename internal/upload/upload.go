// Package upload persists request payloads to uniquely named temp files.
package upload

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// File is an upload stored on disk. The caller owns it and must call Remove.
type File struct {
	Path       string
	Filename   string
	Size       int64
	Blake3Hash string
}

// Save streams src into dir/<uuid><ext>, hashing it on the way.
func Save(dir string, src io.Reader, filename string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+safeExt(filename))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating upload file: %w", err)
	}

	h := blake3.New(32, nil)
	size, err := io.Copy(dst, io.TeeReader(src, h))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing upload file: %w", err)
	}

	return &File{
		Path:       path,
		Filename:   baseName(filename),
		Size:       size,
		Blake3Hash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Remove deletes the file. Removing an already deleted file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// baseName drops any client-supplied directories. An empty name stays empty.
func baseName(filename string) string {
	if strings.TrimSpace(filename) == "" {
		return ""
	}
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}

package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File stores one JSON file per slot inside dir. Writes go to a temp file that
// is renamed over the target, so a crash never leaves a half-written slot.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("file storage dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}

func (f *File) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSlotEmpty
	}
	return raw, err
}

func (f *File) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".slot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

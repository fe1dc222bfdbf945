package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore keeps blobs under Root, one directory per task and uploader.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Root: root}, nil
}

func (s *LocalStore) pathFor(key string) (string, error) {
	c, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(c)), nil
}

func (s *LocalStore) write(ctx context.Context, key string, r io.Reader) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}
	full, err := s.pathFor(key)
	if err != nil {
		return StoredFile{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return StoredFile{}, err
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredFile{}, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return StoredFile{}, err
	}
	return StoredFile{Key: key, Size: n}, nil
}

func (s *LocalStore) Put(ctx context.Context, taskID uuid.UUID, login string, r io.Reader, originalName string) (StoredFile, error) {
	return s.write(ctx, ObjectKey(taskID, login, originalName), r)
}

func (s *LocalStore) Copy(ctx context.Context, srcKey string, taskID uuid.UUID, login, originalName string) (StoredFile, error) {
	src, err := s.Open(ctx, srcKey)
	if err != nil {
		return StoredFile{}, err
	}
	defer src.Close()
	return s.write(ctx, ObjectKey(taskID, login, originalName), src)
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	full, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !st.IsDir(), nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

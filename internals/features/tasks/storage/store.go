// Package storage keeps task attachments and the per-task metadata mirror.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"schoolcrm_backend/internals/configs"
)

var (
	ErrObjectNotFound = errors.New("stored object not found")
	ErrInvalidKey     = errors.New("invalid storage key")
)

// StoredFile is the handle returned for a written blob.
type StoredFile struct {
	Key  string
	Size int64
}

type FileStore interface {
	Put(ctx context.Context, taskID uuid.UUID, login string, r io.Reader, originalName string) (StoredFile, error)
	// Copy duplicates the bytes behind srcKey under a new key for taskID/login.
	Copy(ctx context.Context, srcKey string, taskID uuid.UUID, login, originalName string) (StoredFile, error)
	Exists(ctx context.Context, key string) (bool, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// NewFileStore returns the backend selected by STORAGE_DRIVER.
func NewFileStore(cfg configs.StorageConfig, dataDir string) (FileStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(filepath.Join(dataDir, "uploads"))
	case "oss":
		return NewOSSStore(cfg)
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Driver)
	}
}

/* =======================================================================
   Keys
======================================================================= */

var (
	reUnsafe = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)
	reDashes = regexp.MustCompile(`-+`)
)

// SanitizeName keeps letters (any script), digits, dot, dash and underscore.
// Names are NFC-composed first so decomposed uploads map to the same key;
// runs of anything else become one dash and the result is capped at maxLen
// runes with the extension preserved.
func SanitizeName(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 120
	}
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))

	s := norm.NFC.String(name)
	s = reUnsafe.ReplaceAllString(s, "-")
	s = reDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")

	if utf8.RuneCountInString(s) > maxLen {
		ext := path.Ext(s)
		rs := []rune(strings.TrimSuffix(s, ext))
		keep := maxLen - utf8.RuneCountInString(ext)
		if keep < 1 {
			keep = 1
		}
		if len(rs) > keep {
			rs = rs[:keep]
		}
		s = strings.Trim(string(rs), "-.") + ext
	}
	if s == "" {
		s = "file"
	}
	return s
}

// ObjectKey builds tasks/<task>/<login>/<stamp>_<rand>_<name>.
func ObjectKey(taskID uuid.UUID, login, originalName string) string {
	return path.Join(
		"tasks",
		taskID.String(),
		SanitizeName(login, 64),
		fmt.Sprintf("%s_%s_%s", time.Now().UTC().Format("20060102_150405"), randHex(3), SanitizeName(originalName, 120)),
	)
}

// cleanKey rejects absolute keys and keys that climb out of the store root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	c := path.Clean(key)
	if path.IsAbs(c) || c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidKey
	}
	return c, nil
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

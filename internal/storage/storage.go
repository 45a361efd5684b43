package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrFileNotFound is returned when no file exists for a key.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidKey is returned for keys that would escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// FileStore persists avatar files.
type FileStore interface {
	// Save writes data at key, replacing any existing file.
	Save(ctx context.Context, key string, data []byte) error

	// Open returns a reader for the file at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Read returns the whole file at key.
	Read(ctx context.Context, key string) ([]byte, error)

	// Delete removes the file at key. Deleting a missing file is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a file exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the public URL of key.
	URL(key string) string
}

// UploadKey returns the content-addressed key for a file named name.
// Saving the same bytes under the same name always yields the same key.
func UploadKey(name string, data []byte) string {
	sum, _ := blake2b.New(16, nil)
	_, _ = sum.Write(data)
	return path.Join("avatars", hex.EncodeToString(sum.Sum(nil)), path.Base(name))
}

// AferoFileStore implements FileStore on an afero filesystem.
type AferoFileStore struct {
	fs       afero.Fs
	mediaURL string
	logger   *slog.Logger
}

var _ FileStore = (*AferoFileStore)(nil)

// NewAferoFileStore creates a store over fsys. mediaURL prefixes every key
// returned by URL and should end in a slash.
func NewAferoFileStore(fsys afero.Fs, mediaURL string, logger *slog.Logger) *AferoFileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AferoFileStore{
		fs:       fsys,
		mediaURL: mediaURL,
		logger:   logger.With("component", "file_store"),
	}
}

// NewDiskFileStore creates a store rooted at an OS directory.
func NewDiskFileStore(root, mediaURL string, logger *slog.Logger) (*AferoFileStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return NewAferoFileStore(afero.NewBasePathFs(osFs, root), mediaURL, logger), nil
}

// Save writes data at key.
func (s *AferoFileStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(clean), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", clean, err)
	}
	if err := afero.WriteFile(s.fs, clean, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", clean, err)
	}
	s.logger.Debug("saved file", slog.String("key", clean), slog.Int("bytes", len(data)))
	return nil
}

// Open returns a reader for key.
func (s *AferoFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(clean)
	if err != nil {
		return nil, mapFsError(clean, err)
	}
	return f, nil
}

// Read returns the contents of key.
func (s *AferoFileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		return nil, mapFsError(clean, err)
	}
	return data, nil
}

// Delete removes key.
func (s *AferoFileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", clean, err)
	}
	return nil
}

// Exists reports whether key exists.
func (s *AferoFileStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, clean)
}

// URL returns the media URL for key.
func (s *AferoFileStore) URL(key string) string {
	if key == "" {
		return ""
	}
	return s.mediaURL + strings.TrimPrefix(key, "/")
}

// cleanKey rejects absolute keys, non-canonical keys and keys that leave the
// root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsRune(key, '\\') {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

func mapFsError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	return fmt.Errorf("failed to open %s: %w", key, err)
}

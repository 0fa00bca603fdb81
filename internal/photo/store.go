// Package photo stores binary photo attachments behind opaque references.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrUnmanaged is returned when deleting a reference the store does not own.
var ErrUnmanaged = errors.New("photo reference is not managed by this store")

// Store resolves, persists and deletes photo attachments.
type Store interface {
	// Save persists the bytes read from r and returns the new reference.
	// name is the original file name; it is kept as a readable suffix.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns the bytes behind ref.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes a managed photo. Deleting a missing photo is not an error.
	Delete(ctx context.Context, ref string) error
	// IsManaged reports whether ref was produced by Save on this store.
	IsManaged(ref string) bool
}

// FileStore keeps photos as files under a root directory of an afero
// filesystem. Managed references are bare file names of the form
// "<uuid>_<sanitized name>". Absolute paths are accepted by Open so photos
// that live outside the store can still be exported.
type FileStore struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// NewFileStore creates a store rooted at root on fsys.
func NewFileStore(fsys afero.Fs, root string) *FileStore {
	return &FileStore{fs: fsys, root: root, logger: slog.Default()}
}

// NewOSFileStore creates a store on the host filesystem.
func NewOSFileStore(root string) *FileStore {
	return NewFileStore(afero.NewOsFs(), root)
}

// SetLogger sets the logger used for cleanup warnings.
func (s *FileStore) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Root returns the directory photos are stored in.
func (s *FileStore) Root() string {
	return s.root
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}

	ref := uuid.NewString() + "_" + SanitizeName(name)
	path := filepath.Join(s.root, ref)

	f, err := s.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create photo %s: %w", ref, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		s.remove(path)
		return "", fmt.Errorf("write photo %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		s.remove(path)
		return "", fmt.Errorf("close photo %s: %w", ref, err)
	}
	return ref, nil
}

// Open implements Store.
func (s *FileStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo %s: %w", ref, err)
	}
	return f, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.IsManaged(ref) {
		return ErrUnmanaged
	}
	err := s.fs.Remove(filepath.Join(s.root, ref))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete photo %s: %w", ref, err)
	}
	return nil
}

// IsManaged implements Store.
func (s *FileStore) IsManaged(ref string) bool {
	if len(ref) < 38 || ref[36] != '_' || ref != filepath.Base(ref) {
		return false
	}
	_, err := uuid.Parse(ref[:36])
	return err == nil
}

func (s *FileStore) resolve(ref string) (string, error) {
	switch {
	case ref == "":
		return "", fmt.Errorf("empty photo reference")
	case s.IsManaged(ref):
		return filepath.Join(s.root, ref), nil
	case filepath.IsAbs(ref):
		return filepath.Clean(ref), nil
	default:
		return "", fmt.Errorf("unresolvable photo reference %q", ref)
	}
}

func (s *FileStore) remove(path string) {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("remove partial photo", "path", path, "error", err)
	}
}

// OriginalName returns the file name a reference was saved under, without
// the store's unique prefix.
func OriginalName(ref string) string {
	base := filepath.Base(ref)
	if len(base) > 37 && base[36] == '_' {
		if _, err := uuid.Parse(base[:36]); err == nil {
			return base[37:]
		}
	}
	return base
}

const maxNameRunes = 96

// SanitizeName reduces a file name to letters, digits, '.', '-' and '_'.
// Other runes become '_'. The result is never empty and never starts with
// a dot.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == maxNameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		n++
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" || out == "_" {
		return "photo"
	}
	return out
}

var _ Store = (*FileStore)(nil)

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/snowdenHM/bill/internal/config"
	"go.uber.org/fx"
)

// allowedExtensions is the upload allow-list for bill documents.
var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".png":  {},
	".jpeg": {},
	".jpg":  {},
}

var (
	ErrUnsupportedExtension = errors.New("unsupported_file_extension")
	ErrEmptyPath            = errors.New("empty_file_path")
)

// AllowedExtension reports whether a file name carries a permitted
// extension.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := allowedExtensions[ext]
	return ok
}

// IsPDF reports whether the file name has a .pdf extension.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// FileStore persists uploaded bill documents under a bills/ media prefix,
// one directory per team slug.
type FileStore struct {
	root string
}

func NewFileStore(cfg config.Config) *FileStore {
	return &FileStore{root: cfg.MediaRoot}
}

// Save writes data under bills/<teamSlug>/ with a uuid-qualified name and
// returns the store-relative path.
func (s *FileStore) Save(teamSlug, name string, data []byte) (string, error) {
	if !AllowedExtension(name) {
		return "", ErrUnsupportedExtension
	}
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	rel := filepath.Join("bills", teamSlug, base+"-"+uuid.NewString()+ext)
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// Read returns the stored bytes for a store-relative path.
func (s *FileStore) Read(rel string) ([]byte, error) {
	if strings.TrimSpace(rel) == "" {
		return nil, ErrEmptyPath
	}
	return os.ReadFile(filepath.Join(s.root, rel))
}

// Delete removes a stored file. A missing file is not an error; the row
// delete still proceeds.
func (s *FileStore) Delete(rel string) error {
	if strings.TrimSpace(rel) == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, rel))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL maps a store-relative path to the public media URL path.
func (s *FileStore) URL(rel string) string {
	return "/media/" + filepath.ToSlash(rel)
}

var Module = fx.Module("storage",
	fx.Provide(NewFileStore),
)

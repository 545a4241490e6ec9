package securefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
)

// GetLogger returns the securefs module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// SecureFS writes files below a base directory through an os.Root, so
// relative paths, symlinks and "../" cannot escape it.
type SecureFS struct {
	baseDir string
	root    *os.Root
}

// New creates baseDir if needed and opens it as the sandbox root.
func New(baseDir string) (*SecureFS, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fsError(fmt.Errorf("failed to resolve base path: %w", err), "resolve", baseDir)
	}

	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, fsError(fmt.Errorf("failed to create base directory: %w", err), "mkdir", absPath)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fsError(fmt.Errorf("failed to create filesystem sandbox: %w", err), "open_root", absPath)
	}

	return &SecureFS{baseDir: absPath, root: root}, nil
}

// BaseDir returns the absolute base directory.
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// ValidateRelativePath cleans relPath and rejects absolute paths and
// paths leaving the base directory.
func (sfs *SecureFS) ValidateRelativePath(relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "/") {
		return "", errors.New(fmt.Errorf("%w: %q", ErrInvalidPath, relPath)).
			Component("securefs").
			Category(errors.CategoryValidation).
			Build()
	}

	clean := filepath.Clean(relPath)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New(fmt.Errorf("%w: %q", ErrPathTraversal, relPath)).
			Component("securefs").
			Category(errors.CategoryValidation).
			Build()
	}
	return clean, nil
}

// WriteFile writes data to relPath below the base directory, creating
// parent directories. It returns the absolute path written.
func (sfs *SecureFS) WriteFile(relPath string, data []byte, perm os.FileMode) (string, error) {
	clean, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(clean); dir != "." {
		if err := sfs.root.MkdirAll(dir, 0o750); err != nil {
			return "", fsError(err, "mkdir", clean)
		}
	}
	if err := sfs.root.WriteFile(clean, data, perm); err != nil {
		return "", fsError(err, "write", clean)
	}
	return filepath.Join(sfs.baseDir, clean), nil
}

// ReadFile reads relPath below the base directory.
func (sfs *SecureFS) ReadFile(relPath string) ([]byte, error) {
	clean, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return nil, err
	}
	data, err := sfs.root.ReadFile(clean)
	if err != nil {
		return nil, fsError(err, "read", clean)
	}
	return data, nil
}

// Close releases the sandbox root.
func (sfs *SecureFS) Close() error {
	if sfs.root == nil {
		return nil
	}
	return sfs.root.Close()
}

func fsError(err error, operation, path string) error {
	return errors.New(err).
		Component("securefs").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		FileContext(path, 0).
		Build()
}

package diagnosis

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/securefs"
)

// ErrLowDiskSpace is returned by Save when the upload volume is nearly full.
var ErrLowDiskSpace = errors.NewStd("insufficient free disk space")

// UploadStore writes uploaded images to <base>/<plant>/<uuid>.<ext>.
type UploadStore struct {
	fs        *securefs.SecureFS
	minFree   uint64
	freeSpace func(path string) (uint64, error)
}

// UploadOption configures an UploadStore.
type UploadOption func(*UploadStore)

// WithMinFreeSpace makes Save refuse writes while the upload volume has
// fewer than bytes available. Zero disables the check.
func WithMinFreeSpace(bytes uint64) UploadOption {
	return func(u *UploadStore) { u.minFree = bytes }
}

// NewUploadStore creates the upload directory if needed.
func NewUploadStore(dir string, opts ...UploadOption) (*UploadStore, error) {
	sfs, err := securefs.New(dir)
	if err != nil {
		return nil, err
	}
	u := &UploadStore{fs: sfs, freeSpace: diskFreeSpace}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Save writes data and returns the absolute path written. format is the
// decoded image format name.
func (u *UploadStore) Save(plant, format string, data []byte) (string, error) {
	if err := u.checkSpace(uint64(len(data))); err != nil {
		return "", err
	}
	return u.fs.WriteFile(filepath.Join(plant, uuid.NewString()+extension(format)), data, 0o640)
}

func (u *UploadStore) checkSpace(need uint64) error {
	if u.minFree == 0 {
		return nil
	}
	free, err := u.freeSpace(u.fs.BaseDir())
	if err != nil {
		return errors.New(err).
			Component("diagnosis").
			Category(errors.CategorySystem).
			Context("path", u.fs.BaseDir()).
			Build()
	}
	if free < u.minFree+need {
		return errors.New(fmt.Errorf("%w: %d bytes free, %d required", ErrLowDiskSpace, free, u.minFree+need)).
			Component("diagnosis").
			Category(errors.CategorySystem).
			Context("path", u.fs.BaseDir()).
			Build()
	}
	return nil
}

// Dir returns the absolute upload directory.
func (u *UploadStore) Dir() string {
	return u.fs.BaseDir()
}

// Close releases the upload directory.
func (u *UploadStore) Close() error {
	return u.fs.Close()
}

func extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".img"
	default:
		return "." + format
	}
}

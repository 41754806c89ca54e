package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"school-song-portal/internal/domain/ports/adapter"
)

var _ adapter.MediaStore = (*DiskStore)(nil)

// DiskStore keeps processed audio on local disk. The directory is served
// by the HTTP layer under publicBase.
type DiskStore struct {
	dir        string
	publicBase string // e.g. "https://portal.example.com/media"
}

func NewDiskStore(dir, publicBase string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("media dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

func (s *DiskStore) Save(filename string, r io.Reader) (string, error) {
	filename = filepath.Base(filename)
	f, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return s.publicBase + "/" + filename, nil
}

func (s *DiskStore) SaveFile(filename, srcPath string) (string, error) {
	filename = filepath.Base(filename)
	dst := filepath.Join(s.dir, filename)
	if err := os.Rename(srcPath, dst); err != nil {
		// Rename fails across filesystems, fall back to a copy.
		src, openErr := os.Open(srcPath)
		if openErr != nil {
			return "", err
		}
		defer src.Close()
		defer os.Remove(srcPath)
		return s.Save(filename, src)
	}
	return s.publicBase + "/" + filename, nil
}

func (s *DiskStore) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// Dir is the directory the HTTP layer mounts as a static file root.
func (s *DiskStore) Dir() string { return s.dir }

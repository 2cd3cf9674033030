package sdxfer

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-sdxfer/internal/util"
)

// FileStore is the local filesystem collaborator used by transfers.
type FileStore interface {
	// Size returns the size of the file at path in bytes.
	Size(path string) (int64, error)
	// Open opens the file at path for reading.
	Open(path string) (io.ReadCloser, error)
	// WriteFile creates or truncates the file at path and writes data to it.
	WriteFile(path string, data []byte) error
}

// OSFileStore is a FileStore backed by the operating system.
type OSFileStore struct {
	// Perm is the permission used for created files. Zero means 0o644.
	Perm fs.FileMode
}

var _ FileStore = OSFileStore{}

func (s OSFileStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s: is a directory", path)
	}

	return info.Size(), nil
}

func (s OSFileStore) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (s OSFileStore) WriteFile(path string, data []byte) error {
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}

	return os.WriteFile(path, data, perm)
}

// MemFileStore is an in-memory FileStore, safe for concurrent use.
type MemFileStore struct {
	files *xsync.MapOf[string, []byte]
}

var _ FileStore = (*MemFileStore)(nil)

// NewMemFileStore creates an empty MemFileStore.
func NewMemFileStore() *MemFileStore {
	return &MemFileStore{files: xsync.NewMapOf[string, []byte]()}
}

// Put stores a copy of data under path.
func (s *MemFileStore) Put(path string, data []byte) {
	s.files.Store(path, util.CloneSlice(data, 0))
}

// Get returns a copy of the data stored under path.
func (s *MemFileStore) Get(path string) ([]byte, bool) {
	data, ok := s.files.Load(path)
	if !ok {
		return nil, false
	}

	return util.CloneSlice(data, 0), true
}

// Delete removes path, reporting whether it existed.
func (s *MemFileStore) Delete(path string) bool {
	_, ok := s.files.LoadAndDelete(path)
	return ok
}

// Names returns the stored paths in lexical order.
func (s *MemFileStore) Names() []string {
	names := make([]string, 0, s.files.Size())
	s.files.Range(func(name string, _ []byte) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	return names
}

func (s *MemFileStore) Size(path string) (int64, error) {
	data, ok := s.files.Load(path)
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}

	return int64(len(data)), nil
}

func (s *MemFileStore) Open(path string) (io.ReadCloser, error) {
	data, ok := s.files.Load(path)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemFileStore) WriteFile(path string, data []byte) error {
	s.Put(path, data)
	return nil
}

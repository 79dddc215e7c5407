package result

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// File is a handle to an image's bytes plus the metadata the UI shows.
type File interface {
	Name() string
	Size() int64
	ModTime() time.Time
	Open() (io.ReadCloser, error)
}

// DiskFile is a file on disk. Metadata is captured at stat time; bytes are
// only read when Open is called.
type DiskFile struct {
	path    string
	name    string
	size    int64
	modTime time.Time
}

// StatFile captures the metadata of the regular file at path.
func StatFile(path string) (*DiskFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	return &DiskFile{
		path:    path,
		name:    filepath.Base(path),
		size:    info.Size(),
		modTime: info.ModTime(),
	}, nil
}

func (f *DiskFile) Name() string       { return f.name }
func (f *DiskFile) Size() int64        { return f.size }
func (f *DiskFile) ModTime() time.Time { return f.modTime }
func (f *DiskFile) Path() string       { return f.path }

func (f *DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Blob is an in-memory file, used for compressed output.
type Blob struct {
	name    string
	data    []byte
	modTime time.Time
}

func NewBlob(name string, data []byte, modTime time.Time) *Blob {
	return &Blob{name: name, data: data, modTime: modTime}
}

func (b *Blob) Name() string       { return b.name }
func (b *Blob) Size() int64        { return int64(len(b.data)) }
func (b *Blob) ModTime() time.Time { return b.modTime }
func (b *Blob) Bytes() []byte      { return b.data }

func (b *Blob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// ReadAll reads the full contents of f.
func ReadAll(f File) ([]byte, error) {
	if b, ok := f.(*Blob); ok {
		return b.data, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

package gsplat

import (
	"io"
	"os"
)

// CloudSource yields a splat cloud. Implementations are file-backed or
// stream-backed so callers never branch on where the data comes from.
type CloudSource interface {
	LoadCloud() (*Cloud, error)
}

// FileSource reads a gaussian splat PLY from disk.
type FileSource struct {
	Path string
}

func (s *FileSource) LoadCloud() (*Cloud, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// StreamSource reads a gaussian splat PLY from an already-open stream.
type StreamSource struct {
	R io.Reader
}

func (s *StreamSource) LoadCloud() (*Cloud, error) {
	return Parse(s.R)
}

// MemorySource wraps an in-memory cloud, for tests and pipelines that
// already hold the parsed data.
type MemorySource struct {
	Cloud *Cloud
}

func (s *MemorySource) LoadCloud() (*Cloud, error) {
	return s.Cloud, nil
}

// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a filesystem data source that opens files from the local disk and
// transparently decompresses them.
type Local struct {
	path  string
	codec Compression
}

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The compression codec is detected from the file extension, or from
// the magic bytes when the extension says nothing; use WithCompression to
// force one. The returned value is safe for concurrent use
// by multiple goroutines as long as the underlying path location is valid for
// concurrent reads.
func NewLocal(path string) *Local { return &Local{path: path, codec: Auto} }

// WithCompression returns a copy of l that uses codec instead of extension
// detection. Auto restores detection.
func (l *Local) WithCompression(codec Compression) *Local {
	cp := *l
	cp.codec = codec
	return &cp
}

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading and returns the decompressed
// stream.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error immediately without touching
//     the filesystem.
//   - Any filesystem error is wrapped with the path for context, while still
//     permitting errors.Is/As checks by callers (e.g., errors.Is(err, os.ErrNotExist)).
//   - A corrupt compression header fails here rather than on the first Read.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)

	codec := l.codec
	if codec == Auto || codec == "" {
		if ext := DetectCompression(l.path); ext != None {
			codec = ext
		}
	}
	rc, err := Decompress(f, codec)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return rc, nil
}

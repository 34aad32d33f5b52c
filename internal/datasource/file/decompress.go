package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression names an input codec.
type Compression string

const (
	Auto Compression = "auto"
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	Xz   Compression = "xz"
)

// ErrUnknownCompression is returned by ParseCompression.
var ErrUnknownCompression = errors.New("unknown input compression")

// ParseCompression maps a config value onto a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "none", "raw", "plain":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "xz":
		return Xz, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// DetectCompression picks a codec from the file extension.
func DetectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".xz":
		return Xz
	default:
		return None
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// SniffCompression picks a codec from the first bytes of a stream.
func SniffCompression(prefix []byte) Compression {
	switch {
	case bytes.HasPrefix(prefix, gzipMagic):
		return Gzip
	case bytes.HasPrefix(prefix, zstdMagic):
		return Zstd
	case bytes.HasPrefix(prefix, xzMagic):
		return Xz
	default:
		return None
	}
}

// Sniff peeks at the start of rc and reports its codec. The returned reader
// still yields every byte of rc and closes it.
func Sniff(rc io.ReadCloser) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(rc)
	prefix, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, None, err
	}
	return &stackedReader{Reader: br, closers: []func() error{rc.Close}}, SniffCompression(prefix), nil
}

// Decompress wraps f in the codec's reader. Auto sniffs the magic bytes.
// Closing the result closes f.
func Decompress(f io.ReadCloser, codec Compression) (io.ReadCloser, error) {
	if codec == Auto || codec == "" {
		sniffed, c, err := Sniff(f)
		if err != nil {
			return nil, fmt.Errorf("sniff compression: %w", err)
		}
		f, codec = sniffed, c
	}
	switch codec {
	case None:
		return f, nil
	case Gzip:
		// Multistream is on by default, so concatenated members (split part
		// files joined with cat) read as one stream.
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case Zstd:
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			f.Close,
		}}, nil
	case Xz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		return &stackedReader{Reader: xr, closers: []func() error{f.Close}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, codec)
	}
}

// stackedReader reads from the outermost decoder and closes the whole stack,
// innermost handle last.
type stackedReader struct {
	io.Reader
	closers []func() error
}

func (s *stackedReader) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

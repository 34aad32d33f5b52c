package columnar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/parquet/compress"
)

// Codec is a Parquet page compression codec.
type Codec string

const (
	CodecZstd   Codec = "zstd"
	CodecSnappy Codec = "snappy"
	CodecGzip   Codec = "gzip"
	CodecBrotli Codec = "brotli"
	CodecLz4    Codec = "lz4"
	CodecNone   Codec = "none"
)

// DefaultRowGroupSize bounds the number of rows per Parquet row group.
const DefaultRowGroupSize = 128 * 1024

// ErrUnknownCodec is returned by ParseCodec.
var ErrUnknownCodec = errors.New("unknown parquet compression")

// ExportOptions controls how a table is written.
type ExportOptions struct {
	Codec Codec
	// Level is the codec-specific compression level; 0 keeps the codec
	// default.
	Level int
	// RowGroupSize is the maximum rows per row group; 0 means
	// DefaultRowGroupSize.
	RowGroupSize int64
}

// ParseCodec maps a config value onto a Codec. The empty string means zstd.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zstd", "zstandard":
		return CodecZstd, nil
	case "snappy":
		return CodecSnappy, nil
	case "gzip", "gz":
		return CodecGzip, nil
	case "brotli":
		return CodecBrotli, nil
	case "lz4", "lz4_raw":
		return CodecLz4, nil
	case "none", "uncompressed":
		return CodecNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

func (c Codec) parquet() (compress.Compression, error) {
	switch c {
	case CodecZstd, "":
		return compress.Codecs.Zstd, nil
	case CodecSnappy:
		return compress.Codecs.Snappy, nil
	case CodecGzip:
		return compress.Codecs.Gzip, nil
	case CodecBrotli:
		return compress.Codecs.Brotli, nil
	case CodecLz4:
		return compress.Codecs.Lz4Raw, nil
	case CodecNone:
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("%w: %q", ErrUnknownCodec, string(c))
	}
}

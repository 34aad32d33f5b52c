// Package datasource defines where pipeline input bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a readable stream of decompressed bytes. The pipeline only
// needs line-oriented reads from it; closing the returned reader releases
// every underlying handle.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

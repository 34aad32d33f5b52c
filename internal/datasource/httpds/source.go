package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"jsonl2parquet/internal/datasource/file"
)

// probeBytes is enough to cover every compression magic number.
const probeBytes = 512

// Source streams one remote object. It implements datasource.Source.
type Source struct {
	client  *Client
	url     string
	codec   file.Compression
	headers http.Header
}

// NewSource binds c to rawURL. The codec is taken from the URL path
// extension, or sniffed from the body when the path has none.
func NewSource(c *Client, rawURL string) *Source {
	return &Source{client: c, url: rawURL, codec: file.Auto}
}

// WithCompression returns a copy of s that uses codec instead of detection.
func (s *Source) WithCompression(codec file.Compression) *Source {
	cp := *s
	cp.codec = codec
	return &cp
}

// WithHeaders returns a copy of s that sends h on every request.
func (s *Source) WithHeaders(h http.Header) *Source {
	cp := *s
	cp.headers = h.Clone()
	return &cp
}

// URL returns the configured URL.
func (s *Source) URL() string { return s.url }

func (s *Source) codecFor(transportDecoded bool) file.Compression {
	if s.codec != file.Auto && s.codec != "" {
		return s.codec
	}
	if transportDecoded {
		return file.Auto
	}
	if u, err := url.Parse(s.url); err == nil {
		if ext := file.DetectCompression(u.Path); ext != file.None {
			return ext
		}
	}
	return file.Auto
}

// Open issues a GET and returns the decompressed body. Transient failures
// before the body starts are retried by the client; a failure mid-body
// surfaces as a read error.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, s.headers)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		discard(resp.Body)
		return nil, fmt.Errorf("get %s: %w: %s", s.url, ErrStatus, resp.Status)
	}

	rc, err := file.Decompress(resp.Body, s.codecFor(resp.Uncompressed))
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	return rc, nil
}

// Probe reads the first bytes of the object and reports the codec Open
// would use, without downloading the rest.
func (s *Source) Probe(ctx context.Context) (file.Compression, error) {
	if c := s.codecFor(false); c != file.Auto {
		return c, nil
	}
	head, err := s.client.Peek(ctx, s.url, probeBytes)
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", s.url, err)
	}
	return file.SniffCompression(head), nil
}

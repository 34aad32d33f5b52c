package httpds

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"jsonl2parquet/internal/datasource/file"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, s); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func testClient() *Client {
	c := NewClient(Config{Timeout: 2 * time.Second, Stream: true, MaxRetries: 1})
	c.wait = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestSource_OpenDecompresses(t *testing.T) {
	t.Parallel()

	const payload = "{\"id\":\"1\"}\n{\"id\":\"2\"}\n"
	gz := gzipBytes(t, payload)

	mux := http.NewServeMux()
	mux.HandleFunc("/part-00000.gz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(gz) })
	mux.HandleFunc("/noext", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(gz) })
	mux.HandleFunc("/plain.jsonl", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, payload) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, p := range []string{"/part-00000.gz", "/noext", "/plain.jsonl"} {
		rc, err := NewSource(testClient(), srv.URL+p).Open(context.Background())
		if err != nil {
			t.Fatalf("%s: Open: %v", p, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("%s: read: %v", p, err)
		}
		if string(got) != payload {
			t.Fatalf("%s: body %q, want %q", p, got, payload)
		}
	}
}

func TestSource_OpenRetriesThenFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSource(testClient(), srv.URL+"/x.gz").Open(context.Background())
	if err == nil {
		t.Fatalf("Open succeeded against a failing server")
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("server saw %d calls, want 2 (initial + 1 retry)", n)
	}
}

func TestSource_OpenNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewSource(testClient(), srv.URL+"/missing.jsonl").Open(context.Background())
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v, want ErrStatus", err)
	}
}

func TestSource_Probe(t *testing.T) {
	t.Parallel()

	gz := gzipBytes(t, "{}\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			t.Errorf("probe sent no Range header")
		}
		_, _ = w.Write(gz)
	}))
	defer srv.Close()

	got, err := NewSource(testClient(), srv.URL+"/object").Probe(context.Background())
	if err != nil || got != file.Gzip {
		t.Fatalf("Probe = (%q, %v), want gzip", got, err)
	}

	forced, err := NewSource(testClient(), srv.URL+"/object").WithCompression(file.Zstd).Probe(context.Background())
	if err != nil || forced != file.Zstd {
		t.Fatalf("forced Probe = (%q, %v), want zstd", forced, err)
	}
}

func TestNewClient_StreamDropsWholeRequestTimeout(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Timeout: time.Second, Stream: true})
	if c.httpClient.Timeout != 0 {
		t.Fatalf("stream client timeout = %v, want 0", c.httpClient.Timeout)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok || tr.ResponseHeaderTimeout != time.Second {
		t.Fatalf("response header timeout not set: %#v", c.httpClient.Transport)
	}
}

package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Peek returns up to n leading bytes of the object at url. It asks for a
// byte range and caps the read itself, so servers that ignore Range cost
// at most n bytes of body. An empty object (416) yields an empty slice.
func (c *Client) Peek(ctx context.Context, url string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("httpds: peek size must be > 0, got %d", n)
	}

	h := http.Header{}
	h.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))
	resp, err := c.Get(ctx, url, h)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return []byte{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, int64(n)))
}

package httpds

import (
	"fmt"
	"net/url"
	"path"
	"regexp"

	"github.com/zeebo/xxh3"

	"jsonl2parquet/internal/datasource/file"
)

// filenameCleaner replaces sequences of non-alphanumeric characters with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// HashString returns a stable 64-bit xxh3 hex digest of s.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// OutputBase derives a filesystem-safe output name (without extension) for
// a remote input. The last path segment is used with its data and
// compression extensions removed; failing that the cleaned query string;
// failing that a hash of the whole URL.
func OutputBase(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}

	if base := file.TrimInputExt(path.Base(u.Path)); base != "" && base != "." && base != "/" {
		if clean := filenameCleaner.ReplaceAllString(base, "_"); clean != "_" {
			return clean
		}
	}
	if clean := filenameCleaner.ReplaceAllString(u.RawQuery, "_"); clean != "" && clean != "_" {
		return clean
	}
	return HashString(rawURL)
}

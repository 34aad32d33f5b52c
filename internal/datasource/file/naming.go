package file

import (
	"path/filepath"
	"strings"
)

var dataExts = []string{".jsonl", ".ndjson", ".json"}

// TrimInputExt strips one compression extension and then one NDJSON data
// extension from name: "part-00001.jsonl.gz" → "part-00001".
func TrimInputExt(name string) string {
	if DetectCompression(name) != None {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	lower := strings.ToLower(name)
	for _, ext := range dataExts {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// OutputPath maps an input file onto <dir>/<base>.parquet.
func OutputPath(dir, input string) string {
	return filepath.Join(dir, TrimInputExt(filepath.Base(input))+".parquet")
}

package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadList reads a text file line by line and returns a slice of strings
// containing non-empty, non-comment lines.
//
// Lines that are empty or start with '#' (after trimming leading/trailing
// whitespace) are skipped, so list files can carry comments and blank
// separators. The order of lines is preserved.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpandInputs resolves input arguments into concrete file paths.
//
// Each argument is one of:
//   - "@list.txt": every entry of the list file (see ReadList), themselves
//     expanded as below;
//   - a glob pattern ("dump/part-*.gz"), expanded in lexical order;
//   - a plain path, kept as-is even if it does not exist yet so the open
//     error surfaces from the pipeline with the right stage.
//
// Duplicates are dropped, first occurrence wins. A glob that matches nothing
// is an error.
func ExpandInputs(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	var expand func(arg string, depth int) error
	expand = func(arg string, depth int) error {
		if strings.HasPrefix(arg, "@") {
			if depth > 0 {
				return fmt.Errorf("nested list file %s", arg)
			}
			entries, err := ReadList(arg[1:])
			if err != nil {
				return fmt.Errorf("read input list %s: %w", arg[1:], err)
			}
			for _, e := range entries {
				if err := expand(e, depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		if !strings.ContainsAny(arg, "*?[") {
			add(arg)
			return nil
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return fmt.Errorf("glob %s: %w", arg, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("glob %s: no matching files", arg)
		}
		for _, m := range matches {
			add(m)
		}
		return nil
	}

	for _, a := range args {
		if err := expand(strings.TrimSpace(a), 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

package sweep

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// locate resolves rel under root matching each path component
// case-insensitively. Exact matches are tried before folded ones, and every
// folded candidate is explored because sibling directories may differ only
// by case.
func locate(fs afero.Fs, root, rel string) (string, bool, error) {
	if root == "" {
		root = "."
	}
	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return locateParts(fs, root, parts)
}

func locateParts(fs afero.Fs, current string, parts []string) (string, bool, error) {
	if len(parts) == 0 {
		return current, true, nil
	}

	entries, err := afero.ReadDir(fs, current)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}

	last := len(parts) == 1
	var candidates []string
	for _, e := range entries {
		if last == e.IsDir() {
			continue
		}
		switch {
		case e.Name() == parts[0]:
			candidates = append([]string{e.Name()}, candidates...)
		case strings.EqualFold(e.Name(), parts[0]):
			candidates = append(candidates, e.Name())
		}
	}

	for _, c := range candidates {
		found, ok, err := locateParts(fs, filepath.Join(current, c), parts[1:])
		if err != nil || ok {
			return found, ok, err
		}
	}
	return "", false, nil
}

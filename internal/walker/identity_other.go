//go:build !unix

package walker

import (
	"path/filepath"
)

type directoryKey string

// identify keys a directory by its fully resolved absolute path.
func identify(directoryPath string) (directoryKey, error) {
	resolved, err := filepath.EvalSymlinks(directoryPath)
	if err != nil {
		return "", err
	}
	absolute, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	return directoryKey(absolute), nil
}

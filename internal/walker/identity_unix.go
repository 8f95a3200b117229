//go:build unix

package walker

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type directoryKey string

// identify keys a directory by device and inode so that distinct paths to the
// same directory collapse to one key.
func identify(directoryPath string) (directoryKey, error) {
	var stat unix.Stat_t
	if err := unix.Stat(directoryPath, &stat); err != nil {
		return "", err
	}
	return directoryKey(fmt.Sprintf("%d:%d", uint64(stat.Dev), uint64(stat.Ino))), nil
}

//go:build !windows

package ioutil

import "os"

func platformRename(tmpPath, finalPath string) error {
	return os.Rename(tmpPath, finalPath)
}

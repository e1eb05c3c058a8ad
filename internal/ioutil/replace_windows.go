//go:build windows

package ioutil

import "golang.org/x/sys/windows"

// platformRename replaces finalPath with tmpPath even if finalPath already
// exists, which plain os.Rename cannot guarantee on Windows under
// concurrent readers holding the destination open.
func platformRename(tmpPath, finalPath string) error {
	from, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(finalPath)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

//go:build unix

package apply

import "os"

func chown(path string, uid, gid uint32) error {
	return os.Chown(path, int(uid), int(gid))
}

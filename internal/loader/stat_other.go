//go:build !unix

package loader

import "os"

func statUID(info os.FileInfo) uint32 {
	return 0
}

func statGID(info os.FileInfo) uint32 {
	return 0
}

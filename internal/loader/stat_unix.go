//go:build unix

package loader

import (
	"os"
	"syscall"
)

func statUID(info os.FileInfo) uint32 {
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		return sys.Uid
	}
	return 0
}

func statGID(info os.FileInfo) uint32 {
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		return sys.Gid
	}
	return 0
}

//go:build !unix

package spacemgr

import "fmt"

func freeSpaceFor(path string) (int64, error) {
	return 0, fmt.Errorf("spacemgr: free-space queries are not supported on this platform")
}

//go:build !windows
// +build !windows

package scan

import "os"

func isPrivileged() bool {
	return os.Geteuid() == 0
}

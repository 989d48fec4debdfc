//go:build windows
// +build windows

package scan

// windows下不支持原始套接字扫描
func isPrivileged() bool {
	return false
}

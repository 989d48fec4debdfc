//go:build !windows
// +build !windows

package scan

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// EWOULDBLOCK 在linux上与EAGAIN同值,只保留EAGAIN
var errnoKinds = map[syscall.Errno]errKind{
	unix.ECONNREFUSED: kindRefused,
	unix.ETIMEDOUT:    kindTimeout,
	unix.EHOSTUNREACH: kindHostUnreachable,
	unix.ENETUNREACH:  kindNetUnreachable,
	unix.EHOSTDOWN:    kindHostDown,
	unix.ENETDOWN:     kindNetDown,
	unix.EACCES:       kindPermission,
	unix.EPERM:        kindPermission,
	unix.EINPROGRESS:  kindInProgress,
	unix.EALREADY:     kindInProgress,
	unix.EAGAIN:       kindInProgress,
}

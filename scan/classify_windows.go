//go:build windows
// +build windows

package scan

import "syscall"

// Winsock错误码
const (
	wsaEACCES       syscall.Errno = 10013
	wsaEWOULDBLOCK  syscall.Errno = 10035
	wsaEINPROGRESS  syscall.Errno = 10036
	wsaEALREADY     syscall.Errno = 10037
	wsaENETDOWN     syscall.Errno = 10050
	wsaENETUNREACH  syscall.Errno = 10051
	wsaETIMEDOUT    syscall.Errno = 10060
	wsaECONNREFUSED syscall.Errno = 10061
	wsaEHOSTDOWN    syscall.Errno = 10064
	wsaEHOSTUNREACH syscall.Errno = 10065
)

var errnoKinds = map[syscall.Errno]errKind{
	wsaECONNREFUSED: kindRefused,
	wsaETIMEDOUT:    kindTimeout,
	wsaEHOSTUNREACH: kindHostUnreachable,
	wsaENETUNREACH:  kindNetUnreachable,
	wsaEHOSTDOWN:    kindHostDown,
	wsaENETDOWN:     kindNetDown,
	wsaEACCES:       kindPermission,
	wsaEINPROGRESS:  kindInProgress,
	wsaEALREADY:     kindInProgress,
	wsaEWOULDBLOCK:  kindInProgress,
}

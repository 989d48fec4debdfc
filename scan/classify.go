package scan

import (
	"context"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// errKind 与平台无关的连接错误分类,平台相关的errno在 classify_*.go 中映射到这里
type errKind uint8

const (
	kindUnexpected errKind = iota
	kindRefused
	kindTimeout
	kindHostUnreachable
	kindNetUnreachable
	kindHostDown
	kindNetDown
	kindPermission
	kindInProgress
	kindOther
)

// 只有对端明确拒绝才算CLOSED,其余系统层面的失败都按FILTERED处理
var kindStates = map[errKind]PortState{
	kindRefused:         PortClosed,
	kindTimeout:         PortFiltered,
	kindHostUnreachable: PortFiltered,
	kindNetUnreachable:  PortFiltered,
	kindHostDown:        PortFiltered,
	kindNetDown:         PortFiltered,
	kindPermission:      PortFiltered,
	kindInProgress:      PortFiltered,
	kindOther:           PortFiltered,
	kindUnexpected:      PortError,
}

func (k errKind) String() string {
	switch k {
	case kindRefused:
		return "connection refused"
	case kindTimeout:
		return "timed out"
	case kindHostUnreachable:
		return "host unreachable"
	case kindNetUnreachable:
		return "network unreachable"
	case kindHostDown:
		return "host down"
	case kindNetDown:
		return "network down"
	case kindPermission:
		return "permission denied"
	case kindInProgress:
		return "in progress"
	case kindOther:
		return "os error"
	}
	return "unexpected"
}

// classifyDialErr 将Dial返回的错误转换成端口状态
func classifyDialErr(err error) PortState {
	return kindStates[dialErrKind(err)]
}

func dialErrKind(err error) errKind {
	if err == nil {
		return kindUnexpected
	}
	//会话被取消,探测没有结论
	if errors.Is(err, context.Canceled) {
		return kindUnexpected
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if k, ok := errnoKinds[errno]; ok {
			return k
		}
		return kindOther
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return kindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return kindTimeout
	}

	//没有errno但仍是网络层的失败
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return kindOther
	}
	return kindUnexpected
}

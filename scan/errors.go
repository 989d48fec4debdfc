package scan

import "github.com/pkg/errors"

// 输入校验类错误,会直接中止整个扫描;单个端口的探测失败不会返回error,而是记为PortError
var (
	ErrInvalidSpec    = errors.New("invalid port specification")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidPortSet = errors.New("invalid port set")
	ErrResolution     = errors.New("target resolution failed")
)

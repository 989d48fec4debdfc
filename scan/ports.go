package scan

//go:generate go run ../tools -o known.go

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PortState 端口状态,数值越大信息量越大,多次探测时取最大值
type PortState uint8

const (
	PortUnknown PortState = iota
	PortError
	PortFiltered
	PortClosed
	PortOpen
)

const (
	MinPort = 1
	MaxPort = 65535
)

func (s PortState) String() string {
	switch s {
	case PortOpen:
		return "OPEN"
	case PortClosed:
		return "CLOSED"
	case PortFiltered:
		return "FILTERED"
	case PortError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Priority 用于合并多次探测的结果 OPEN(4) > CLOSED(3) > FILTERED(2) > ERROR(1)
func (s PortState) Priority() int {
	return int(s)
}

// ParsePortState 是String的逆操作,从数据库读回时使用
func ParsePortState(s string) (PortState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN":
		return PortOpen, nil
	case "CLOSED":
		return PortClosed, nil
	case "FILTERED":
		return PortFiltered, nil
	case "ERROR":
		return PortError, nil
	}
	return PortUnknown, errors.Errorf("unknown port state %q", s)
}

func validPort(port int) bool {
	return port >= MinPort && port <= MaxPort
}

// DescribePort 返回端口在IANA表中的服务名,没有则返回空
func DescribePort(port int) string {
	if s, ok := knownPorts[port]; ok {
		return s
	}

	return ""
}

// ParsePorts 解析端口表达式,如 22,80,443,8080-8090
// 返回升序且去重的端口列表
func ParsePorts(selection string) ([]int, error) {
	seen := map[int]struct{}{}
	for _, r := range strings.Split(selection, ",") {
		r = strings.TrimSpace(r)
		if r == "" { //跳过空段 "22,,80"
			continue
		}
		if strings.Contains(r, "-") { //分别解析起始结束端口
			parts := strings.Split(r, "-")
			if len(parts) != 2 {
				return nil, errors.Wrapf(ErrInvalidSpec, "invalid port selection segment: '%s'", r)
			}

			p1, err := parsePortNumber(parts[0])
			if err != nil {
				return nil, err
			}
			p2, err := parsePortNumber(parts[1])
			if err != nil {
				return nil, err
			}

			if p1 > p2 {
				return nil, errors.Wrapf(ErrInvalidSpec, "invalid port range: %d-%d", p1, p2)
			}
			if !validPort(p1) || !validPort(p2) {
				return nil, errors.Wrapf(ErrInvalidSpec, "invalid port range: %d-%d, port number must be between %d and %d", p1, p2, MinPort, MaxPort)
			}

			for i := p1; i <= p2; i++ {
				seen[i] = struct{}{}
			}
			continue
		}

		//按单个情况处理
		port, err := parsePortNumber(r)
		if err != nil {
			return nil, err
		}
		if !validPort(port) {
			return nil, errors.Wrapf(ErrInvalidSpec, "invalid port number: %d, port number must be between %d and %d", port, MinPort, MaxPort)
		}
		seen[port] = struct{}{}
	}

	if len(seen) == 0 {
		return nil, errors.Wrap(ErrInvalidSpec, "no ports were provided")
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePortNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	p, err := strconv.Atoi(s)
	if err != nil || p < 0 {
		return 0, errors.Wrapf(ErrInvalidSpec, "invalid port number: '%s'", s)
	}
	return p, nil
}

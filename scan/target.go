package scan

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// lookupIP 测试时可替换
var lookupIP = net.LookupIP

// ResolveTarget 将IP或域名解析为IPv4地址
func ResolveTarget(target string) (net.IP, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.Wrap(ErrResolution, "empty target")
	}

	//解析IP是否正确,ip不正确,则可能是域名
	if ip := net.ParseIP(target); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, errors.Wrapf(ErrResolution, "%s: IPv6 addresses are not supported", target)
	}

	ips, err := lookupIP(target)
	if err != nil {
		return nil, errors.Wrapf(ErrResolution, "lookup %s: %v", target, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, errors.Wrapf(ErrResolution, "lookup %s: no IPv4 address", target)
}

package scan

import (
	"net"
	"strings"

	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ScanType 扫描模式
type ScanType string

const (
	ScanAuto    ScanType = "auto"
	ScanConnect ScanType = "connect"
	ScanSyn     ScanType = "syn"
)

// ParseScanType 解析命令行输入的扫描模式
func ParseScanType(s string) (ScanType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ScanAuto, nil
	case "connect", "tcp":
		return ScanConnect, nil
	case "stealth", "syn", "fast":
		return ScanSyn, nil
	}
	return "", errors.Errorf("unknown scan type: %v", s)
}

// Capabilities 进程能力,每个扫描会话只检测一次,之后只读
type Capabilities struct {
	Privileged bool //是否有root权限
	RawPacket  bool //libpcap是否可用
}

// RawAvailable 两者同时满足才能进行SYN扫描
func (c Capabilities) RawAvailable() bool {
	return c.Privileged && c.RawPacket
}

// DetectCapabilities 检测当前进程是否有能力发送原始数据包
func DetectCapabilities() Capabilities {
	c := Capabilities{Privileged: isPrivileged()}
	if c.Privileged {
		//非root时FindAllDevs通常也能成功,但没有意义,跳过
		if _, err := pcap.FindAllDevs(); err == nil {
			c.RawPacket = true
		} else {
			log.Debugf("pcap不可用:%v", err)
		}
	}
	return c
}

// SelectProber 根据扫描模式与进程能力选择探测器,整个会话只选择一次
// 没有原始套接字能力时SynProber自身退化为connect探测
func SelectProber(st ScanType, target net.IP, caps Capabilities) Prober {
	if st == ScanConnect {
		return NewConnectProber()
	}
	if st == ScanSyn && !caps.RawAvailable() {
		log.Warnf("SYN扫描需要root权限以及libpcap,使用connect扫描")
	}

	sp, err := NewSynProber(target, caps)
	if err != nil {
		log.Warnf("SYN扫描初始化失败,使用connect扫描:%v", err)
		return NewConnectProber()
	}
	return sp
}

// ModeMessage 返回当前会话使用的扫描模式说明
func ModeMessage(p Prober, caps Capabilities) string {
	if sp, ok := p.(*SynProber); ok && !sp.fallbackMode() {
		return "Running privileged SYN scan (root detected)"
	}
	if caps.Privileged && !caps.RawPacket {
		return "Running TCP connect scan (pcap unavailable)"
	}
	if caps.Privileged {
		return "Running TCP connect scan"
	}
	return "Running TCP connect scan (non-root mode)"
}

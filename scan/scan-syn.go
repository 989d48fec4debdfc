package scan

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/routing"
	"github.com/mostlygeek/arp"
	"github.com/phayes/freeport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//使用gopacket包使得go能够处理数据包

// pcap读超时,读协程以此为周期检查是否需要退出
const pcapReadTimeout = 100 * time.Millisecond

// packetHandle 原始数据包的收发,*pcap.Handle 满足该接口
type packetHandle interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	WritePacketData(data []byte) error
	Close()
}

// tcpFlags 只保留判断端口状态需要的标志位
type tcpFlags struct {
	syn, ack, rst bool
}

// SynProber 半开扫描:只发送一个SYN,根据回包的标志位判断状态
// 网卡句柄、源端口、下一跳MAC在创建时确定,整个会话共用
type SynProber struct {
	target           net.IP
	iface            *net.Interface
	srcIP            net.IP
	dstMAC           net.HardwareAddr
	srcPort          layers.TCPPort
	handle           packetHandle
	serializeOptions gopacket.SerializeOptions

	mu      sync.Mutex
	waiters map[int]chan tcpFlags //key为目标端口
	writeMu sync.Mutex

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	fallback Prober //没有原始套接字能力时使用
}

// NewSynProber 为目标创建SYN探测器,没有能力时退化为带一次重试的connect探测
func NewSynProber(target net.IP, caps Capabilities) (*SynProber, error) {
	if !caps.RawAvailable() {
		return &SynProber{target: target, fallback: WithRetries(NewConnectProber(), 1)}, nil
	}

	target = target.To4()
	if target == nil {
		return nil, errors.New("syn scan supports IPv4 targets only")
	}

	//-------------------------数据包操作--------------------------------
	router, err := routing.New()
	if err != nil {
		return nil, errors.Wrap(err, "routing")
	}
	networkInterface, gateway, srcIP, err := router.Route(target)
	if err != nil {
		return nil, errors.Wrapf(err, "route to %s", target)
	}

	rawPort, err := freeport.GetFreePort() //获取一个空闲的端口作为源端口
	if err != nil {
		return nil, errors.Wrap(err, "free port")
	}

	//根据IP 获取硬件MAC地址,回环网卡不需要
	dstMAC := net.HardwareAddr{0, 0, 0, 0, 0, 0}
	if networkInterface.Flags&net.FlagLoopback == 0 {
		dstMAC, err = getHwAddr(target, gateway, srcIP, networkInterface, time.Second)
		if err != nil {
			return nil, err
		}
	}

	handle, err := pcap.OpenLive(networkInterface.Name, 65535, false, pcapReadTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", networkInterface.Name)
	}
	if handle.LinkType() != layers.LinkTypeEthernet {
		handle.Close()
		return nil, errors.Errorf("unsupported link type %v on %s", handle.LinkType(), networkInterface.Name)
	}
	filter := fmt.Sprintf("tcp and src host %s and dst port %d", target, rawPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, errors.Wrapf(err, "bpf %q", filter)
	}

	s := newSynProber(target, networkInterface, srcIP, dstMAC, layers.TCPPort(rawPort), handle)
	log.Debugf("SYN探测器就绪 iface=%s src=%s:%d", networkInterface.Name, srcIP, rawPort)
	return s, nil
}

// newSynProber 组装探测器并启动唯一的读协程
func newSynProber(target net.IP, iface *net.Interface, srcIP net.IP, dstMAC net.HardwareAddr, srcPort layers.TCPPort, handle packetHandle) *SynProber {
	s := &SynProber{
		target:  target,
		iface:   iface,
		srcIP:   srcIP,
		dstMAC:  dstMAC,
		srcPort: srcPort,
		handle:  handle,
		serializeOptions: gopacket.SerializeOptions{
			FixLengths:       true,
			ComputeChecksums: true,
		},
		waiters: make(map[int]chan tcpFlags),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.listen()
	return s
}

func (s *SynProber) Name() string {
	if s.fallbackMode() {
		return "connect"
	}
	return "syn"
}

func (s *SynProber) fallbackMode() bool {
	return s.fallback != nil
}

// Probe 发送一个SYN并等待回包
func (s *SynProber) Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) (PortState, error) {
	if !validPort(port) {
		return PortError, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	if s.fallbackMode() {
		return s.fallback.Probe(ctx, ip, port, timeout)
	}
	if !ip.Equal(s.target) {
		log.Debugf("SYN探测器绑定的目标是%s,而不是%s", s.target, ip)
		return PortError, nil
	}

	reply := make(chan tcpFlags, 1)
	s.mu.Lock()
	s.waiters[port] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.waiters, port)
		s.mu.Unlock()
	}()

	if err := s.sendSyn(port); err != nil {
		log.Debugf("%s:%d SYN发送失败:%v", s.target, port, err)
		return PortError, nil
	}

	timer := time.NewTimer(NormalizeTimeout(timeout))
	defer timer.Stop()

	select {
	case f := <-reply:
		return classifyFlags(f), nil
	case <-timer.C:
		return PortFiltered, nil
	case <-ctx.Done():
		return PortError, nil
	case <-s.done:
		return PortError, nil
	}
}

// classifyFlags SYN+ACK为开放,RST为关闭,其余均视为被过滤
func classifyFlags(f tcpFlags) PortState {
	switch {
	case f.syn && f.ack:
		return PortOpen
	case f.rst:
		return PortClosed
	}
	return PortFiltered
}

// Close 停止读协程并释放网卡句柄
func (s *SynProber) Close() error {
	if s.fallbackMode() {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped
		s.handle.Close()
	})
	return nil
}

// sendSyn 构造只带SYN标志的报文并发送
func (s *SynProber) sendSyn(port int) error {
	// Construct all the network layers we need.
	eth := layers.Ethernet{
		SrcMAC:       s.iface.HardwareAddr,
		DstMAC:       s.dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	if len(eth.SrcMAC) == 0 {
		eth.SrcMAC = net.HardwareAddr{0, 0, 0, 0, 0, 0}
	}
	ip4 := layers.IPv4{
		SrcIP:    s.srcIP,
		DstIP:    s.target,
		Version:  4,
		TTL:      64,
		Id:       uint16(rand.Intn(1 << 16)),
		Protocol: layers.IPProtocolTCP,
	}
	tcp := layers.TCP{
		SrcPort: s.srcPort,
		DstPort: layers.TCPPort(port),
		Seq:     rand.Uint32(),
		Window:  1024,
		SYN:     true,
	}
	if err := tcp.SetNetworkLayerForChecksum(&ip4); err != nil {
		return err
	}
	return s.send(&eth, &ip4, &tcp)
}

// send sends the given layers as a single packet on the network.
func (s *SynProber) send(l ...gopacket.SerializableLayer) error {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, s.serializeOptions, l...); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.handle.WritePacketData(buf.Bytes())
}

// listen 唯一的读协程,解析回包并分发给等待该端口的Probe
func (s *SynProber) listen() {
	defer close(s.stopped)

	eth := &layers.Ethernet{}
	ip4 := &layers.IPv4{}
	tcp := &layers.TCP{}
	payload := &gopacket.Payload{}

	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, eth, ip4, tcp, payload)
	parser.IgnoreUnsupported = true
	decoded := []gopacket.LayerType{}

	for {
		select {
		case <-s.done:
			return
		default:
		}

		// Read in the next packet.
		data, _, err := s.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		} else if err != nil {
			log.Debugf("Packet read error: %s", err)
			continue
		}

		if err := parser.DecodeLayers(data, &decoded); err != nil {
			continue
		}
		var gotIP, gotTCP bool
		for _, layerType := range decoded {
			switch layerType {
			case layers.LayerTypeIPv4:
				gotIP = ip4.SrcIP.Equal(s.target)
			case layers.LayerTypeTCP:
				gotTCP = tcp.DstPort == s.srcPort
			}
		}
		if gotIP && gotTCP {
			s.dispatch(int(tcp.SrcPort), tcpFlags{syn: tcp.SYN, ack: tcp.ACK, rst: tcp.RST})
		}
	}
}

// dispatch 不阻塞读协程,重复的回包直接丢弃
func (s *SynProber) dispatch(port int, f tcpFlags) {
	s.mu.Lock()
	ch, ok := s.waiters[port]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- f:
	default:
	}
}

func getHwAddr(ip net.IP, gateway net.IP, srcIP net.IP, networkInterface *net.Interface, timeout time.Duration) (net.HardwareAddr, error) {
	arpDst := ip
	if gateway != nil {
		arpDst = gateway
	}

	//先查看ARP中是否有缓存,有且正确的话直接返回
	macStr := arp.Search(arpDst.String())
	if macStr != "" && macStr != "00:00:00:00:00:00" {
		if mac, err := net.ParseMAC(macStr); err == nil {
			return mac, nil
		}
	}

	handle, err := pcap.OpenLive(networkInterface.Name, 65535, true, pcapReadTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	start := time.Now()

	//发送ARP请求做准备
	eth := layers.Ethernet{
		SrcMAC:       networkInterface.HardwareAddr,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	req := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(networkInterface.HardwareAddr),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(arpDst.To4()),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &req); err != nil {
		return nil, err
	}
	if err := handle.WritePacketData(buf.Bytes()); err != nil {
		return nil, err
	}

	for {
		if time.Since(start) > timeout {
			return nil, errors.New("timeout getting ARP reply")
		}
		data, _, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		} else if err != nil {
			return nil, err
		}
		packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
		if arpLayer := packet.Layer(layers.LayerTypeARP); arpLayer != nil {
			reply := arpLayer.(*layers.ARP)
			if net.IP(reply.SourceProtAddress).Equal(arpDst) {
				return net.HardwareAddr(reply.SourceHwAddress), nil
			}
		}
	}
}

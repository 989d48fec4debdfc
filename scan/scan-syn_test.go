package scan

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

func TestClassifyFlags(t *testing.T) {
	cases := []struct {
		flags tcpFlags
		want  PortState
	}{
		{tcpFlags{syn: true, ack: true}, PortOpen},
		{tcpFlags{rst: true}, PortClosed},
		{tcpFlags{rst: true, ack: true}, PortClosed},
		{tcpFlags{ack: true}, PortFiltered},
		{tcpFlags{syn: true}, PortFiltered},
		{tcpFlags{}, PortFiltered},
	}
	for _, tc := range cases {
		if got := classifyFlags(tc.flags); got != tc.want {
			t.Errorf("classifyFlags(%+v) = %s want %s", tc.flags, got, tc.want)
		}
	}
}

func TestSynProber_FallbackWithoutPrivileges(t *testing.T) {
	p, err := NewSynProber(loopback, Capabilities{})
	if err != nil {
		t.Fatalf("NewSynProber: %v", err)
	}
	defer p.Close()

	if p.Name() != "connect" {
		t.Fatalf("expected connect fallback, got %s", p.Name())
	}

	_, port := listen(t)
	state, err := p.Probe(context.Background(), loopback, port, time.Second)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if state != PortOpen {
		t.Fatalf("expected OPEN, got %s", state)
	}
}

func TestParseScanType(t *testing.T) {
	cases := map[string]ScanType{
		"":        ScanAuto,
		"auto":    ScanAuto,
		"TCP":     ScanConnect,
		"connect": ScanConnect,
		"stealth": ScanSyn,
		"fast":    ScanSyn,
		" syn ":   ScanSyn,
	}
	for in, want := range cases {
		got, err := ParseScanType(in)
		if err != nil || got != want {
			t.Errorf("ParseScanType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseScanType("udp"); err == nil {
		t.Fatal("expected error for udp")
	}
}

func TestSelectProber_WithoutCapabilities(t *testing.T) {
	if _, ok := SelectProber(ScanConnect, loopback, Capabilities{}).(*ConnectProber); !ok {
		t.Fatal("connect scan type must use the connect prober")
	}
	for _, st := range []ScanType{ScanAuto, ScanSyn} {
		p := SelectProber(st, loopback, Capabilities{})
		sp, ok := p.(*SynProber)
		if !ok || !sp.fallbackMode() {
			t.Fatalf("%s: expected syn prober in connect fallback, got %T", st, p)
		}
		if p.Name() != "connect" {
			t.Fatalf("%s: name %s", st, p.Name())
		}
	}
}

func TestModeMessage(t *testing.T) {
	connect := NewConnectProber()
	cases := []struct {
		caps Capabilities
		want string
	}{
		{Capabilities{}, "Running TCP connect scan (non-root mode)"},
		{Capabilities{Privileged: true}, "Running TCP connect scan (pcap unavailable)"},
		{Capabilities{Privileged: true, RawPacket: true}, "Running TCP connect scan"},
	}
	for _, tc := range cases {
		if got := ModeMessage(connect, tc.caps); got != tc.want {
			t.Errorf("ModeMessage(%+v) = %q want %q", tc.caps, got, tc.want)
		}
	}

	fallback, _ := NewSynProber(loopback, Capabilities{})
	if got := ModeMessage(fallback, Capabilities{}); got != "Running TCP connect scan (non-root mode)" {
		t.Fatalf("fallback prober: %q", got)
	}
}

var (
	synTarget = net.IPv4(192, 0, 2, 10).To4()
	synLocal  = net.IPv4(192, 0, 2, 1).To4()
)

// fakeHandle 代替网卡:记录发出的SYN,按replies中的标志位回包,没有对应项则不回包
type fakeHandle struct {
	t        *testing.T
	replies  map[int]tcpFlags
	replySrc net.IP // 非空时回包使用该源地址
	writeErr error
	in       chan []byte

	mu   sync.Mutex
	sent []int
}

func newFakeHandle(t *testing.T, replies map[int]tcpFlags) *fakeHandle {
	return &fakeHandle{t: t, replies: replies, in: make(chan []byte, 16)}
}

func (f *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	select {
	case data := <-f.in:
		return data, gopacket.CaptureInfo{CaptureLength: len(data), Length: len(data)}, nil
	case <-time.After(5 * time.Millisecond):
		return nil, gopacket.CaptureInfo{}, pcap.NextErrorTimeoutExpired
	}
}

func (f *fakeHandle) WritePacketData(data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		f.t.Errorf("sent packet has no IPv4 layer")
		return nil
	}
	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok || !tcp.SYN || tcp.ACK || tcp.RST {
		f.t.Errorf("sent packet is not a bare SYN: %v", pkt)
		return nil
	}

	port := int(tcp.DstPort)
	f.mu.Lock()
	f.sent = append(f.sent, port)
	f.mu.Unlock()

	flags, ok := f.replies[port]
	if !ok {
		return nil
	}
	src := ip4.DstIP
	if f.replySrc != nil {
		src = f.replySrc
	}
	f.in <- segment(f.t, src, ip4.SrcIP, tcp.DstPort, tcp.SrcPort, flags)
	return nil
}

func (f *fakeHandle) Close() {}

func (f *fakeHandle) sentPorts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.sent...)
}

// segment 构造一个以太网/IPv4/TCP回包
func segment(t *testing.T, src, dst net.IP, sport, dport layers.TCPPort, f tcpFlags) []byte {
	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
		DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := layers.IPv4{SrcIP: src, DstIP: dst, Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP}
	tcp := layers.TCP{SrcPort: sport, DstPort: dport, SYN: f.syn, ACK: f.ack, RST: f.rst, Window: 1024}
	if err := tcp.SetNetworkLayerForChecksum(&ip4); err != nil {
		t.Errorf("checksum layer: %v", err)
		return nil
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip4, &tcp); err != nil {
		t.Errorf("serialize: %v", err)
		return nil
	}
	return buf.Bytes()
}

func newTestSynProber(t *testing.T, h *fakeHandle) *SynProber {
	t.Helper()
	iface := &net.Interface{Index: 1, Name: "test0", HardwareAddr: net.HardwareAddr{2, 0, 0, 0, 0, 1}}
	s := newSynProber(synTarget, iface, synLocal, net.HardwareAddr{2, 0, 0, 0, 0, 2}, 40000, h)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSynProber_Replies(t *testing.T) {
	h := newFakeHandle(t, map[int]tcpFlags{
		8101: {syn: true, ack: true},
		8102: {rst: true},
		8103: {rst: true, ack: true},
		8104: {ack: true},
	})
	s := newTestSynProber(t, h)
	if s.Name() != "syn" {
		t.Fatalf("name: %s", s.Name())
	}
	// 无法解析的数据包被跳过
	h.in <- []byte{1, 2, 3}

	cases := []struct {
		port    int
		timeout time.Duration
		want    PortState
	}{
		{8101, time.Second, PortOpen},
		{8102, time.Second, PortClosed},
		{8103, time.Second, PortClosed},
		{8104, 200 * time.Millisecond, PortFiltered},
		{8105, 50 * time.Millisecond, PortFiltered},
	}
	for _, tc := range cases {
		state, err := s.Probe(context.Background(), synTarget, tc.port, tc.timeout)
		if err != nil {
			t.Fatalf("port %d: %v", tc.port, err)
		}
		if state != tc.want {
			t.Errorf("port %d: got %s want %s", tc.port, state, tc.want)
		}
	}

	sent := h.sentPorts()
	if len(sent) != len(cases) {
		t.Fatalf("expected one SYN per probe, sent %v", sent)
	}
	for i, tc := range cases {
		if sent[i] != tc.port {
			t.Fatalf("SYN %d went to port %d, want %d", i, sent[i], tc.port)
		}
	}
}

func TestSynProber_ReplyFromOtherHostIgnored(t *testing.T) {
	h := newFakeHandle(t, map[int]tcpFlags{8201: {syn: true, ack: true}})
	h.replySrc = net.IPv4(192, 0, 2, 99).To4()
	s := newTestSynProber(t, h)

	state, err := s.Probe(context.Background(), synTarget, 8201, 100*time.Millisecond)
	if err != nil || state != PortFiltered {
		t.Fatalf("got %s, %v", state, err)
	}
}

func TestSynProber_ReplyWithoutWaiterDropped(t *testing.T) {
	h := newFakeHandle(t, nil)
	s := newTestSynProber(t, h)

	// 没有等待者时直接丢弃,不会阻塞也不会留给之后的探测
	s.dispatch(8301, tcpFlags{syn: true, ack: true})

	state, err := s.Probe(context.Background(), synTarget, 8301, 50*time.Millisecond)
	if err != nil || state != PortFiltered {
		t.Fatalf("got %s, %v", state, err)
	}
}

func TestSynProber_WriteFailure(t *testing.T) {
	h := newFakeHandle(t, map[int]tcpFlags{8401: {syn: true, ack: true}})
	h.writeErr = errors.New("send: no buffer space available")
	s := newTestSynProber(t, h)

	state, err := s.Probe(context.Background(), synTarget, 8401, time.Second)
	if err != nil || state != PortError {
		t.Fatalf("got %s, %v", state, err)
	}
}

func TestSynProber_Interrupted(t *testing.T) {
	h := newFakeHandle(t, nil)
	s := newTestSynProber(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if state, _ := s.Probe(ctx, synTarget, 8501, 5*time.Second); state != PortError {
		t.Fatalf("cancelled context: got %s", state)
	}

	if state, _ := s.Probe(context.Background(), net.IPv4(192, 0, 2, 77), 8502, time.Second); state != PortError {
		t.Fatalf("foreign target: got %s", state)
	}

	result := make(chan PortState, 1)
	go func() {
		state, _ := s.Probe(context.Background(), synTarget, 8503, 5*time.Second)
		result <- state
	}()
	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case state := <-result:
		if state != PortError {
			t.Fatalf("closed prober: got %s", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not release a waiting probe")
	}
}

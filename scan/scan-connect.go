package scan

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ConnectProber 是TCP全连接探测,不需要任何特权
type ConnectProber struct{}

// NewConnectProber 创建一个TCP连接探测器
func NewConnectProber() *ConnectProber {
	return &ConnectProber{}
}

func (c *ConnectProber) Name() string {
	return "connect"
}

// Probe 发起tcp连接,并根据连接结果分类
func (c *ConnectProber) Probe(ctx context.Context, target net.IP, port int, timeout time.Duration) (PortState, error) {
	if !validPort(port) {
		return PortError, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}

	addr := net.JoinHostPort(target.String(), strconv.Itoa(port))
	log.Debugf("开始扫描%s", addr)

	d := net.Dialer{Timeout: NormalizeTimeout(timeout)}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		state := classifyDialErr(err)
		log.Debugf("%s :连接失败(%s):%v", addr, dialErrKind(err), err)
		return state, nil
	}

	//主动断开,不留半开连接
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	conn.Close()
	log.Debugf("%s is OPEN!", addr)
	return PortOpen, nil
}

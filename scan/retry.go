package scan

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout 非法超时值(<=0)时使用的默认值
const DefaultTimeout = 800 * time.Millisecond

// 两次重试之间的随机间隔,避免对目标突发发包,同时错开各个worker
const (
	retryDelayMin = 10 * time.Millisecond
	retryDelayMax = 50 * time.Millisecond
)

// NormalizeTimeout 超时<=0时返回默认值
func NormalizeTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}

// CheckPort 最多探测 max(1, retries+1) 次,
// 一旦OPEN立即返回,否则返回所有尝试中优先级最高的状态
func CheckPort(ctx context.Context, p Prober, ip net.IP, port int, timeout time.Duration, retries int) (PortState, error) {
	if !validPort(port) {
		return PortError, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}

	timeout = NormalizeTimeout(timeout)
	attempts := retries + 1
	if attempts < 1 {
		attempts = 1
	}

	best := PortError
	for i := 0; i < attempts; i++ {
		state, err := p.Probe(ctx, ip, port, timeout)
		if err != nil {
			return PortError, err
		}
		if state == PortOpen {
			return PortOpen, nil
		}
		if state.Priority() > best.Priority() {
			best = state
		}

		if i < attempts-1 {
			log.Debugf("%s:%d 第%d次探测结果%s,准备重试", ip, port, i+1, state)
			if !sleepJitter(ctx) {
				break
			}
		}
	}
	return best, nil
}

// sleepJitter 随机等待10~50ms,ctx被取消时返回false
func sleepJitter(ctx context.Context) bool {
	d := retryDelayMin + time.Duration(rand.Int63n(int64(retryDelayMax-retryDelayMin)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryProber 把重试策略包装成一个Prober
type retryProber struct {
	inner   Prober
	retries int
}

// WithRetries 返回一个每次探测都按CheckPort规则重试的Prober
func WithRetries(p Prober, retries int) Prober {
	return &retryProber{inner: p, retries: retries}
}

func (r *retryProber) Name() string {
	return r.inner.Name()
}

func (r *retryProber) Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) (PortState, error) {
	return CheckPort(ctx, r.inner, ip, port, timeout, r.retries)
}

package scan

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Prober 有多种探测方式(connect/syn),用接口来定义单次探测的行为
// 返回的error只用于非法端口,网络层面的结果都体现在PortState中
type Prober interface {
	Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) (PortState, error)
	Name() string
}

// Record 一个端口的最终扫描结果,创建后不再修改
type Record struct {
	Port    int
	Service string
	Version string
	Status  PortState
}

func (r Record) IsOpen() bool {
	return r.Status == PortOpen
}

const (
	MaxWorkers    = 200 //worker数量的硬上限
	previewLimit  = 10  //非法端口最多展示的数量
	defaultWorker = 100
)

// Options 一次扫描会话的参数
type Options struct {
	ScanType ScanType
	Timeout  time.Duration
	Workers  int
	Retries  int
	// OnResult 每个端口完成后调用,会在多个worker中并发调用
	OnResult func(Record)
	// Capabilities 为nil时自动检测
	Capabilities *Capabilities
}

// Session 一次扫描会话,探测方式在创建时确定,之后所有端口共用
type Session struct {
	target     net.IP
	opts       Options
	caps       Capabilities
	prober     Prober
	identifier *Identifier
}

// NewSession 检测进程能力并选择探测方式
func NewSession(target net.IP, opts Options) *Session {
	caps := DetectCapabilities()
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}
	prober := SelectProber(opts.ScanType, target, caps)
	return newSession(target, opts, caps, prober, NewIdentifier())
}

func newSession(target net.IP, opts Options, caps Capabilities, prober Prober, identifier *Identifier) *Session {
	opts.Timeout = NormalizeTimeout(opts.Timeout)
	if opts.Workers == 0 {
		opts.Workers = defaultWorker
	}
	return &Session{
		target:     target,
		opts:       opts,
		caps:       caps,
		prober:     prober,
		identifier: identifier,
	}
}

// Mode 返回会话使用的扫描模式说明
func (s *Session) Mode() string {
	return ModeMessage(s.prober, s.caps)
}

func (s *Session) Prober() Prober {
	return s.prober
}

// Close 释放探测器持有的资源(如pcap句柄)
func (s *Session) Close() error {
	if c, ok := s.prober.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Scan 扫描一个目标的端口,返回与ports一一对应、顺序一致的结果
// ctx取消后不再派发新的端口,未探测的端口记为ERROR,同时返回ctx.Err()
func Scan(ctx context.Context, ip net.IP, ports []int, opts Options) ([]Record, error) {
	s := NewSession(ip, opts)
	defer s.Close()
	return s.Scan(ctx, ports)
}

// Scan 见包级函数Scan
func (s *Session) Scan(ctx context.Context, ports []int) ([]Record, error) {
	if err := validatePorts(ports); err != nil {
		return nil, err
	}

	results := make([]Record, len(ports))
	if len(ports) == 0 {
		return results, nil
	}
	//预先填充,未被执行的端口保持ERROR
	for i, port := range ports {
		results[i] = Record{Port: port, Service: UnknownService, Status: PortError}
	}

	workers := clampWorkers(s.opts.Workers, len(ports))
	log.Debugf("开始扫描%s 端口数:%d worker:%d 模式:%s", s.target, len(ports), workers, s.prober.Name())

	pool, err := ants.NewPoolWithFunc(workers, func(i interface{}) {
		job := i.(portJob)
		defer job.wg.Done()
		s.scanPort(job)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	wg := &sync.WaitGroup{}
	for i, port := range ports {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(portJob{ctx: ctx, ip: s.target, index: i, port: port, results: results, wg: wg}); err != nil {
			wg.Done()
			log.Debugf("%s:%d 任务提交失败:%v", s.target, port, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// scanPort 在worker中执行,只写入results[job.index]
func (s *Session) scanPort(job portJob) {
	rec := Record{Port: job.port, Service: UnknownService, Status: PortError}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s:%d 探测异常:%v", job.ip, job.port, r)
			rec = Record{Port: job.port, Service: UnknownService, Status: PortError}
		}
		job.results[job.index] = rec
		if s.opts.OnResult != nil {
			s.opts.OnResult(rec)
		}
	}()

	if job.ctx.Err() != nil {
		return
	}

	state, err := CheckPort(job.ctx, s.prober, job.ip, job.port, s.opts.Timeout, s.opts.Retries)
	if err != nil {
		log.Debugf("%s:%d 探测失败:%v", job.ip, job.port, err)
		return
	}
	rec.Status = state

	//只有开放的端口才做服务识别
	if state == PortOpen && s.identifier != nil {
		rec.Service, rec.Version = s.identifier.Identify(job.ctx, job.ip, job.port, s.opts.Timeout)
	}
}

// clampWorkers worker数量限制在 [1, min(n, MaxWorkers, ports)]
func clampWorkers(n, ports int) int {
	if n > MaxWorkers {
		n = MaxWorkers
	}
	if n > ports {
		n = ports
	}
	if n < 1 {
		n = 1
	}
	return n
}

// validatePorts 在开始探测前检查所有端口
func validatePorts(ports []int) error {
	var invalid []string
	for _, p := range ports {
		if !validPort(p) {
			invalid = append(invalid, strconv.Itoa(p))
		}
	}
	if len(invalid) == 0 {
		return nil
	}

	suffix := ""
	if len(invalid) > previewLimit {
		invalid = invalid[:previewLimit]
		suffix = "..."
	}
	return errors.Wrapf(ErrInvalidPortSet, "invalid ports found: %s%s, valid range is %d-%d",
		strings.Join(invalid, ", "), suffix, MinPort, MaxPort)
}

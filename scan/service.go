package scan

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// UnknownService 无法识别时的服务名
const UnknownService = "Unknown"

const (
	bannerBudget  = 1024 //单次读取banner的最大字节数
	versionMaxLen = 80
	httpProbe     = "HEAD / HTTP/1.0\r\nHost: target\r\n\r\n"
)

// 这些端口上服务不会主动发送banner,需要先发一个HTTP请求
var (
	servicePorts = map[int]bool{80: true, 8080: true, 8000: true, 8888: true}
	versionPorts = map[int]bool{80: true, 8080: true, 8000: true, 8888: true, 443: true}
)

// signature banner匹配规则,any中任意一个出现且all全部出现即命中
type signature struct {
	any   []string
	all   []string
	label string
}

var httpShape = []string{"http/", "server:", "content-type:"}

// 自上而下匹配,先命中者优先;纯粹的启发式规则,结果仅供参考
var signatures = []signature{
	{any: []string{"ssh-"}, label: "SSH"},
	{any: []string{"ftp"}, label: "FTP"},
	{any: []string{"smtp"}, label: "SMTP"},
	{any: []string{"mysql"}, label: "MySQL"},
	{any: []string{"postgres"}, label: "PostgreSQL"},
	{any: []string{"redis"}, label: "Redis"},
	{any: []string{"mongo"}, label: "MongoDB"},
	{any: httpShape, all: []string{"https"}, label: "HTTPS"},
	{any: httpShape, label: "HTTP"},
}

var versionSignatures = []string{
	`OpenSSH[_\-/ ]?[0-9A-Za-z.]+`,
	`nginx[/ ]?[0-9.]+`,
	`Apache[/ ]?[0-9.]+`,
	`cloudflare`,
	`Postfix[/ ]?[0-9A-Za-z.]+`,
	`Exim[/ ]?[0-9A-Za-z.]+`,
	`Microsoft-IIS/[0-9.]+`,
}

var versionRe = regexp.MustCompile(`(?i)(` + strings.Join(versionSignatures, "|") + `)`)

// Identifier 对开放端口做服务与版本识别,所有失败都降级为Unknown/空字符串
type Identifier struct {
	describe func(port int) string
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewIdentifier 使用内置IANA端口表
func NewIdentifier() *Identifier {
	return &Identifier{describe: DescribePort}
}

// Identify 返回服务名和版本
func (id *Identifier) Identify(ctx context.Context, ip net.IP, port int, timeout time.Duration) (string, string) {
	if !validPort(port) {
		return UnknownService, ""
	}
	return id.Service(ctx, ip, port, timeout), id.Version(ctx, ip, port, timeout)
}

// Service 标准端口直接使用IANA服务名,banner不会覆盖它;其余端口通过banner识别
func (id *Identifier) Service(ctx context.Context, ip net.IP, port int, timeout time.Duration) string {
	if name := id.describe(port); name != "" {
		return strings.ToUpper(name)
	}

	banner, err := id.grab(ctx, ip, port, timeout, servicePorts[port])
	if err != nil {
		log.Debugf("%s:%d banner读取失败:%v", ip, port, err)
		return UnknownService
	}
	return matchService(banner)
}

// Version 单独建立一次连接读取banner并提取版本
func (id *Identifier) Version(ctx context.Context, ip net.IP, port int, timeout time.Duration) string {
	banner, err := id.grab(ctx, ip, port, timeout, versionPorts[port])
	if err != nil {
		log.Debugf("%s:%d 版本读取失败:%v", ip, port, err)
		return ""
	}
	return extractVersion(banner)
}

// grab 建立短连接,必要时发送HTTP探测,读取一次响应
func (id *Identifier) grab(ctx context.Context, ip net.IP, port int, timeout time.Duration, probe bool) (string, error) {
	timeout = NormalizeTimeout(timeout)
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(port))

	dial := id.dial
	if dial == nil {
		d := net.Dialer{Timeout: timeout}
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if probe {
		_, _ = conn.Write([]byte(httpProbe))
	}

	buf := make([]byte, bannerBudget)
	n, err := conn.Read(buf)
	if n == 0 {
		return "", err
	}
	return strings.ToValidUTF8(string(buf[:n]), ""), nil
}

// matchService 在banner中按顺序匹配签名
func matchService(banner string) string {
	text := strings.ToLower(strings.TrimSpace(banner))
	if text == "" {
		return UnknownService
	}
	for _, sig := range signatures {
		if sig.matches(text) {
			return sig.label
		}
	}
	return UnknownService
}

func (s signature) matches(text string) bool {
	for _, a := range s.all {
		if !strings.Contains(text, a) {
			return false
		}
	}
	for _, a := range s.any {
		if strings.Contains(text, a) {
			return true
		}
	}
	return false
}

// extractVersion 依次尝试 Server头、已知软件签名、第一行非空文本
func extractVersion(banner string) string {
	lines := strings.Split(strings.ReplaceAll(banner, "\r\n", "\n"), "\n")
	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "server:") {
			if v := strings.TrimSpace(line[len("server:"):]); v != "" {
				return truncate(v, versionMaxLen)
			}
		}
	}

	if m := versionRe.FindStringSubmatch(banner); m != nil {
		return truncate(strings.ReplaceAll(m[1], "_", " "), versionMaxLen)
	}

	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, versionMaxLen)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

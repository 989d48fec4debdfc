// Package output 负责终端表格输出以及CSV/JSON导出
package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gookit/color"

	"portscan/scan"
	"portscan/store"
)

const (
	serviceWidth = 12
	versionWidth = 28
)

var statusColors = map[scan.PortState]func(a ...interface{}) string{
	scan.PortOpen:     color.FgLightGreen.Render,
	scan.PortClosed:   color.FgLightRed.Render,
	scan.PortFiltered: color.FgYellow.Render,
	scan.PortError:    color.Gray.Render,
}

// Printer 终端输出,多个worker的回调可能并发,调用方负责串行化
type Printer struct {
	w        io.Writer
	Color    bool
	OpenOnly bool // 只打印开放的端口
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, Color: color.SupportColor()}
}

func (p *Printer) paint(render func(a ...interface{}) string, s string) string {
	if !p.Color || render == nil {
		return s
	}
	return render(s)
}

// Target 打印扫描目标信息
func (p *Printer) Target(target string, ip string, ports int) {
	fmt.Fprintf(p.w, "Target : %s\nIP     : %s\nPorts  : %d\n\n",
		p.paint(color.FgLightGreen.Render, target), p.paint(color.FgCyan.Render, ip), ports)
}

// Mode 打印扫描模式
func (p *Printer) Mode(message string) {
	fmt.Fprintf(p.w, "%s\n\n", p.paint(color.FgLightCyan.Render, message))
}

// Header 结果表头
func (p *Printer) Header() {
	fmt.Fprintln(p.w, p.paint(color.Bold.Render,
		pad("PORT", 7)+pad("SERVICE", serviceWidth+1)+pad("VERSION", versionWidth+1)+"STATUS"))
}

// Row 打印一个端口的结果,OpenOnly时跳过非开放端口
func (p *Printer) Row(r scan.Record) {
	if p.OpenOnly && !r.IsOpen() {
		return
	}
	service := r.Service
	if service == "" {
		service = scan.UnknownService
	}
	version := r.Version
	if version == "" {
		version = "-"
	}
	line := pad(strconv.Itoa(r.Port), 7) +
		pad(clip(service, serviceWidth), serviceWidth+1) +
		pad(clip(version, versionWidth), versionWidth+1) +
		r.Status.String()
	fmt.Fprintln(p.w, p.paint(statusColors[r.Status], line))
}

// Table 表头加所有结果
func (p *Printer) Table(records []scan.Record) {
	p.Header()
	for _, r := range records {
		p.Row(r)
	}
}

// Summary 一次扫描的汇总
type Summary struct {
	Target  string
	IP      string
	Open    int
	NotOpen int
	Saved   int
	DBPath  string
	Elapsed time.Duration
}

// Summarize 统计开放与非开放的端口数
func Summarize(records []scan.Record) (open, notOpen int) {
	for _, r := range records {
		if r.IsOpen() {
			open++
		} else {
			notOpen++
		}
	}
	return open, notOpen
}

func (p *Printer) Summary(s Summary) {
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "%s %s (%s)\n", pad("Target", 14), s.Target, s.IP)
	fmt.Fprintf(p.w, "%s %s\n", pad("Open Ports", 14), p.paint(color.FgLightGreen.Render, strconv.Itoa(s.Open)))
	fmt.Fprintf(p.w, "%s %s\n", pad("Closed Ports", 14), p.paint(color.FgLightRed.Render, strconv.Itoa(s.NotOpen)))
	if s.DBPath != "" {
		fmt.Fprintf(p.w, "%s %d (%s)\n", pad("Rows Saved", 14), s.Saved, s.DBPath)
	}
	if s.Elapsed > 0 {
		fmt.Fprintf(p.w, "%s %s\n", pad("Elapsed", 14), s.Elapsed.Round(time.Millisecond))
	}
}

// History 打印历史记录
func (p *Printer) History(rows []store.Row) {
	fmt.Fprintln(p.w, p.paint(color.Bold.Render,
		pad("ID", 8)+pad("TARGET", 24)+pad("PORT", 7)+pad("STATUS", 10)+"TIMESTAMP"))
	for _, r := range rows {
		line := pad(strconv.FormatInt(r.ID, 10), 8) + pad(r.Target, 24) + pad(strconv.Itoa(r.Port), 7) + pad(r.Status, 10) + r.Timestamp
		state, err := scan.ParsePortState(r.Status)
		if err != nil {
			fmt.Fprintln(p.w, line)
			continue
		}
		fmt.Fprintln(p.w, p.paint(statusColors[state], line))
	}
	if len(rows) == 0 {
		fmt.Fprintln(p.w, "no scans recorded")
	}
}

//填充空格直到达到指定的长度
func pad(input string, length int) string {
	for len([]rune(input)) < length {
		input += " "
	}
	return input
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"portscan/config"
	"portscan/output"
	"portscan/scan"
	"portscan/store"
)

const version = "development version"

var defaults = config.Default()

//默认值
var debug bool                                                         //日志级别
var configPath string                                                  //配置文件
var dbPath = defaults.Store.Path                                       //数据库
var timeoutMS = int(defaults.Scan.Timeout.Duration / time.Millisecond) //连接超时
var parallelism = defaults.Scan.Workers                                //并发数量
var retries = defaults.Scan.Retries                                    //重试次数
var maxPorts = defaults.Scan.MaxPorts                                  //端口数量上限
var portSelection string                                               //指定端口
var scanType = defaults.Scan.ScanType                                  //扫描模式
var format = defaults.Output.Format                                    //输出格式
var openOnly bool                                                      //只输出开放端口
var noSave bool                                                        //不保存结果
var versionRequested bool                                              //打印版本

//初始话命令
func init() {
	//带P的表示同时可接收缩写选项,P代表可以设置短指令
	rootCmd.PersistentFlags().BoolVarP(&debug, "verbose", "v", debug, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "", dbPath, "SQLite database path")

	rootCmd.Flags().BoolVarP(&versionRequested, "version", "", versionRequested, "Output version information and exit")
	rootCmd.Flags().BoolVarP(&openOnly, "open-only", "u", openOnly, "Omit output for ports which are not open")
	rootCmd.Flags().BoolVarP(&noSave, "no-save", "", noSave, "Do not store results in the database")
	rootCmd.Flags().StringVarP(&scanType, "scan-type", "s", scanType, "Scan type. Must be one of auto, stealth, connect")
	rootCmd.Flags().StringVarP(&format, "format", "f", format, "Output format: table, csv, json")
	rootCmd.Flags().IntVarP(&timeoutMS, "timeout-ms", "t", timeoutMS, "Probe timeout in MS")
	rootCmd.Flags().IntVarP(&parallelism, "workers", "w", parallelism, "Parallel routines to scan on (max 200)")
	rootCmd.Flags().IntVarP(&retries, "retries", "r", retries, "Extra attempts for ports that are not open")
	rootCmd.Flags().IntVarP(&maxPorts, "max-ports", "", maxPorts, "Maximum number of ports in one scan")
	rootCmd.Flags().StringVarP(&portSelection, "ports", "p", portSelection, "Port to scan. Comma separated, can use hyphens e.g. 22,80,443,8080-8090")

	rootCmd.AddCommand(historyCmd, exportCmd)
}

var rootCmd = &cobra.Command{
	Use:   "portscan <target> [ports]",
	Short: "TCP port scanner with service detection",
	Example: `  portscan 127.0.0.1 20-80
  portscan scanme.nmap.org -p 22,80,443 -t 300
  portscan 192.168.1.1 -p 1-1024 --db data/custom.db`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel) //设置日志级别
		}
	},
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if versionRequested {
		fmt.Fprintln(cmd.OutOrStdout(), version)
		return nil
	}
	//检查是否输入目标
	if len(args) == 0 {
		return errors.New("至少指定一个目标IP或域名!")
	}
	target := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	//第二个位置参数也可以作为端口
	if len(args) > 1 && !cmd.Flags().Changed("ports") {
		cfg.Scan.Ports = args[1]
	}
	if cfg.Scan.Ports == "" {
		return errors.Wrap(scan.ErrInvalidSpec, "请指定端口!")
	}

	ports, err := scan.ParsePorts(cfg.Scan.Ports)
	if err != nil {
		return err
	}
	if len(ports) > cfg.Scan.MaxPorts {
		return errors.Wrapf(scan.ErrInvalidSpec, "%d ports requested, at most %d allowed", len(ports), cfg.Scan.MaxPorts)
	}
	st, err := scan.ParseScanType(cfg.Scan.ScanType)
	if err != nil {
		return errors.Wrap(scan.ErrInvalidSpec, err.Error())
	}

	ip, err := scan.ResolveTarget(target)
	if err != nil {
		return err
	}

	var db *store.Store
	if !noSave {
		if db, err = store.Open(cfg.Store.Path); err != nil {
			return err
		}
		defer db.Close()
	}

	//表格以外的格式占用stdout,提示信息写到stderr
	out := cmd.OutOrStdout()
	var info io.Writer = out
	if cfg.Output.Format != "table" {
		info = cmd.ErrOrStderr()
	}
	printer := output.NewPrinter(info)
	printer.OpenOnly = cfg.Output.OpenOnly

	//设置一个主动取消的机制
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c: //阻塞直到有信号
			fmt.Fprintln(info, "退出...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var done int64
	total := len(ports)
	session := scan.NewSession(ip, scan.Options{
		ScanType: st,
		Timeout:  cfg.Scan.Timeout.Duration,
		Workers:  cfg.Scan.Workers,
		Retries:  cfg.Scan.Retries,
		OnResult: func(r scan.Record) {
			n := atomic.AddInt64(&done, 1)
			log.Debugf("[%d/%d] %d %s", n, total, r.Port, r.Status)
		},
	})
	defer session.Close()

	printer.Target(target, ip.String(), total)
	printer.Mode(session.Mode())

	start := time.Now()
	log.Debugf("开始扫描:%v", target)
	results, err := session.Scan(ctx, ports)
	cancelled := errors.Is(err, context.Canceled)
	if err != nil && !cancelled {
		return err
	}
	stamp := store.Timestamp(start)

	//将结果打印
	switch cfg.Output.Format {
	case "table":
		printer.Table(results)
	default:
		entries := output.FromRecords(target, stamp, filterOpen(results, cfg.Output.OpenOnly))
		if err := output.Export(out, cfg.Output.Format, entries); err != nil {
			return err
		}
	}

	open, notOpen := output.Summarize(results)
	summary := output.Summary{Target: target, IP: ip.String(), Open: open, NotOpen: notOpen, Elapsed: time.Since(start)}
	if cancelled {
		log.Warnf("扫描被中断,结果不保存")
	} else if db != nil {
		saved, err := db.InsertScanResults(context.Background(), target, results, start)
		if err != nil {
			return err
		}
		summary.Saved, summary.DBPath = saved, db.Path()
	}
	printer.Summary(summary)
	return err
}

func filterOpen(records []scan.Record, openOnly bool) []scan.Record {
	if !openOnly {
		return records
	}
	kept := make([]scan.Record, 0, len(records))
	for _, r := range records {
		if r.IsOpen() {
			kept = append(kept, r)
		}
	}
	return kept
}

// loadConfig 默认值 < 配置文件 < 显式指定的flag
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("db") {
		cfg.Store.Path = dbPath
	}
	if f.Changed("ports") {
		cfg.Scan.Ports = portSelection
	}
	if f.Changed("scan-type") {
		cfg.Scan.ScanType = scanType
	}
	if f.Changed("timeout-ms") {
		cfg.Scan.Timeout = config.Duration{Duration: time.Duration(timeoutMS) * time.Millisecond}
	}
	if f.Changed("workers") {
		cfg.Scan.Workers = parallelism
	}
	if f.Changed("retries") {
		cfg.Scan.Retries = retries
	}
	if f.Changed("max-ports") {
		cfg.Scan.MaxPorts = maxPorts
	}
	if f.Changed("format") {
		cfg.Output.Format = format
	}
	if f.Changed("open-only") {
		cfg.Output.OpenOnly = openOnly
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// exitCode 输入错误返回2,其余返回1
func exitCode(err error) int {
	for _, e := range []error{scan.ErrInvalidSpec, scan.ErrInvalidPortSet, scan.ErrResolution} {
		if errors.Is(err, e) {
			return 2
		}
	}
	return 1
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(exitCode(err))
	}
}

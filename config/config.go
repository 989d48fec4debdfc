package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 顶层配置,命令行中显式指定的flag会覆盖文件中的值
type Config struct {
	Scan   ScanConfig   `yaml:"scan"`
	Store  StoreConfig  `yaml:"store"`
	Output OutputConfig `yaml:"output"`
}

// ScanConfig 扫描参数
type ScanConfig struct {
	Ports    string   `yaml:"ports"`     // e.g. "22,80,443,8000-8100"
	ScanType string   `yaml:"scan_type"` // auto, connect, syn
	Timeout  Duration `yaml:"timeout"`   // 单次探测超时
	Workers  int      `yaml:"workers"`
	Retries  int      `yaml:"retries"`
	MaxPorts int      `yaml:"max_ports"` // 单次扫描允许的最大端口数
}

// StoreConfig 扫描结果的保存位置
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig 控制结果输出
type OutputConfig struct {
	Format   string `yaml:"format"`    // table, csv, json
	OpenOnly bool   `yaml:"open_only"` // 只输出开放的端口
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "800ms", "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

var formats = map[string]bool{"table": true, "csv": true, "json": true}

// Default 未提供配置文件时使用的值
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			ScanType: "auto",
			Timeout:  Duration{800 * time.Millisecond},
			Workers:  100,
			Retries:  1,
			MaxPorts: 65535,
		},
		Store:  StoreConfig{Path: "data/portscan.db"},
		Output: OutputConfig{Format: "table"},
	}
}

// Load 在默认值的基础上读取YAML文件,文件中没有出现的字段保持默认
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate 检查取值范围,端口表达式本身由scan.ParsePorts校验
func (c *Config) Validate() error {
	if c.Scan.Timeout.Duration < 0 {
		return errors.Errorf("timeout must not be negative: %s", c.Scan.Timeout)
	}
	if c.Scan.Workers < 0 {
		return errors.Errorf("workers must not be negative: %d", c.Scan.Workers)
	}
	if c.Scan.Retries < 0 {
		return errors.Errorf("retries must not be negative: %d", c.Scan.Retries)
	}
	if c.Scan.MaxPorts < 1 || c.Scan.MaxPorts > 65535 {
		return errors.Errorf("max_ports must be between 1 and 65535: %d", c.Scan.MaxPorts)
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if !formats[c.Output.Format] {
		return errors.Errorf("unknown output format %q", c.Output.Format)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store path must not be empty")
	}
	return nil
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/any-cache/internal/cache"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数，所有请求共享同一份配置。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StorageRoot     string   `mapstructure:"StorageRoot"`
	Namespace       string   `mapstructure:"Namespace"`
	Workers         int      `mapstructure:"Workers"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	MaxBodyBytes    int64    `mapstructure:"MaxBodyBytes"`
}

// PolicyConfig 描述未显式指定策略的请求所使用的默认读写策略。
type PolicyConfig struct {
	ReadPolicy  string   `mapstructure:"ReadPolicy"`
	WritePolicy string   `mapstructure:"WritePolicy"`
	DefaultTTL  Duration `mapstructure:"DefaultTTL"`
}

// TracingConfig 控制 OpenTelemetry 导出，Endpoint 为空时不导出。
type TracingConfig struct {
	Enabled     bool   `mapstructure:"Enabled"`
	Endpoint    string `mapstructure:"Endpoint"`
	ServiceName string `mapstructure:"ServiceName"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Policy  PolicyConfig  `mapstructure:"Policy"`
	Tracing TracingConfig `mapstructure:"Tracing"`
}

// DefaultPolicy 解析 [Policy] 段为默认读写策略。
func (c *Config) DefaultPolicy() (cache.Policy, error) {
	read, err := cache.ParseReadOptions(c.Policy.ReadPolicy)
	if err != nil {
		return cache.Policy{}, newFieldError("Policy.ReadPolicy", err.Error())
	}
	write, err := cache.ParseWriteOptions(c.Policy.WritePolicy)
	if err != nil {
		return cache.Policy{}, newFieldError("Policy.WritePolicy", err.Error())
	}
	return cache.Policy{
		Read:  read,
		Write: write,
		TTL:   c.Policy.DefaultTTL.DurationValue(),
	}, nil
}

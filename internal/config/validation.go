package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if _, err := cache.ResolveDir(g.StorageRoot, g.Namespace); err != nil {
		return newFieldError("Global.Namespace", "必须为非空且不含路径分隔符的名称")
	}
	if g.Workers < 0 {
		return newFieldError("Global.Workers", "不能为负数")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.MaxBodyBytes < 0 {
		return newFieldError("Global.MaxBodyBytes", "不能为负数")
	}

	p := c.Policy
	if _, err := cache.ParseReadOptions(p.ReadPolicy); err != nil {
		return newFieldError("Policy.ReadPolicy", err.Error())
	}
	if _, err := cache.ParseWriteOptions(p.WritePolicy); err != nil {
		return newFieldError("Policy.WritePolicy", err.Error())
	}
	if p.DefaultTTL.DurationValue() < 0 {
		return newFieldError("Policy.DefaultTTL", "不能为负数")
	}

	if c.Tracing.Enabled {
		endpoint := strings.TrimSpace(c.Tracing.Endpoint)
		if endpoint == "" {
			return newFieldError("Tracing.Endpoint", "启用 Tracing 时不能为空")
		}
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return newFieldError("Tracing.Endpoint", "必须是合法的 URL")
		}
	}

	return nil
}

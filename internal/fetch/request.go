package fetch

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/cespare/xxhash/v2"

	"github.com/any-hub/any-cache/internal/cache"
)

// Request 描述一次上游请求。
type Request struct {
	URL    string
	Method string
	Header http.Header
}

// NewRequest 构建 GET 请求。
func NewRequest(rawURL string) Request {
	return Request{URL: rawURL, Method: http.MethodGet}
}

// KeyFunc 将请求映射为稳定的缓存标识符。
type KeyFunc func(Request) (string, error)

// CanonicalURL 返回请求的绝对 URL 规范形式；无法推导时返回 ErrBadRequest。
func CanonicalURL(req Request) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("empty url: %w", cache.ErrBadRequest)
	}
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %v: %w", err, cache.ErrBadRequest)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", fmt.Errorf("url %q is not absolute: %w", req.URL, cache.ErrBadRequest)
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}

// RequestKey 是默认 KeyFunc：对规范 URL 取 xxhash，输出 16 位十六进制。
// 哈希碰撞不做检测，碰撞的两个资源会共享同一条目。
func RequestKey(req Request) (string, error) {
	canonical, err := CanonicalURL(req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(canonical)), nil
}

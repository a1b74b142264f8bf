package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Fetcher 执行实际的上游请求。任何失败（超时、DNS、非 2xx）都视为拉取失败。
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// FetcherFunc 将函数适配为 Fetcher。
type FetcherFunc func(ctx context.Context, req Request) ([]byte, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// ErrBodyTooLarge 表示响应体超过 MaxBodyBytes。
var ErrBodyTooLarge = errors.New("upstream body too large")

// maxPreallocBytes 限制依据 Content-Length 预分配的缓冲区大小。
const maxPreallocBytes = 1 << 20

// StatusError 表示上游返回了非 2xx 状态码。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
}

// HTTPFetcher 基于共享 http.Client 拉取资源。
type HTTPFetcher struct {
	client *http.Client
	// MaxBodyBytes 限制单个响应体大小，<= 0 表示不限制。
	MaxBodyBytes int64
}

// NewHTTPFetcher 使用 client 构建 Fetcher；client 为空时使用默认调优的共享客户端。
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = NewUpstreamClient(0)
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, err
	}
	CopyHeaders(httpReq.Header, req.Header)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	if f.MaxBodyBytes > 0 && resp.ContentLength > f.MaxBodyBytes {
		return nil, fmt.Errorf("upstream declared %d bytes: %w", resp.ContentLength, ErrBodyTooLarge)
	}

	var body io.Reader = resp.Body
	if f.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBodyBytes+1)
	}
	var buf bytes.Buffer
	// Content-Length 只作为预分配提示，上限为 maxPreallocBytes。
	if resp.ContentLength > 0 {
		buf.Grow(int(min(resp.ContentLength, maxPreallocBytes)))
	}
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if f.MaxBodyBytes > 0 && int64(buf.Len()) > f.MaxBodyBytes {
		return nil, fmt.Errorf("upstream body exceeds %d bytes: %w", f.MaxBodyBytes, ErrBodyTooLarge)
	}
	return buf.Bytes(), nil
}

package proxy

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/fetch"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/server"
)

// Orchestrator 是 Handler 依赖的拉取能力，*fetch.Orchestrator 实现了该接口。
type Orchestrator interface {
	Do(ctx context.Context, req fetch.Request, params cache.Parameters) (fetch.Result, error)
}

// forwardedHeaders 是会透传给上游的请求头。
var forwardedHeaders = []string{"Accept", "Accept-Language", "Authorization"}

// Handler 将 GET /fetch?url=... 转换为一次编排拉取，按请求参数覆盖默认读写策略。
type Handler struct {
	orch     Orchestrator
	logger   *logrus.Logger
	defaults cache.Policy
	now      func() time.Time
}

// NewHandler constructs a fetch handler over the shared orchestrator.
func NewHandler(orch Orchestrator, logger *logrus.Logger, defaults cache.Policy) *Handler {
	return &Handler{
		orch:     orch,
		logger:   logger,
		defaults: defaults,
		now:      time.Now,
	}
}

// Handle 实现 server.FetchHandler。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := h.now()
	requestID := server.RequestID(c)
	rawURL := strings.TrimSpace(c.Query("url"))

	params, err := h.parameters(c)
	if err != nil {
		h.logResult(requestID, rawURL, fetch.Result{}, started, err)
		return h.writeError(c, fiber.StatusBadRequest, "bad_request", err)
	}

	req := fetch.NewRequest(rawURL)
	req.Header = forwardHeaders(c)

	res, err := h.orch.Do(c.Context(), req, params)
	h.logResult(requestID, rawURL, res, started, err)
	if err != nil {
		return h.renderFailure(c, err)
	}

	c.Set("X-Any-Cache-Key", res.Identifier)
	c.Set("X-Any-Cache-Hit", strconv.FormatBool(res.Hit))
	c.Set("X-Any-Cache-Shared", strconv.FormatBool(res.Shared))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Status(fiber.StatusOK).Send(res.Payload)
}

// parameters 解析 read/write/ttl 查询参数，缺省时使用默认策略。
func (h *Handler) parameters(c fiber.Ctx) (cache.Parameters, error) {
	policy := h.defaults
	if raw := c.Query("read"); raw != "" {
		read, err := cache.ParseReadOptions(raw)
		if err != nil {
			return cache.Parameters{}, err
		}
		policy.Read = read
	}
	if raw := c.Query("write"); raw != "" {
		write, err := cache.ParseWriteOptions(raw)
		if err != nil {
			return cache.Parameters{}, err
		}
		policy.Write = write
	}
	if raw := c.Query("ttl"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl < 0 {
			return cache.Parameters{}, errors.New("ttl must be a non-negative duration")
		}
		policy.TTL = ttl
	}
	return policy.Parameters(h.now()), nil
}

func (h *Handler) renderFailure(c fiber.Ctx, err error) error {
	var statusErr *fetch.StatusError
	switch {
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, cache.ErrInvalid):
		// 策略禁止回源且缓存未命中。
		return h.writeError(c, fiber.StatusNotFound, "not_cached", err)
	case errors.Is(err, cache.ErrBadRequest):
		return h.writeError(c, fiber.StatusBadRequest, "bad_request", err)
	case errors.Is(err, context.DeadlineExceeded):
		return h.writeError(c, fiber.StatusGatewayTimeout, "upstream_timeout", err)
	case errors.As(err, &statusErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":           "upstream_failed",
			"upstream_status": statusErr.StatusCode,
		})
	default:
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed", err)
	}
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string, err error) error {
	payload := fiber.Map{"error": code}
	if err != nil {
		payload["message"] = err.Error()
	}
	return c.Status(status).JSON(payload)
}

func (h *Handler) logResult(requestID, rawURL string, res fetch.Result, started time.Time, err error) {
	fields := logging.RequestFields(requestID, rawURL, res.Identifier, res.Hit, res.Shared)
	fields["action"] = "fetch"
	fields["elapsed_ms"] = h.now().Sub(started).Milliseconds()
	if err != nil {
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) {
			fields["upstream_status"] = statusErr.StatusCode
		}
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Warn("fetch_failed")
		return
	}
	h.logger.WithFields(fields).Info("fetch_complete")
}

func forwardHeaders(c fiber.Ctx) http.Header {
	header := http.Header{}
	for _, key := range forwardedHeaders {
		if value := c.Get(key); value != "" {
			header.Set(key, value)
		}
	}
	return header
}

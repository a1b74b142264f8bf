package routes

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/version"
)

// CacheAdmin 是诊断接口依赖的缓存管理能力，*cache.Engine 实现了该接口。
type CacheAdmin interface {
	Stats() cache.Stats
	ClearMemoryStorage()
	ClearDiskStorage(ctx context.Context) error
	Delete(ctx context.Context, identifier string) error
}

// InFlightCounter 报告当前进行中的拉取数量。
type InFlightCounter interface {
	InFlight() int
}

// RegisterCacheRoutes 暴露 /-/status 与 /-/cache 诊断接口，供运维查询状态并清理缓存。
func RegisterCacheRoutes(app *fiber.App, admin CacheAdmin, inflight InFlightCounter) {
	if app == nil || admin == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"cache":   admin.Stats(),
			"version": version.Full(),
		}
		if inflight != nil {
			payload["in_flight"] = inflight.InFlight()
		}
		return c.JSON(payload)
	})

	app.Delete("/-/cache/memory", func(c fiber.Ctx) error {
		admin.ClearMemoryStorage()
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Delete("/-/cache/disk", func(c fiber.Ctx) error {
		if err := admin.ClearDiskStorage(c.Context()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "clear_failed",
				"message": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Delete("/-/cache/entries/:key", func(c fiber.Ctx) error {
		key := strings.TrimSpace(c.Params("key"))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cache_key_required"})
		}
		if err := admin.Delete(c.Context(), key); err != nil {
			if errors.Is(err, cache.ErrBadPath) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_cache_key"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "delete_failed",
				"message": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

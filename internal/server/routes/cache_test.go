package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/any-cache/internal/cache"
)

type fakeAdmin struct {
	stats        cache.Stats
	memoryClears int
	diskErr      error
	deleted      []string
}

func (f *fakeAdmin) Stats() cache.Stats { return f.stats }

func (f *fakeAdmin) ClearMemoryStorage() { f.memoryClears++ }

func (f *fakeAdmin) ClearDiskStorage(context.Context) error { return f.diskErr }

func (f *fakeAdmin) Delete(_ context.Context, identifier string) error {
	f.deleted = append(f.deleted, identifier)
	return nil
}

type fixedInFlight int

func (n fixedInFlight) InFlight() int { return int(n) }

func TestStatusRouteReportsStats(t *testing.T) {
	admin := &fakeAdmin{stats: cache.Stats{MemoryEntries: 2, DiskEntries: 3, Dir: "/tmp/x"}}
	app := fiber.New()
	RegisterCacheRoutes(app, admin, fixedInFlight(4))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/-/status", nil))
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Cache    cache.Stats `json:"cache"`
		InFlight int         `json:"in_flight"`
		Version  string      `json:"version"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode status: %v (%s)", err, string(body))
	}
	if payload.Cache.MemoryEntries != 2 || payload.Cache.DiskEntries != 3 || payload.Cache.Dir != "/tmp/x" {
		t.Fatalf("unexpected stats: %+v", payload.Cache)
	}
	if payload.InFlight != 4 || payload.Version == "" {
		t.Fatalf("unexpected status payload: %+v", payload)
	}
}

func TestClearAndDeleteRoutes(t *testing.T) {
	admin := &fakeAdmin{}
	app := fiber.New()
	RegisterCacheRoutes(app, admin, nil)

	for _, path := range []string{"/-/cache/memory", "/-/cache/disk", "/-/cache/entries/abc"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, path, nil))
		if err != nil {
			t.Fatalf("%s failed: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("%s: expected 204, got %d", path, resp.StatusCode)
		}
	}
	if admin.memoryClears != 1 {
		t.Fatalf("memory should be cleared once, got %d", admin.memoryClears)
	}
	if len(admin.deleted) != 1 || admin.deleted[0] != "abc" {
		t.Fatalf("unexpected deletes: %v", admin.deleted)
	}
}

func TestClearDiskFailureReturns500(t *testing.T) {
	admin := &fakeAdmin{diskErr: errors.New("busy")}
	app := fiber.New()
	RegisterCacheRoutes(app, admin, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/-/cache/disk", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

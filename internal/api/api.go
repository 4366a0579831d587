// Package api exposes the read-only HTTP surface over persisted catalog
// data: categories, article history, and a cached crawl-staleness probe.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

// Repository is the read-only query surface the API needs over persisted
// data.
type Repository interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
	GoodsHistory(ctx context.Context) ([]catalog.ArticleHistory, error)
}

// API is the Fiber app exposing the crawler's read-only endpoints.
type API struct {
	app       *fiber.App
	repo      Repository
	staleness *StalenessCache
	log       *logger.Logger
}

// New builds the API app and registers its routes.
func New(repo Repository, staleness *StalenessCache, log *logger.Logger) *API {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New())

	a := &API{app: app, repo: repo, staleness: staleness, log: log}

	app.Get("/api/categories", a.handleCategories)
	app.Get("/api/goods_history", a.handleGoodsHistory)
	app.Get("/api/crawls/staleness", a.handleStaleness)

	return a
}

// App returns the underlying Fiber app, mainly for tests driving requests
// with app.Test.
func (a *API) App() *fiber.App { return a.app }

// Listen starts serving on addr. It blocks until the server stops.
func (a *API) Listen(addr string) error { return a.app.Listen(addr) }

func (a *API) handleCategories(c *fiber.Ctx) error {
	categories, err := a.repo.Categories(c.Context())
	if err != nil {
		a.log.Error("api: list categories failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load categories")
	}
	return c.JSON(categories)
}

func (a *API) handleGoodsHistory(c *fiber.Ctx) error {
	history, err := a.repo.GoodsHistory(c.Context())
	if err != nil {
		a.log.Error("api: list goods history failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load goods history")
	}
	return c.JSON(history)
}

func (a *API) handleStaleness(c *fiber.Ctx) error {
	seconds, found, err := a.staleness.SecondsSinceLastCrawl(c.Context())
	if err != nil {
		a.log.Error("api: staleness lookup failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load crawl staleness")
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "no completed crawl recorded yet")
	}
	return c.JSON(fiber.Map{"seconds_since_last_crawl": seconds})
}

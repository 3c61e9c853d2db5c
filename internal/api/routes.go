package api

import (
	"github.com/bilgisen/kova/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteOptions struct {
	AdminAPIKey string
	Metrics     prometheus.Gatherer
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, opts RouteOptions) {
	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger())

	app.Get("/health", h.HealthCheck)
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	api.Post("/save", h.Save)
	api.Post("/reprocess/:id", h.Reprocess)
	api.Get("/content/:deviceId", h.List)
	api.Get("/content/:deviceId/:id", h.Get)
	api.Delete("/content/:deviceId/:id", h.Delete)
	api.Get("/search/:deviceId", h.Search)
	api.Get("/status/:deviceId", h.Status)
	api.Post("/upload-image", h.UploadImage)
	api.Get("/image/:id", h.Image)

	admin := app.Group("/admin", middleware.AdminOnly(opts.AdminAPIKey))
	admin.Get("/pipeline", h.PipelineStats)
	admin.Post("/sweep", h.Sweep)

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Endpoint not found")
	})
}

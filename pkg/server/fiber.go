package server

import (
	"rapport/pkg/envelope"
	"rapport/pkg/logging"
	"rapport/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// NewApp builds the fiber app with the ambient middleware and /health.
// Routes needing the gate or authentication are added by Register.
func NewApp(name string, origins []string, log logging.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		ReduceMemoryUsage:     true,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(log),
	})

	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: envelope.TraceLocal,
	}))
	app.Use(recover.New())
	app.Use(middleware.OperationLog(log))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(middleware.CORSConfig(origins)))

	app.Get("/health", func(c *fiber.Ctx) error {
		return envelope.OK(c, fiber.Map{"status": "ok", "service": name})
	})

	return app
}

package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberSwagger "github.com/gofiber/swagger"

	_ "github.com/scoreapp/score/docs"
	"github.com/scoreapp/score/internal/middleware"
	ws "github.com/scoreapp/score/internal/websocket"
)

// Routes is everything Register wires into the app.
type Routes struct {
	Score         *ScoreHandler
	Recommend     *RecommendHandler
	Auth          *middleware.AuthMiddleware
	RateLimiter   *middleware.RateLimiter
	UploadPerHour int
	Hub           *ws.Hub
}

// Register mounts the HTTP API, its Swagger UI and the progress websocket.
func Register(app *fiber.App, r Routes) {
	app.Get("/api/health", Health)
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	api := app.Group("/api", r.Auth.Authenticate())
	api.Post("/upload", r.RateLimiter.UploadLimit(r.UploadPerHour), r.Score.Upload)
	api.Get("/status/:jobId", r.Score.Status)
	api.Get("/result/:jobId", r.Score.Result)
	api.Post("/cancel/:jobId", r.Score.Cancel)
	api.Get("/download/:jobId/:kind", r.Score.Download)
	api.Post("/recommend", r.Recommend.Recommend)

	if r.Hub == nil {
		return
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		r.Hub.HandleConnection(c, c.Params("jobId"))
	}))
}

// handlers/http_routes.go
package handlers

import (
	"invite-reward-bot/middleware"
	"invite-reward-bot/models"
	"invite-reward-bot/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupHTTPRoutes mounts the liveness, metrics and operator routes.
func SetupHTTPRoutes(app *fiber.App, repo *services.GuildStateRepository, gatherer prometheus.Gatherer, serviceToken string, log *zap.SugaredLogger) {
	// 🔓 Public
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Bot is online and running!")
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"guilds": len(repo.GuildIDs()),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// 🔐 Operator routes, service token required
	operator := app.Group("/", middleware.ServiceTokenMiddleware(serviceToken, log))

	operator.Get("/guilds/:guildID/leaderboard", func(c *fiber.Ctx) error {
		guildID := c.Params("guildID")
		entries, ok := repo.Ranking(guildID, c.QueryInt("limit", services.LeaderboardSize))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown guild",
			})
		}
		if entries == nil {
			entries = []models.LeaderboardEntry{}
		}
		return c.JSON(fiber.Map{
			"guild_id": guildID,
			"entries":  entries,
		})
	})

	operator.Get("/export", func(c *fiber.Ctx) error {
		doc, err := repo.Export()
		if err != nil {
			log.Errorw("[HTTP] export failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to encode state",
				"cause": err.Error(),
			})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+services.BackupFilename+`"`)
		return c.Send(doc)
	})
}

package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	controller "sakanly/controllers"
	"sakanly/middleware"
	"sakanly/services"
	"sakanly/store"
	"sakanly/utils"
)

// Deps holds everything the HTTP layer needs
type Deps struct {
	Store     store.Store
	Sequences *services.SequenceService
	Templates *services.TemplateService
	Runs      *services.RunService
	Cipher    *utils.Cipher
	Logger    *logrus.Logger
}

func SetupRoutes(app *fiber.App, deps Deps) {
	authController := controller.NewAuthController(deps.Store, deps.Logger)
	sequenceController := controller.NewSequenceController(deps.Sequences, deps.Logger)
	templateController := controller.NewTemplateController(deps.Templates, deps.Logger)
	runController := controller.NewRunController(deps.Runs, deps.Logger)
	leadController := controller.NewLeadController(deps.Store, deps.Logger)
	providerController := controller.NewProviderController(deps.Store, deps.Cipher, deps.Logger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public auth endpoints
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(deps.Store), middleware.APIRateLimiter(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	api.Get("/me", authController.Me)

	// Lead routes
	lead := api.Group("/leads")
	lead.Post("/", leadController.CreateLead)
	lead.Get("/", leadController.GetLeads)
	lead.Get("/:id", leadController.GetLead)
	lead.Put("/:id", leadController.UpdateLead)
	lead.Delete("/:id", leadController.DeleteLead)

	// Run routes, nested under the lead they target
	lead.Post("/:leadId/runs", runController.StartRun)
	lead.Get("/:leadId/runs", runController.GetRuns)
	lead.Post("/:leadId/runs/:id/stop", runController.StopRun)

	// Template routes
	tpl := api.Group("/templates")
	tpl.Post("/", templateController.CreateTemplate)
	tpl.Get("/", templateController.GetTemplates)
	tpl.Get("/:id", templateController.GetTemplate)
	tpl.Put("/:id", templateController.UpdateTemplate)
	tpl.Delete("/:id", templateController.DeleteTemplate)

	// Sequence routes
	seq := api.Group("/sequences")
	seq.Post("/", sequenceController.CreateSequence)
	seq.Get("/", sequenceController.GetSequences)
	seq.Get("/:id", sequenceController.GetSequence)
	seq.Put("/:id", sequenceController.UpdateSequence)
	seq.Post("/:id/activate", sequenceController.ActivateSequence)
	seq.Post("/:id/pause", sequenceController.PauseSequence)
	seq.Post("/:id/archive", sequenceController.ArchiveSequence)
	seq.Put("/:id/steps", sequenceController.ReplaceSteps)

	// Provider routes
	provider := api.Group("/providers")
	provider.Post("/", providerController.CreateProvider)
	provider.Get("/", providerController.GetProviders)
	provider.Get("/:id", providerController.GetProvider)
	provider.Put("/:id", providerController.UpdateProvider)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"ok":    false,
			"error": "The requested resource was not found",
		})
	})
}

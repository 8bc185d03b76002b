package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/alerts"
	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/application/declaration"
	"github.com/jhoicas/tributa-api/internal/application/sire"
	"github.com/jhoicas/tributa-api/internal/application/taxpayer"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Invoices     *billing.CreateInvoiceUseCase
	Taxpayer     *taxpayer.UseCase
	Declarations *declaration.UseCase
	Sire         *sire.Orchestrator
	Alerts       *alerts.UseCase
	JWTSecret    string
	Log          zerolog.Logger
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	invoiceHandler := NewInvoiceHandler(deps.Invoices, deps.Log)
	invoices := api.Group("/invoices")
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/xml", invoiceHandler.XML)

	taxpayerHandler := NewTaxpayerHandler(deps.Taxpayer, deps.Log)
	api.Get("/taxpayer", taxpayerHandler.Get)
	api.Put("/taxpayer", taxpayerHandler.Upsert)

	declHandler := NewDeclarationHandler(deps.Declarations, deps.Sire, deps.Log)
	decls := api.Group("/declarations")
	decls.Post("/", declHandler.Create)
	decls.Put("/periods/:year/:month", declHandler.UpsertPeriod)
	decls.Get("/:id", declHandler.GetByID)
	decls.Patch("/:id", declHandler.Update)
	decls.Post("/:id/payment", declHandler.ConfirmPayment)
	decls.Post("/:id/verdict", declHandler.RecordVerdict)
	decls.Post("/:id/rectify", declHandler.Rectify)
	decls.Post("/:id/submit", declHandler.Submit)

	sireHandler := NewSireHandler(deps.Sire, deps.Log)
	sireGroup := api.Group("/sire")
	sireGroup.Get("/periods", sireHandler.ListPeriods)
	sireGroup.Post("/periods/:period/:stage", sireHandler.RunStage)
	sireGroup.Get("/processes/:id", sireHandler.GetProcess)
	sireGroup.Delete("/processes/:id/polling", sireHandler.CancelPolling)
	sireGroup.Get("/tickets/:ticket/file", sireHandler.DownloadFile)

	alertHandler := NewAlertHandler(deps.Alerts, deps.Log)
	api.Get("/alerts/deadlines", alertHandler.Deadlines)
}

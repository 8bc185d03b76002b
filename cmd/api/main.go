package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/tributa-api/internal/application/alerts"
	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/application/declaration"
	"github.com/jhoicas/tributa-api/internal/application/ports"
	"github.com/jhoicas/tributa-api/internal/application/sire"
	"github.com/jhoicas/tributa-api/internal/application/taxpayer"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
	"github.com/jhoicas/tributa-api/internal/infrastructure/crypto"
	"github.com/jhoicas/tributa-api/internal/infrastructure/events"
	"github.com/jhoicas/tributa-api/internal/infrastructure/memory"
	"github.com/jhoicas/tributa-api/internal/infrastructure/postgres"
	infrasunat "github.com/jhoicas/tributa-api/internal/infrastructure/sunat"
	"github.com/jhoicas/tributa-api/internal/infrastructure/ubl"
	httpRouter "github.com/jhoicas/tributa-api/internal/interfaces/http"
	"github.com/jhoicas/tributa-api/pkg/config"
	"github.com/jhoicas/tributa-api/pkg/logger"
)

// storage repositorios y unidades de trabajo de un backend.
type storage struct {
	invoices     repository.InvoiceRepository
	declarations repository.DeclarationRepository
	processes    repository.SireProcessRepository
	taxpayers    repository.TaxpayerRepository
	billingTx    billing.BillingTxRunner
	declTx       declaration.TxRunner
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("storage", cfg.App.Storage).
		Str("sunat_mode", cfg.SUNAT.Mode).
		Msg("iniciando aplicación")

	ctx := context.Background()

	st := openStorage(ctx, cfg, log)
	defer st.close()

	cipher := openCipher(cfg, log)

	var tokens infrasunat.TokenStore = infrasunat.NewMemoryTokenStore()
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = infrasunat.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		tokens = infrasunat.NewRedisTokenStore(rdb, cfg.App.Name)
	}

	var publisher ports.EventPublisher = events.Noop{}
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = events.Connect(cfg.NATS.URL, cfg.App.Name, log.Component("nats"))
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a NATS")
		}
		publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, log.Component("events"))
	}

	var authority sire.AuthorityClient
	if cfg.SUNAT.Mode == "live" {
		authority = infrasunat.NewClient(infrasunat.ClientConfig{
			AuthURL:       cfg.SUNAT.AuthURL,
			BaseURL:       cfg.SUNAT.BaseURL,
			Scope:         cfg.SUNAT.Scope,
			Timeout:       cfg.SUNAT.Timeout,
			RatePerSecond: cfg.SUNAT.RatePerSecond,
		}, tokens, log.Component("sunat"))
	} else {
		// autoridad simulada: tickets listos a la tercera consulta
		authority = infrasunat.NewMockAuthority(3)
	}

	taxpayerUC := taxpayer.NewUseCase(st.taxpayers, cipher, tokens, log.Component("taxpayer"))
	declarationUC := declaration.NewUseCase(st.declarations, st.declTx, publisher, log.Component("declarations"))
	allocator := billing.NewSequenceAllocator(st.billingTx, log.Component("sequences"))
	invoiceUC := billing.NewCreateInvoiceUseCase(
		allocator, st.invoices, taxpayerUC, declarationUC, ubl.NewRenderer(), publisher, log.Component("billing"),
	)
	alertsUC := alerts.NewUseCase(st.declarations)

	sireCfg := sire.DefaultConfig()
	sireCfg.PollInterval = cfg.SUNAT.PollInterval
	sireCfg.PollMaxAttempts = cfg.SUNAT.PollMaxAttempts
	sireCfg.PollMaxDuration = cfg.SUNAT.PollMaxDuration
	sireCfg.CallTimeout = cfg.SUNAT.Timeout
	sireCfg.AutoAdvance = cfg.SUNAT.AutoAdvance
	sireCfg.Retry.MaxAttempts = cfg.SUNAT.RetryMaxAttempts
	sireCfg.Retry.InitialInterval = cfg.SUNAT.RetryInitialInterval
	sireCfg.Retry.MaxInterval = cfg.SUNAT.RetryMaxInterval
	orchestrator := sire.NewOrchestrator(
		st.processes, st.declarations, taxpayerUC, authority, declarationUC, publisher, sireCfg, log.Zerolog(),
	)
	if _, err := orchestrator.ResumePending(ctx); err != nil {
		log.Error().Err(err).Msg("retomar procesos SIRE pendientes")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Tributa API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Invoices:     invoiceUC,
		Taxpayer:     taxpayerUC,
		Declarations: declarationUC,
		Sire:         orchestrator,
		Alerts:       alertsUC,
		JWTSecret:    cfg.JWT.Secret,
		Log:          log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	// los procesos cortados quedan iniciado/procesando y se retoman al próximo arranque
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del orquestador SIRE")
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			log.Error().Err(err).Msg("drenar NATS")
		}
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage {
	if cfg.App.Storage == "memory" {
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		store := memory.NewStore()
		return storage{
			invoices:     store.Invoices(),
			declarations: store.Declarations(),
			processes:    store.Processes(),
			taxpayers:    store.Taxpayers(),
			billingTx:    store,
			declTx:       store,
			close:        func() {},
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB, postgres.PoolOptions{ApplicationName: cfg.App.Name})
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, log.Component("migrate")); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}
	tx := postgres.NewTxRunner(pool)
	return storage{
		invoices:     postgres.NewInvoiceRepository(pool),
		declarations: postgres.NewDeclarationRepository(pool),
		processes:    postgres.NewSireProcessRepository(pool),
		taxpayers:    postgres.NewTaxpayerRepository(pool),
		billingTx:    tx,
		declTx:       tx,
		close:        pool.Close,
	}
}

func openCipher(cfg *config.Config, log *logger.Logger) *crypto.SecretBox {
	key := cfg.Crypto.CredentialsKey
	if key == "" {
		if cfg.App.Env == "production" {
			log.Fatal().Msg("CREDENTIALS_KEY es obligatorio en producción")
		}
		generated, err := crypto.GenerateKey()
		if err != nil {
			log.Fatal().Err(err).Msg("generar clave de credenciales")
		}
		log.Warn().Msg("CREDENTIALS_KEY vacío: se usa una clave efímera, las credenciales guardadas no sobreviven al reinicio")
		key = generated
	}
	box, err := crypto.NewSecretBox(key)
	if err != nil {
		log.Fatal().Err(err).Msg("clave de credenciales inválida")
	}
	return box
}

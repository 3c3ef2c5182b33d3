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

	appanalytics "github.com/storemaster/storemaster-api/internal/application/analytics"
	"github.com/storemaster/storemaster-api/internal/application/usecase"
	"github.com/storemaster/storemaster-api/internal/domain/store"
	"github.com/storemaster/storemaster-api/internal/infrastructure/cache"
	"github.com/storemaster/storemaster-api/internal/infrastructure/memory"
	infrapdf "github.com/storemaster/storemaster-api/internal/infrastructure/pdf"
	"github.com/storemaster/storemaster-api/internal/infrastructure/postgres"
	httpRouter "github.com/storemaster/storemaster-api/internal/interfaces/http"
	"github.com/storemaster/storemaster-api/pkg/config"
	"github.com/storemaster/storemaster-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Selección del driver del almacén de documentos
	var docStore store.Store
	switch cfg.Store.Driver {
	case "memory":
		docStore = memory.NewDocumentStore(cfg.Store.TxMaxRetries)
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		docStore = postgres.NewDocumentStore(pool, cfg.Store.TxMaxRetries)
	}

	// Cache opcional (REDIS_ADDR vacío lo deshabilita)
	var cacheClient cache.Client
	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisClient(cfg.Cache.RedisAddr)
		if err != nil {
			log.Warn().Err(err).Msg("redis no disponible, cache deshabilitado")
		} else {
			cacheClient = rc
			cache.StartInvalidator(ctx, docStore, cacheClient, log)
			log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("cache redis habilitado")
		}
	}

	productUC := usecase.NewProductUseCase(docStore, cacheClient, cacheTTL)
	saleUC := usecase.NewSaleUseCase(docStore)
	dashboardUC := appanalytics.NewDashboardUseCase(docStore, cacheClient, cacheTTL)
	receipts := infrapdf.NewReceiptGenerator(cfg.App.Name)

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
		Title:    "StoreMaster API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProductUC:   productUC,
		SaleUC:      saleUC,
		DashboardUC: dashboardUC,
		Receipts:    receipts,
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

	stop()
	log.Info().Msg("aplicación detenida")
}

package app

import (
	"solhome-backend/internal/config"
	"solhome-backend/internal/database"
	"solhome-backend/internal/discovery"
	"solhome-backend/internal/geocode"
	"solhome-backend/internal/health"
	"solhome-backend/internal/hub"
	"solhome-backend/internal/middleware"
	"solhome-backend/internal/records"
	"solhome-backend/internal/wizard"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route registration.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.WizardSession())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	// Snapshot store: Redis when configured, process memory otherwise.
	var rdb *redis.Client
	var snapshots wizard.SnapshotStore = wizard.NewMemorySnapshotStore()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
		snapshots = &wizard.RedisSnapshotStore{Rdb: rdb, TTL: cfg.SnapshotTTL}
	}

	hubClient := hub.NewClient(cfg.HubURL, cfg.HubToken)
	var geocoder geocode.Geocoder
	if cfg.GeocodeURL != "" {
		geocoder = geocode.NewClient(cfg.GeocodeURL)
	}

	healthHandlers := &health.Handlers{Rdb: rdb, Hub: hubClient}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			healthHandlers.DB = sqlDB
		}
	}
	app.Get("/health/json", healthHandlers.JSON)

	if db != nil {
		recordService := &records.Service{DB: db}
		manager := wizard.NewManager(wizard.Deps{
			Records:   recordService,
			Hub:       hubClient,
			Geocoder:  geocoder,
			Snapshots: snapshots,
			Matcher:   discovery.NewMatcher(),
			Debounce:  cfg.DebounceInterval,
			Logger:    log.Logger,
		}, cfg.SnapshotTTL)
		wizardHandlers := &wizard.Handlers{Manager: manager}

		wizardGroup := app.Group("/api/v1/wizard")
		wizardGroup.Get("/state", wizardHandlers.GetState)
		wizardGroup.Post("/next", wizardHandlers.Next)
		wizardGroup.Post("/previous", wizardHandlers.Previous)
		wizardGroup.Post("/skip", wizardHandlers.Skip)
		wizardGroup.Post("/goto", wizardHandlers.GoTo)
		wizardGroup.Post("/complete", wizardHandlers.Complete)
		wizardGroup.Post("/reset", wizardHandlers.Reset)
		wizardGroup.Post("/installation", wizardHandlers.CreateInstallation)
		wizardGroup.Get("/installation", wizardHandlers.GetInstallation)
		wizardGroup.Delete("/installation", wizardHandlers.DeleteInstallation)
		wizardGroup.Post("/tariff", wizardHandlers.CreateTariff)
		wizardGroup.Post("/tariff/default", wizardHandlers.UseDefaultTariff)
		wizardGroup.Get("/connection", wizardHandlers.ConnectionStatus)
		wizardGroup.Post("/discovery/run", wizardHandlers.RunDiscovery)
		wizardGroup.Post("/discovery/apply-best", wizardHandlers.ApplyBestSuggestions)
		wizardGroup.Get("/investments", wizardHandlers.ListInvestments)
		wizardGroup.Post("/investments", wizardHandlers.AddInvestment)
		wizardGroup.Patch("/investments/:investment_id", wizardHandlers.UpdateInvestment)
		wizardGroup.Delete("/investments/:investment_id", wizardHandlers.DeleteInvestment)
		wizardGroup.Put("/investments/:investment_id/field-mapping", wizardHandlers.SetFieldMapping)
	}

	return app, db, rdb, nil
}

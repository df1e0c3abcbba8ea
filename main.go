package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ShafiqSadat/ZKFingerprint/config"
	"github.com/ShafiqSadat/ZKFingerprint/database"
	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/ShafiqSadat/ZKFingerprint/device/emulator"
	"github.com/ShafiqSadat/ZKFingerprint/device/zkfp"
	"github.com/ShafiqSadat/ZKFingerprint/handlers"
	"github.com/ShafiqSadat/ZKFingerprint/logging"
	"github.com/ShafiqSadat/ZKFingerprint/media"
	"github.com/ShafiqSadat/ZKFingerprint/realtime"
	"github.com/ShafiqSadat/ZKFingerprint/repository"
	"github.com/ShafiqSadat/ZKFingerprint/services"
	"github.com/ShafiqSadat/ZKFingerprint/workers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	logCloser, err := logging.Setup(cfg.LogDir)
	if err != nil {
		log.Fatalf("FATAL: Failed to set up logging: %v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get SQL handle: %v", err)
	}
	defer sqlDB.Close()
	// scan history shares the single pooled connection with the GORM store
	if err := database.InitScanLog(sqlDB); err != nil {
		log.Fatalf("FATAL: Failed to initialize scan history: %v", err)
	}

	personRepo := repository.NewPersonRepository(gormDB)
	templateRepo := repository.NewTemplateRepository(gormDB)

	dev, err := openDevice(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to set up device backend: %v", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	syncer := workers.NewDeviceSync(dev, templateRepo, hub)
	defer syncer.Stop()

	previews, err := media.NewPreviewArchive(cfg.PreviewDir)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize preview archive: %v", err)
	}

	workflowSvc := services.NewWorkflowService(
		dev, personRepo, templateRepo, hub,
		cfg.Workflow.SampleCount,
		time.Duration(cfg.Workflow.CaptureTimeoutSecs)*time.Second,
		cfg.Device.MatchThreshold,
	)
	workflowSvc.Scans = &database.ScanLog{DB: sqlDB}
	workflowSvc.Previews = previews
	workflowSvc.Sync = syncer

	// best-effort connect at startup; the shell can retry over the API
	if _, err := dev.Connect(context.Background()); err != nil {
		log.Printf("Device not connected at startup: %v", err)
	} else {
		syncer.RequestSync()
	}
	defer dev.Disconnect()

	personHandler := &handlers.PersonHandler{People: personRepo, Templates: templateRepo, Device: dev}
	deviceHandler := &handlers.DeviceHandler{Device: dev, Sync: syncer, Events: hub}
	workflowHandler := &handlers.WorkflowHandler{Workflows: workflowSvc}
	scanHandler := &handlers.ScanHandler{DB: sqlDB}

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/enrollments", workflowHandler.StartEnrollment)
		r.Post("/identifications", workflowHandler.StartIdentification)
		r.Post("/workflows/cancel", workflowHandler.Cancel)

		r.Route("/people", func(r chi.Router) {
			r.Get("/", personHandler.ListPeople)
			r.Route("/{person_id}", func(r chi.Router) {
				r.Get("/", personHandler.GetPerson)
				r.Delete("/", personHandler.DeletePerson)
				r.Get("/templates", personHandler.ListPersonTemplates)
			})
		})

		r.Route("/device", func(r chi.Router) {
			r.Get("/", deviceHandler.Status)
			r.Post("/connect", deviceHandler.Connect)
			r.Post("/disconnect", deviceHandler.Disconnect)
			r.Post("/sync", deviceHandler.SyncNow)
		})

		r.Get("/scans", scanHandler.ListScans)
		r.Get("/events", hub.ServeWS)
	})

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Device backend: %s", cfg.Device.Backend)
	log.Printf("Server listening on %s", cfg.ListenAddr)
	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// workflow starts and the websocket stream hold their connections
		// open well past a capture timeout, so no write deadline here
		IdleTimeout: 120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}

// openDevice builds the configured scanner backend.
func openDevice(cfg config.Config) (device.Device, error) {
	switch cfg.Device.Backend {
	case config.BackendZKFP:
		return zkfp.New(cfg.Device.MatchThreshold)
	default:
		if err := os.MkdirAll(cfg.Device.SpoolDir, 0o755); err != nil {
			return nil, err
		}
		return emulator.New(emulator.Options{
			SpoolDir:       cfg.Device.SpoolDir,
			MemoryCapacity: cfg.Device.MemoryCapacity,
			MatchThreshold: cfg.Device.MatchThreshold,
		}), nil
	}
}

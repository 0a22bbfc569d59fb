package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/api/handlers"
	job "github.com/instagrid/instagrid/internal/jobs"
	"github.com/instagrid/instagrid/internal/queue"
	"github.com/instagrid/instagrid/internal/repository"
	"github.com/instagrid/instagrid/internal/service"
	"github.com/instagrid/instagrid/internal/storage"
	storagefs "github.com/instagrid/instagrid/internal/storage/fs"
	storages3 "github.com/instagrid/instagrid/internal/storage/s3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	ctx := context.Background()

	var store storage.Backend
	storeDir := filepath.Join(cfg.DataDir, "store")
	if cfg.UseS3() {
		s3Store, err := storages3.New(ctx, storages3.Config{
			AccessKey:  cfg.S3.AccessKey,
			SecretKey:  cfg.S3.SecretKey,
			Region:     cfg.S3.Region,
			BucketName: cfg.S3.BucketName,
		})
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		store = s3Store
		log.Printf("Asset store: S3 bucket %s", cfg.S3.BucketName)
	} else {
		fsStore, err := storagefs.New(storagefs.Config{
			BaseDir:   storeDir,
			URLPrefix: cfg.BaseURL + "/drafts/image",
		})
		if err != nil {
			log.Fatalf("Failed to initialize filesystem storage: %v", err)
		}
		store = fsStore
		log.Printf("Asset store: local (%s)", storeDir)
	}

	draftRepo := repository.NewDraftRepository(store)

	instagramService := service.NewInstagramService(cfg.FacebookAPIURL)
	tokenService := service.NewTokenService(*cfg, instagramService, store)
	if err := tokenService.Load(ctx); err != nil {
		log.Printf("Warning: could not load saved token: %v", err)
	}

	publishService := service.NewPublishService(instagramService, store, draftRepo)
	draftService := service.NewDraftService(draftRepo, store)

	var asynqClient *asynq.Client
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		defer asynqClient.Close()

		queueW := queue.NewQueue(*cfg, publishService, tokenService)
		go func() {
			server := asynq.NewServer(redisConn, asynq.Config{
				Concurrency: 10,
			})

			mux := asynq.NewServeMux()
			mux.HandleFunc(queue.TaskTypePublishDraft, queueW.HandlePublishDraftTask)

			log.Println("Starting the Asynq server...")
			if err := server.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"ig_user_id":  cfg.IGUserID,
			"use_s3":      cfg.UseS3(),
			"ai_provider": cfg.AIProvider,
			"has_fb_app":  cfg.FBAppID != "",
			"has_queue":   cfg.RedisURI != "",
			"has_token":   tokenService.Get() != nil,
		})
	})

	auth := handlers.NewAuthHandler(tokenService)
	app.Post("/auth/exchange-token", auth.ExchangeToken)

	draft := handlers.NewDraftHandler(*cfg, draftService, publishService, tokenService, asynqClient, storeDir)
	drafts := app.Group("/drafts")
	drafts.Get("/", draft.ListDrafts)
	drafts.Post("/", draft.SaveDraft)
	drafts.Get("/image/*", draft.GetDraftImage)
	drafts.Get("/:id", draft.GetDraft)
	drafts.Put("/:id", draft.UpdateDraft)
	drafts.Delete("/:id", draft.DeleteDraft)
	drafts.Post("/:id/post", draft.PostDraft)
	drafts.Post("/:id/schedule", draft.ScheduleDraft)

	grid := handlers.NewGridHandler(*cfg, publishService, instagramService, tokenService)
	analysis := handlers.NewAnalysisHandler(*cfg)

	api := app.Group("/api")
	api.Post("/post", grid.PostGrid)
	api.Get("/ig-posts", grid.ListRecent)
	api.Post("/analyze", analysis.Analyze)
	api.Post("/regenerate_caption", analysis.RegenerateCaption)
	api.Get("/ai-providers", analysis.ListProviders)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(tokenService)
	c := cron.New()
	c.AddFunc("@every 24h00m00s", refreshTokenJob.RefreshToken)
	c.Start()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app)
}

func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}

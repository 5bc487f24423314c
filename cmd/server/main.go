package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/adnaan-2/contentflow/configs"
	"github.com/adnaan-2/contentflow/internal/api/handlers"
	"github.com/adnaan-2/contentflow/internal/api/middleware"
	"github.com/adnaan-2/contentflow/internal/cache"
	job "github.com/adnaan-2/contentflow/internal/jobs"
	"github.com/adnaan-2/contentflow/internal/platform"
	"github.com/adnaan-2/contentflow/internal/queue"
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/adnaan-2/contentflow/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

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

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	registry := platform.NewRegistry(
		platform.NewFacebookAdapter(),
		platform.NewInstagramAdapter(),
		platform.NewLinkedInAdapter(),
		platform.NewXAdapter(cfg.XConsumerKey, cfg.XConsumerSecret),
	)

	requestTokens := cache.NewRequestTokenStore(rdb)
	scheduler := queue.NewAsynqScheduler(client, inspector)

	notifier := service.NewNotifier(notificationRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	mediaService := service.NewMediaService(mediaAssetRepo, r2Service)
	postService := service.NewPostService(postRepo)
	publishService := service.NewPublishService(*cfg, registry, postRepo, socialAccountRepo, notifier)
	scheduleService := service.NewScheduleService(db, postRepo, publishService, scheduler, notifier)
	accountService := service.NewAccountService(*cfg, socialAccountRepo, requestTokens)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	platformHandler := handlers.NewPlatformHandler(accountService, *cfg)
	app.Get("/auth/:platform", platformHandler.AddSocialAccount)
	app.Get("/auth/:platform/callback", platformHandler.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(publishService, scheduleService, postService)
	api.Post("/posts", post.PostNow)
	api.Get("/posts", post.ListPosts)
	api.Delete("/posts", post.RemovePost)
	api.Post("/schedule", post.Schedule)
	api.Put("/schedule/:id", post.UpdateSchedule)
	api.Delete("/schedule/:id", post.CancelSchedule)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media", media.UploadMedia)
	api.Get("/media", media.ListMedia)
	api.Delete("/media", media.RemoveMedia)

	api.Get("/accounts", platformHandler.ListAccounts)
	api.Delete("/accounts", platformHandler.RemoveAccount)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, accountService, notifier)
	analyticsJob := job.NewAnalyticsJob(postRepo, publishService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", analyticsJob.CollectAnalytics)
	c.Start()

	// Pending schedules survive restarts: re-arm their timers before the
	// worker starts taking tasks.
	if err := scheduleService.Reload(context.Background()); err != nil {
		log.Printf("Failed to restore scheduled jobs: %v", err)
	}

	worker := queue.NewWorker(postRepo, publishService, notifier)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishScheduled, worker.HandlePublishScheduledTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}

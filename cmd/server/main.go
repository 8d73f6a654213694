package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scoreapp/score/docs"
	"github.com/scoreapp/score/internal/auth"
	"github.com/scoreapp/score/internal/client"
	"github.com/scoreapp/score/internal/config"
	"github.com/scoreapp/score/internal/handler"
	"github.com/scoreapp/score/internal/logger"
	"github.com/scoreapp/score/internal/middleware"
	"github.com/scoreapp/score/internal/recommend"
	"github.com/scoreapp/score/internal/service"
	"github.com/scoreapp/score/internal/store"
	ws "github.com/scoreapp/score/internal/websocket"
	"github.com/scoreapp/score/internal/worker"
	"github.com/scoreapp/score/pkg/response"
)

// @title          Score API
// @version        1.0
// @description    Audio to sheet music transcription and similar piece recommendations.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
	docs.SwaggerInfo.Schemes = []string{"http"}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(zl.Named("ws"))
	go hub.Run(ctx)

	// Job store and rate limiting need redis only in the redis queue mode
	var (
		redisClient *redis.Client
		jobStore    store.JobStore
	)
	if cfg.Queue.Backend == config.QueueRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Warn("redis not available", zap.Error(err))
		}
		jobStore = store.NewRedisStore(redisClient, cfg.Storage.JobTTL)
	} else {
		jobStore = store.NewMemoryStore(cfg.Storage.JobTTL)
	}

	pipelineOpts := []service.PipelineOption{
		service.WithNotifier(hub),
		service.WithPipelineLogger(zl.Named("pipeline")),
		service.WithStepDelay(cfg.Pipeline.StepDelay),
	}
	if cfg.R2.Configured() {
		r2, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			zl.Warn("R2 disabled", zap.Error(err))
		} else {
			pipelineOpts = append(pipelineOpts, service.WithPublisher(r2))
		}
	}
	pipeline := service.NewPipeline(jobStore, service.StubProcessor{}, cfg.Storage.OutputDir, pipelineOpts...)

	var dispatcher service.Dispatcher
	if cfg.Queue.Backend == config.QueueRedis {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		asynqClient := asynq.NewClient(redisOpt)
		defer asynqClient.Close()
		dispatcher = service.NewAsynqDispatcher(asynqClient)

		srv := startWorkerServer(cfg, redisOpt, pipeline, zl)
		defer srv.Shutdown()
	} else {
		local := service.NewLocalDispatcher(pipeline, zl.Named("dispatch"))
		defer local.Close()
		dispatcher = local
	}

	lib, err := recommend.DefaultLibrary()
	if err != nil {
		zl.Fatal("failed to load reference library", zap.Error(err))
	}
	recommender, err := recommend.NewService(lib,
		recommend.WithDecay(cfg.Recommend.Decay),
		recommend.WithDefaultK(cfg.Recommend.DefaultK),
	)
	if err != nil {
		zl.Fatal("failed to build recommender", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(ctx, &cfg.JWT)
	if err != nil {
		zl.Fatal("failed to configure auth", zap.Error(err))
	}

	scoreService := service.NewScoreService(jobStore, dispatcher, &cfg.Storage, zl.Named("score"))
	hub.SetSource(scoreService)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    (cfg.Storage.MaxUploadMB + 1) * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handler.Register(app, handler.Routes{
		Score:         handler.NewScoreHandler(scoreService),
		Recommend:     handler.NewRecommendHandler(recommender, validator.New()),
		Auth:          middleware.NewAuthMiddleware(verifier),
		RateLimiter:   middleware.NewRateLimiter(redisClient, zl.Named("ratelimit")),
		UploadPerHour: cfg.RateLimit.UploadPerHour,
		Hub:           hub,
	})

	go func() {
		<-ctx.Done()
		zl.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("server shutdown error", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Server.Port
	zl.Info("server starting",
		zap.String("addr", addr),
		zap.String("queue", cfg.Queue.Backend),
		zap.Bool("r2", cfg.R2.Configured()),
		zap.Bool("auth", verifier != nil),
	)
	if err := app.Listen(addr); err != nil {
		zl.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, pipeline *service.Pipeline, zl *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues: map[string]int{
			service.QueueTranscribe: 1,
		},
		Logger: zl.Named("asynq").Sugar(),
	})

	transcribeWorker := worker.NewTranscribeWorker(pipeline, zl.Named("worker"))

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeTranscribe, transcribeWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		zl.Fatal("asynq worker failed to start", zap.Error(err))
	}
	return srv
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}

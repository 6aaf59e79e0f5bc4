package main

import (
  "context"
  "fmt"
  "os"

  "github.com/schemeworks/sow-backend/internal/clients/redis"
  "github.com/schemeworks/sow-backend/internal/codec"
  "github.com/schemeworks/sow-backend/internal/db"
  "github.com/schemeworks/sow-backend/internal/gateway"
  "github.com/schemeworks/sow-backend/internal/handlers"
  "github.com/schemeworks/sow-backend/internal/logger"
  "github.com/schemeworks/sow-backend/internal/repos"
  "github.com/schemeworks/sow-backend/internal/server"
  "github.com/schemeworks/sow-backend/internal/services"
  "github.com/schemeworks/sow-backend/internal/sse"
  "github.com/schemeworks/sow-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  port := utils.GetEnv("PORT", "8080", log)
  inlineLimit := utils.GetEnvAsInt("PAYLOAD_INLINE_LIMIT", codec.DefaultInlineLimit, log)
  maxPhaseAttempts := utils.GetEnvAsInt("PHASE_MAX_ATTEMPTS", 10, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  docRepo := repos.NewSchemeDocumentRepo(thePG, log)
  runRepo := repos.NewSchemeGenerationRunRepo(thePG, log)
  callLogRepo := repos.NewGatewayCallLogRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)
  var sseBus redis.SSEBus
  if os.Getenv("REDIS_ADDR") != "" {
    bus, busErr := redis.NewSSEBus(log)
    if busErr != nil {
      log.Warn("Could not init redis SSE bus, staying single-instance", "error", busErr)
    } else if fwdErr := bus.StartForwarder(context.Background(), sseHub.Broadcast); fwdErr != nil {
      log.Warn("Could not start redis SSE forwarder", "error", fwdErr)
    } else {
      sseBus = bus
    }
  }

  // Blob storage + codec
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Warn("Could not init BucketService; oversized payloads will fail to persist", "error", err)
  }
  var blobs codec.BlobStore
  if bucketService != nil {
    blobs = bucketService
  }
  payloadCodec := codec.New(blobs, inlineLimit)

  // Gateways
  callSink := services.NewCallLogSink(thePG, log, callLogRepo)
  gen, critic, err := gateway.NewOpenAIGateway(log, callSink)
  if err != nil {
    log.Error("Could not init OpenAIGateway", "error", err)
    os.Exit(1)
  }

  // Services
  log.Info("Setting up Services from main...")
  genService := services.NewSchemeGenerationService(thePG, log, sseHub, sseBus, docRepo, runRepo, payloadCodec, gen, critic, maxPhaseAttempts)
  genService.StartWorker(context.Background())
  schemeService := services.NewSchemeService(thePG, log, docRepo, payloadCodec)
  statusService := services.NewSchemeStatusService(thePG, runRepo)

  // Handlers + router
  schemeHandler := handlers.NewSchemeHandler(genService, schemeService, statusService)
  sseHandler := handlers.NewSSEHandler(sseHub)

  router := server.NewRouter(server.RouterConfig{
    SchemeHandler: schemeHandler,
    SSEHandler:    sseHandler,
  })

  log.Info("Starting server", "port", port)
  if err := router.Run(":" + port); err != nil {
    log.Fatal("Server exited", "error", err)
  }
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"voicechat-service/internal/call"
	"voicechat-service/internal/config"
	"voicechat-service/internal/db"
	"voicechat-service/internal/handlers"
	"voicechat-service/internal/messaging"
	"voicechat-service/internal/middleware"
	"voicechat-service/internal/observability"
	"voicechat-service/internal/presence"
	"voicechat-service/internal/queue"
	"voicechat-service/internal/rabbitmq"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/router"
	"voicechat-service/internal/telemetry"
	"voicechat-service/internal/typing"
	"voicechat-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "voicechat-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	redisClient, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	eventPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer eventPublisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(eventPublisher))

	audit := telemetry.NewAuditEmitter(eventPublisher, "audit.voicechat", "voicechat-service", cfg.Environment)

	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	callRepo := repositories.NewCallRepo(database)
	typingRepo := repositories.NewTypingRepo(database)
	presenceStore := repositories.NewRedisPresenceStore(redisClient)

	registry := presence.NewRegistry()
	deliveryQueue := queue.NewRedisQueue(redisClient, cfg.QueueRetention)
	fanout := router.New(registry, deliveryQueue)
	presence.NewNotifier(registry, presenceStore, convRepo, fanout)

	coordinator := typing.NewCoordinator(fanout, typingRepo, cfg.TypingExpiry)
	pipeline := messaging.NewPipeline(convRepo, messageRepo, fanout, registry, coordinator)
	machine := call.NewMachine(callRepo, fanout, registry, cfg.RingTimeout)

	validator := middleware.NewTokenValidator(cfg.JWTSecret)

	chatHandler := handlers.NewChatHandler(convRepo, messageRepo, pipeline, audit)
	callHandler := handlers.NewCallHandler(machine, convRepo, audit)
	typingHandler := handlers.NewTypingHandler(coordinator, convRepo)
	presenceHandler := handlers.NewPresenceHandler(registry, presenceStore, audit)
	wsHandler := ws.NewHandler(registry, fanout, pipeline, coordinator, convRepo, validator.Validate, audit)

	engine := gin.Default()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("voicechat-service"))
	engine.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(validator)

	engine.GET("/conversations", authMiddleware, chatHandler.ListConversations)
	engine.POST("/conversations/start", authMiddleware, chatHandler.StartConversation)
	engine.GET("/conversations/:conversation_id/messages", authMiddleware, chatHandler.GetMessages)
	engine.POST("/conversations/:conversation_id/messages", authMiddleware, chatHandler.PostMessage)
	engine.POST("/conversations/:conversation_id/read", authMiddleware, chatHandler.MarkRead)
	engine.PATCH("/conversations/:conversation_id/messages/:message_id", authMiddleware, chatHandler.EditMessage)
	engine.DELETE("/conversations/:conversation_id/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)
	engine.POST("/conversations/:conversation_id/typing/start", authMiddleware, typingHandler.Start)
	engine.POST("/conversations/:conversation_id/typing/stop", authMiddleware, typingHandler.Stop)

	engine.POST("/calls", authMiddleware, callHandler.Initiate)
	engine.GET("/calls/:call_id", authMiddleware, callHandler.Get)
	engine.POST("/calls/:call_id/answer", authMiddleware, callHandler.Answer)
	engine.POST("/calls/:call_id/decline", authMiddleware, callHandler.Decline)
	engine.POST("/calls/:call_id/end", authMiddleware, callHandler.End)
	engine.POST("/calls/:call_id/signal", authMiddleware, callHandler.Signal)

	engine.POST("/presence/status", authMiddleware, presenceHandler.SetStatus)
	engine.GET("/presence/:user_id", authMiddleware, presenceHandler.GetStatus)

	engine.GET("/ws", wsHandler.Handle)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(engine, audit, registry, cfg.DebugRoutes)

	if err := engine.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

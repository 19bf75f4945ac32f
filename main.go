package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"studygroup-service/internal/auth"
	"studygroup-service/internal/chat"
	"studygroup-service/internal/config"
	"studygroup-service/internal/db"
	grpcserver "studygroup-service/internal/grpc"
	"studygroup-service/internal/handlers"
	"studygroup-service/internal/logger"
	"studygroup-service/internal/middleware"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/rabbitmq"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/telemetry"
	"studygroup-service/internal/ws"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Configure(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Format == "pretty"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracer")
	}

	database, err := db.Connect(ctx, cfg.Database.DSN, db.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	var store repositories.MessageStore
	switch cfg.MessageStore.Backend {
	case config.BackendMongo:
		client, mdb, err := db.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		mongoStore := repositories.NewMongoMessageStore(mdb)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create message indexes")
		}
		store = mongoStore
	case config.BackendMemory:
		log.Warn().Msg("using in-memory message store, messages are lost on restart")
		store = repositories.NewMemoryMessageStore()
	default:
		store = repositories.NewPostgresMessageStore(database)
	}
	log.Info().Str("backend", cfg.MessageStore.Backend).Msg("message store ready")

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.EventsExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.studygroup", cfg.Telemetry.ServiceName, cfg.Server.Mode)
	log.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Str("reason", rabbitmq.PublisherNoopReason(publisher)).Msg("event publisher ready")

	var relay ws.Relay
	if cfg.AMQP.URL != "" {
		r, err := rabbitmq.NewRelay(cfg.AMQP.URL, cfg.AMQP.RelayExchange)
		if err != nil {
			log.Warn().Err(err).Msg("broadcast relay disabled")
		} else {
			defer r.Close()
			relay = r
		}
	}
	hub := ws.NewHub(relay)
	if r, ok := relay.(*rabbitmq.Relay); ok {
		go func() {
			if err := r.Consume(ctx, hub.DeliverLocal); err != nil {
				log.Error().Err(err).Msg("broadcast relay stopped")
			}
		}()
	}

	userRepo := repositories.NewUserRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	commentRepo := repositories.NewCommentRepo(database)

	chatService := chat.NewService(store, groupRepo, userRepo)
	wsHandler := ws.NewHandler(hub, ws.NewDispatcher(hub, chatService), cfg.WebSocket.SendBuffer)

	messageHandler := handlers.NewMessageHandler(chatService, hub, auditEmitter)
	groupHandler := handlers.NewGroupHandler(groupRepo, store, commentRepo, auditEmitter)
	commentHandler := handlers.NewCommentHandler(groupRepo, commentRepo, auditEmitter)
	userHandler := handlers.NewUserHandler(userRepo, groupRepo, auditEmitter)

	identity := middleware.IdentityOptions{TrustUserHeader: cfg.Auth.TrustUserHeader}
	if cfg.Auth.JWTSecret != "" {
		identity.Verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}
	authMiddleware := middleware.Identity(identity)
	wsIdentity := identity
	wsIdentity.AllowQueryToken = true

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", middleware.Identity(wsIdentity), wsHandler.Handle)

	router.POST("/api/study-groups/users", userHandler.Register)

	api := router.Group("/api/study-groups", authMiddleware)
	api.GET("/notification", messageHandler.UnreadNotifications)
	api.GET("/unread-notifications", messageHandler.UnreadNotifications)
	api.PUT("/read", messageHandler.MarkRead)
	api.PUT("/mark-read", messageHandler.MarkRead)
	api.GET("/lastMessages", messageHandler.LastMessages)
	api.GET("/last-messages", messageHandler.LastMessages)

	handlers.RegisterOpsRoutes(api, hub, auditEmitter, cfg.Server.OpsRoutes)

	api.GET("/users/:user_id", userHandler.GetUser)
	api.PUT("/users/:user_id", userHandler.UpdateUser)

	api.GET("/groups", groupHandler.ListGroups)
	api.POST("/groups", groupHandler.CreateGroup)
	api.GET("/groups/:group_id", groupHandler.GetGroup)
	api.PUT("/groups/:group_id", groupHandler.UpdateGroup)
	api.DELETE("/groups/:group_id", groupHandler.DeleteGroup)
	api.POST("/groups/:group_id/join", groupHandler.JoinGroup)
	api.GET("/groups/:group_id/messages", messageHandler.GroupMessages)
	api.POST("/groups/:group_id/messages", messageHandler.PostGroupMessage)
	api.GET("/groups/:group_id/comments", commentHandler.ListComments)
	api.POST("/groups/:group_id/comments", commentHandler.CreateComment)
	api.PUT("/groups/:group_id/comments/:comment_id", commentHandler.UpdateComment)
	api.DELETE("/groups/:group_id/comments/:comment_id", commentHandler.DeleteComment)

	grpcSrv := grpcserver.NewServer()
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen for grpc")
	}
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			log.Error().Err(err).Msg("grpc server error")
		}
	}()

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()
	grpcSrv.SetServing(true)

	<-ctx.Done()
	log.Info().Msg("shutting down")
	grpcSrv.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.Stop(shutdownCtx)
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown")
	}
}

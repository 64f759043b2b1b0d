package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"IMGateway/global"
	"IMGateway/logger"
	"IMGateway/middleware/security"
	"IMGateway/service/chat"
	"IMGateway/service/chat/handlers"
	"IMGateway/service/dispatcher"
	"IMGateway/service/dispatcher/kafka"
	"IMGateway/service/storage"
	storeredis "IMGateway/service/storage/redis"
	"IMGateway/tools/safe"
)

func main() {
	confPath := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	if err := global.Load(*confPath); err != nil {
		logger.Errorf("config load failed: %v", err)
		os.Exit(1)
	}
	conf := &global.Global

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer bootCancel()

	store, err := storage.NewMongo(bootCtx, conf.Mongo.URI, conf.Mongo.Database)
	if err != nil {
		logger.Errorf("mongo init failed: %v", err)
		os.Exit(1)
	}

	if err := storeredis.Init(storeredis.Config{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}); err != nil {
		logger.Errorf("redis init failed: %v", err)
		os.Exit(1)
	}

	if err := kafka.InitKafkaClient(conf.Kafka.Brokers); err != nil {
		logger.Errorf("kafka init failed: %v", err)
		os.Exit(1)
	}
	if err := kafka.InitSyncProducerFromClient(); err != nil {
		logger.Errorf("kafka producer init failed: %v", err)
		os.Exit(1)
	}

	notifier := dispatcher.NewKafkaNotifier(conf.Kafka.PushTopic)
	server := chat.NewServer(conf, store, notifier)
	handlers.RegisterAll(server)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// Membership revocations from the chat service invalidate the local
	// room cache.
	safe.SafeGo(func() {
		err := dispatcher.RunMembershipConsumer(runCtx,
			conf.Kafka.Brokers, conf.Kafka.GroupID, conf.Kafka.MembershipTopic,
			server.Rooms())
		if err != nil && runCtx.Err() == nil {
			logger.Errorf("membership consumer stopped: %v", err)
		}
	})

	if !conf.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "conns": server.Conns().ConnCount()})
	})

	authed := r.Group("/", security.Middleware(security.DefaultOptions(global.GetJwtSecret())))
	authed.GET("/ws", server.HandleWS)
	authed.GET("/presence/:user", func(c *gin.Context) {
		uid := c.Param("user")
		c.JSON(http.StatusOK, gin.H{
			"user_id": uid,
			"status":  server.Presence().Lookup(c.Request.Context(), uid),
		})
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Port),
		Handler: r,
	}
	safe.SafeGo(func() {
		logger.Infof("gateway %s listening on %s", conf.GatewayID, httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	runCancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)
	server.Close()
}

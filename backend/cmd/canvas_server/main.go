package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"canvasServer/backend/config"
	"canvasServer/backend/internal/cache"
	"canvasServer/backend/internal/collab"
	"canvasServer/backend/internal/httpapi/handlers"
	"canvasServer/backend/internal/membership"
	"canvasServer/backend/internal/presence"
	"canvasServer/backend/internal/session"
	"canvasServer/backend/internal/store"
	"canvasServer/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Redis：在线表镜像（可选） ===
	var mirror *cache.RedisPresence
	var rdb redis.UniversalClient
	if len(cfg.Redis.Addrs) > 0 {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		if err = rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		if cfg.Redis.PresenceTTL <= 0 {
			cfg.Redis.PresenceTTL = 10 * time.Minute
		}
		mirror = cache.NewRedisPresence(rdb, cfg.Redis.PresenceTTL, 1024)
	}

	// === MySQL：成员关系和快照的旁路持久化（可选） ===
	var writer *store.Writer
	var restored []membership.Canvas
	if cfg.Mysql.DSN != "" {
		gdb, err := store.InitMySQL(cfg.Mysql.DSN)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := store.AutoMigrate(gdb); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			log.Fatalf("Failed to get sql.DB: %v", err)
		}
		defer sqlDB.Close()

		snapshots := store.NewSnapshotStore(sqlDB)
		if err := snapshots.EnsureTable(ctx); err != nil {
			log.Fatalf("Failed to create snapshot table: %v", err)
		}
		backend := &store.MySQLBackend{Repo: store.NewMembershipRepo(gdb), Snapshots: snapshots}
		restored, err = backend.LoadCanvases(ctx)
		if err != nil {
			log.Fatalf("Failed to load canvases: %v", err)
		}
		writer = store.NewWriter(backend, store.WriterOptions{
			QueueSize:   10_000,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		})
	}

	// === Kafka：画布事件（可选） ===
	var dispatcher *collab.KafkaDispatcher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaCfg := sarama.NewConfig()
		// SyncProducer 必须开启 Return.Successes
		kafkaCfg.Producer.Return.Successes = true
		kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
		producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
		if err != nil {
			log.Fatalf("Failed to connect kafka: %v", err)
		}
		defer producer.Close()

		dispatcher = collab.NewKafkaDispatcher(
			producer,
			cfg.Kafka.Topic,
			collab.NewSemaphoreControl(16),
			collab.KafkaDispatcherOptions{
				QueueSize:   10_000,
				Workers:     4,
				MaxRetry:    3,
				BaseBackoff: 50 * time.Millisecond,
				MaxBackoff:  1 * time.Second,
			},
		)
	}

	// 组装会话层；接口字段只在实现存在时赋值，避免 typed nil
	var presenceMirror presence.Mirror
	if mirror != nil {
		presenceMirror = mirror
	}
	var persister membership.Persister
	if writer != nil {
		persister = writer
	}
	registry := presence.NewRegistry(presenceMirror)
	canvases := membership.NewStore(persister)
	canvases.Restore(restored)
	log.Printf("restored %d canvases", len(restored))

	opts := session.Options{
		Metrics:           session.NewMetrics(),
		EnforceUpdateAuth: cfg.Canvas.EnforceUpdateAuth,
	}
	if dispatcher != nil {
		opts.Publisher = dispatcher
	}
	hub := ws.NewHub()
	svc := session.NewService(hub, registry, canvases, opts)
	manager := ws.NewManager(hub, svc, ws.ManagerOptions{
		AllowedOrigins: cfg.Cors.AllowOrigins,
		SendQueueSize:  cfg.Canvas.SendQueueSize,
	})

	var cluster handlers.ClusterPresence
	if mirror != nil {
		cluster = mirror
	}
	canvasHandler := handlers.NewCanvasHandler(svc, cluster, canvases)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return allowOrigin(cfg.Cors.AllowOrigins, origin) },
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	canvasGroup := r.Group("/canvas")
	canvasGroup.GET("/ws", manager.WebSocketConnect)
	canvasGroup.GET("/healthz", handlers.Healthz)
	canvasGroup.GET("/online-users", canvasHandler.OnlineUsers)
	canvasGroup.GET("/canvases/:canvasID", canvasHandler.GetCanvas)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Running.Port),
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("canvas server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if mirror != nil {
		// 心跳：定期续期本实例的在线用户，实例宕机后 Redis 中的记录自然过期
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Redis.PresenceTTL / 3)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := mirror.Refresh(gctx, registry.All()); err != nil {
						log.Printf("presence heartbeat error: %v", err)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("server stopped: %v", err)
	}

	// 先停止产生新事件，再把队列里剩余的写完
	if dispatcher != nil {
		dispatcher.Close()
	}
	if writer != nil {
		writer.Close()
	}
	if mirror != nil {
		mirror.Close()
	}
	log.Printf("canvas server exited")
}

func allowOrigin(allowed []string, origin string) bool {
	if len(allowed) == 0 || origin == "" || origin == "null" {
		return true
	}
	for _, p := range allowed {
		if p == "*" || strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}

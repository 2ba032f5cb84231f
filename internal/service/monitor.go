package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/broadcaster"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/cache"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/command"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/config"
	httpapi "github.com/zOnlyKroks/Feuermelder-HSBI/internal/http"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/mqtt"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/notifier"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/reducer"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/repository"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// MonitorService 监控服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	// 各层组件
	reducer       *reducer.Reducer
	hub           *broadcaster.Hub
	commands      *command.Router
	readingsRepo  *repository.ReadingsRepository
	alertsRepo    *repository.AlertsRepository
	snapshotCache *cache.SnapshotCache
	webhook       *notifier.WebhookNotifier
	httpServer    *http.Server

	persistCh chan persistJob
}

// persistJob 一次已序列化变更的异步副作用（FIFO 单写者消费，保证时序单调）
type persistJob struct {
	readings []models.StoredReading
	alerts   []models.Alert
	snapshot []byte
}

// NewMonitorService 创建监控服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
	}
	if cfg.Database.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdle)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis（可选，仅用于快照镜像）
	var redisClient *redis.Client
	var snapshotCache *cache.SnapshotCache
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		snapshotCache = cache.NewSnapshotCache(
			redisClient,
			cfg.Snapshot.CacheKey,
			time.Duration(cfg.Snapshot.CacheTTL)*time.Second,
			logger,
		)
	}

	// 3. 创建 Repository 层
	readingsRepo := repository.NewReadingsRepository(db, logger)
	alertsRepo := repository.NewAlertsRepository(db, logger)

	// 4. 创建 Reducer（快照唯一写者）
	rd := reducer.New(cfg.Topics.Data, cfg.Topics.Status, logger)

	// 5. 创建 Broadcaster
	hub := broadcaster.NewHub(rd.Snapshot, logger)

	// 6. 连接 MQTT
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mqtt client: %w", err)
	}

	// 7. 创建指令路由器
	commands := command.NewRouter(rd, mqttClient, cfg.Topics, logger)

	// 8. 报警 webhook（可选）
	var webhook *notifier.WebhookNotifier
	if cfg.Webhook.URL != "" {
		webhook = notifier.NewWebhookNotifier(cfg.Webhook.URL, logger)
	}

	// 9. HTTP API
	handler := httpapi.NewMonitorHandler(readingsRepo, alertsRepo, commands, hub, rd.Snapshot, logger)
	router := httpapi.NewRouter(logger)
	router.RegisterMonitorRoutes(handler)
	router.Handle("/ws", hub.ServeWS)

	return &MonitorService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		reducer:       rd,
		hub:           hub,
		commands:      commands,
		readingsRepo:  readingsRepo,
		alertsRepo:    alertsRepo,
		snapshotCache: snapshotCache,
		webhook:       webhook,
		httpServer: &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: router,
		},
		persistCh: make(chan persistJob, 1024),
	}, nil
}

// Start 启动服务，阻塞直到 ctx 取消或 HTTP 服务出错
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("mqtt_broker", s.config.MQTT.Broker),
	)

	// 1. 启动扇出事件循环
	go s.hub.Run(ctx)

	// 2. 启动持久化工作协程（FIFO 消费）
	go s.persistWorker(ctx)

	// 3. 订阅传感器数据与状态主题
	if err := s.mqttClient.Subscribe(s.config.Topics.Data, s.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to data topic: %w", err)
	}
	if err := s.mqttClient.Subscribe(s.config.Topics.Status, s.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to status topic: %w", err)
	}

	// 4. 启动保留期清理与离线检测
	go s.retentionLoop(ctx)
	go s.stalenessLoop(ctx)

	// 5. 启动 HTTP 服务
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop 释放连接资源
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}

	return nil
}

// handleMessage 摄入管线：apply → (异步持久化 + 镜像) → 广播。
// 坏消息只丢弃并记录，绝不影响后续消息。
func (s *MonitorService) handleMessage(topic string, payload []byte) error {
	result, err := s.reducer.Apply(topic, payload, time.Now().UTC())
	if err != nil {
		return err
	}

	// 持久化与镜像不阻塞下一条入站消息；队列满时丢弃存储侧副作用，
	// 实时快照与广播照常进行（存储故障不得阻断实时链路）。
	select {
	case s.persistCh <- persistJob{
		readings: result.Readings,
		alerts:   result.Alerts,
		snapshot: result.SnapshotJSON,
	}:
	default:
		s.logger.Warn("Persist queue full, dropping storage side effects")
	}

	s.hub.Broadcast(result.SnapshotJSON)
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"body-metrics/internal/common/database"
	mqttcommon "body-metrics/internal/common/mqtt"
	rediscommon "body-metrics/internal/common/redis"
	"body-metrics/internal/config"
	"body-metrics/internal/consumer"
	"body-metrics/internal/coordinator"
	httpapi "body-metrics/internal/http"
	"body-metrics/internal/models"
	"body-metrics/internal/publisher"
	"body-metrics/internal/repository"
	"body-metrics/internal/tracker"
)

// BodyMetricsService 体重测量服务
// 组装传感器采集、每个秤实体的测量协调器、事件落库与 HTTP API
type BodyMetricsService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	configRepo      *repository.ScaleConfigRepository
	measurementRepo *repository.MeasurementRepository

	cache         *consumer.SensorCache
	mqttConsumer  *consumer.MQTTConsumer
	restPoller    *consumer.RESTPoller
	eventConsumer *consumer.EventConsumer

	entries      []models.ScaleEntry
	coordinators map[string]*coordinator.Coordinator

	server *Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBodyMetricsService 创建体重测量服务
func NewBodyMetricsService(cfg *config.Config, logger *zap.Logger) (*BodyMetricsService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化 MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	// 创建 Repository
	configRepo := repository.NewScaleConfigRepository(db, logger)
	measurementRepo := repository.NewMeasurementRepository(db, logger)

	// 加载秤实体配置
	entries, err := configRepo.GetEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to load scale entries: %w", err)
	}

	// 传感器采集：MQTT 推送写入缓存，测量循环非阻塞读取
	cache := consumer.NewSensorCache(logger)
	mqttConsumer := consumer.NewMQTTConsumer(mqttClient, cache, entries, cfg.MQTT.QoS, logger)

	// Home Assistant REST 轮询（可选的备用采集通道）
	var restPoller *consumer.RESTPoller
	if cfg.HomeAssistant.Enabled {
		restPoller = consumer.NewRESTPoller(
			cfg.HomeAssistant.BaseURL,
			cfg.HomeAssistant.Token,
			time.Duration(cfg.HomeAssistant.PollInterval)*time.Second,
			cache,
			entries,
			logger,
		)
	}

	// 出口：事件流与状态面
	eventPublisher := publisher.NewEventPublisher(redisClient, cfg.Scale.EventStream, logger)
	statePublisher := publisher.NewStatePublisher(
		mqttClient,
		redisClient,
		cfg.Scale.State.TopicPrefix,
		cfg.Scale.State.KeyPrefix,
		cfg.MQTT.QoS,
		logger,
	)

	// 每个秤实体一个协调器，各自持有独立的历史跟踪器
	kv := tracker.NewRedisKVStore(redisClient)
	coordinators := make(map[string]*coordinator.Coordinator, len(entries))
	for _, entry := range entries {
		profiles, err := configRepo.GetProfiles(entry.EntryID)
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles for entry %s: %w", entry.EntryID, err)
		}

		historyStore := tracker.NewKVHistoryStore(kv, cfg.Scale.State.KeyPrefix+entry.EntryID+":history")
		weightTracker := tracker.NewTracker(
			historyStore,
			time.Duration(cfg.Scale.SaveDelay)*time.Second,
			cfg.Scale.HistoryLimit,
			logger,
		)

		coordinators[entry.EntryID] = coordinator.NewCoordinator(
			entry,
			profiles,
			cache,
			weightTracker,
			eventPublisher,
			statePublisher,
			time.Duration(cfg.Scale.PollInterval)*time.Second,
			cfg.Scale.GuestMinWeight,
			logger,
		)
	}

	// 测量事件落库（可选审计）
	var eventConsumer *consumer.EventConsumer
	if cfg.Scale.Audit.Enabled {
		eventConsumer = consumer.NewEventConsumer(
			redisClient,
			measurementRepo,
			logger,
			cfg.Scale.EventStream,
			cfg.Scale.ConsumerGroup,
			cfg.Scale.ConsumerName,
			cfg.Scale.BatchSize,
		)
	}

	s := &BodyMetricsService{
		config:          cfg,
		logger:          logger,
		db:              db,
		redisClient:     redisClient,
		mqttClient:      mqttClient,
		configRepo:      configRepo,
		measurementRepo: measurementRepo,
		cache:           cache,
		mqttConsumer:    mqttConsumer,
		restPoller:      restPoller,
		eventConsumer:   eventConsumer,
		entries:         entries,
		coordinators:    coordinators,
	}

	// HTTP API：service 自身实现 Directory
	router := httpapi.NewRouter(logger)
	router.RegisterScaleRoutes(httpapi.NewScaleHandler(s, logger))
	s.server = NewServer(cfg.HTTP.Addr, router, logger)

	return s, nil
}

// Start 启动服务
func (s *BodyMetricsService) Start(ctx context.Context) error {
	s.logger.Info("Starting body metrics service components",
		zap.Int("entry_count", len(s.entries)),
		zap.Bool("audit_enabled", s.eventConsumer != nil),
		zap.Bool("ha_poller_enabled", s.restPoller != nil),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// 传感器采集
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.mqttConsumer.Start(runCtx); err != nil {
			s.logger.Error("MQTT sensor consumer failed", zap.Error(err))
		}
	}()

	if s.restPoller != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.restPoller.Start(runCtx); err != nil {
				s.logger.Error("REST poller failed", zap.Error(err))
			}
		}()
	}

	// 测量协调器（每实体一个循环）
	for _, coord := range s.coordinators {
		c := coord
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := c.Start(runCtx); err != nil {
				s.logger.Error("Coordinator failed",
					zap.String("entry_id", c.Entry().EntryID),
					zap.Error(err),
				)
			}
		}()
	}

	// 审计消费者
	if s.eventConsumer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.eventConsumer.Start(runCtx); err != nil {
				s.logger.Error("Event consumer failed", zap.Error(err))
			}
		}()
	}

	// 档案重载循环
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reloadProfilesLoop(runCtx)
	}()

	// HTTP 服务器
	go func() {
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.logger.Info("Body metrics service started successfully")
	return nil
}

// Stop 停止服务：先停 HTTP 面，再停测量循环并落盘，最后断开连接
func (s *BodyMetricsService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping body metrics service")

	if err := s.server.Stop(ctx); err != nil {
		s.logger.Error("Error stopping HTTP server", zap.Error(err))
	}

	// 停掉所有循环
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	// 协调器落盘（冲刷防抖历史、保存快照镜像）
	for _, coord := range s.coordinators {
		if err := coord.Stop(ctx); err != nil {
			s.logger.Error("Error stopping coordinator",
				zap.String("entry_id", coord.Entry().EntryID),
				zap.Error(err),
			)
		}
	}

	if err := s.mqttConsumer.Stop(ctx); err != nil {
		s.logger.Error("Error stopping MQTT consumer", zap.Error(err))
	}
	s.mqttClient.Disconnect()

	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Body metrics service stopped")
	return nil
}

// reloadProfilesLoop 定期从数据库重载人员档案（外部配置编辑后生效）
func (s *BodyMetricsService) reloadProfilesLoop(ctx context.Context) {
	interval := time.Duration(s.config.Scale.Reload.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Profile reload loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for entryID, coord := range s.coordinators {
				profiles, err := s.configRepo.GetProfiles(entryID)
				if err != nil {
					s.logger.Error("Failed to reload profiles",
						zap.String("entry_id", entryID),
						zap.Error(err),
					)
					continue
				}
				coord.UpdateProfiles(profiles)
			}
		}
	}
}

// Entries 返回配置的秤实体（httpapi.Directory）
func (s *BodyMetricsService) Entries() []models.ScaleEntry {
	out := make([]models.ScaleEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Profiles 返回某实体的人员档案（httpapi.Directory）
func (s *BodyMetricsService) Profiles(entryID string) ([]models.PersonProfile, error) {
	coord, ok := s.coordinators[entryID]
	if !ok {
		return nil, models.ErrEntryNotFound
	}
	return coord.Profiles(), nil
}

// Snapshots 返回某实体的全部人员快照（httpapi.Directory）
func (s *BodyMetricsService) Snapshots(entryID string) (map[string]*models.MetricsSnapshot, error) {
	coord, ok := s.coordinators[entryID]
	if !ok {
		return nil, models.ErrEntryNotFound
	}
	return coord.Snapshots(), nil
}

// History 返回某实体中某人的体重历史（httpapi.Directory）
func (s *BodyMetricsService) History(entryID, slug string) ([]models.HistoryEntry, error) {
	coord, ok := s.coordinators[entryID]
	if !ok {
		return nil, models.ErrEntryNotFound
	}
	return coord.History(slug), nil
}

// ReassignGuest 把最近的访客读数改派给指定人员（httpapi.Directory）
// 未指定实体时选择持有最新访客读数的实体
func (s *BodyMetricsService) ReassignGuest(ctx context.Context, person, entryID string) error {
	if len(s.coordinators) == 0 {
		return models.ErrNoEntries
	}

	if entryID != "" {
		coord, ok := s.coordinators[entryID]
		if !ok {
			return models.ErrEntryNotFound
		}
		return coord.ReassignGuest(ctx, person)
	}

	var target *coordinator.Coordinator
	var latest time.Time
	for _, coord := range s.coordinators {
		observedAt, ok := coord.GuestSampleTime()
		if !ok {
			continue
		}
		if target == nil || observedAt.After(latest) {
			target = coord
			latest = observedAt
		}
	}
	if target == nil {
		return models.ErrNoGuestSample
	}

	return target.ReassignGuest(ctx, person)
}

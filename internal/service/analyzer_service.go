package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"yourmove/common/database"
	mqttcommon "yourmove/common/mqtt"
	rediscommon "yourmove/common/redis"
	"yourmove/internal/config"
	"yourmove/internal/consumer"
	"yourmove/internal/gateway"
	"yourmove/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AnalyzerService 压力分析服务
type AnalyzerService struct {
	config         *config.Config
	logger         *zap.Logger
	db             *sql.DB
	redisClient    *redis.Client
	mqttClient     *mqttcommon.Client
	sessions       *consumer.SessionManager
	streamConsumer *consumer.StreamConsumer
	mqttConsumer   *consumer.MQTTConsumer
	gateway        *gateway.Gateway
	server         *gateway.Server
}

// NewAnalyzerService 创建压力分析服务
func NewAnalyzerService(cfg *config.Config, logger *zap.Logger) (*AnalyzerService, error) {
	s := &AnalyzerService{config: cfg, logger: logger}
	ctx := context.Background()

	// 初始化数据库（可选）
	var sessionOpts []consumer.SessionManagerOption
	var gatewayOpts []gateway.Option
	if cfg.Database.Enabled() {
		db, err := database.Open(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := repository.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		s.db = db

		logRepo := repository.NewSessionLogRepository(db, cfg.Database.Driver, logger)
		anomalyRepo := repository.NewAnomalyEventsRepository(db, cfg.Database.Driver, logger)
		sessionOpts = append(sessionOpts, consumer.WithStores(logRepo, anomalyRepo))
		gatewayOpts = append(gatewayOpts, gateway.WithHistory(logRepo, anomalyRepo))
		logger.Info("Storage enabled", zap.String("driver", cfg.Database.Driver))
	} else {
		logger.Info("Storage disabled")
	}

	// 初始化Redis
	redisClient, err := rediscommon.Connect(ctx, &cfg.Redis)
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.redisClient = redisClient

	cache := consumer.NewCacheManager(cfg, consumer.NewRedisKVStore(s.redisClient), logger)
	s.sessions = consumer.NewSessionManager(cfg, cache, logger, sessionOpts...)

	publishers := []consumer.CommandPublisher{consumer.NewStreamCommandPublisher(cfg, s.redisClient)}

	// MQTT 连接失败时只使用 Streams
	if mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger); err == nil {
		s.mqttClient = mqttClient
		s.mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, s.redisClient, logger)
		publishers = append(publishers, consumer.NewMQTTCommandPublisher(cfg, mqttClient))
	} else {
		logger.Warn("MQTT unavailable, frames accepted via stream and websocket only",
			zap.String("broker", cfg.MQTT.Broker),
			zap.Error(err),
		)
	}

	s.streamConsumer = consumer.NewStreamConsumer(
		cfg,
		s.redisClient,
		s.sessions,
		consumer.NewMultiPublisher(logger, publishers...),
		logger,
	)

	if cfg.Gateway.Enabled {
		s.gateway = gateway.New(s.sessions, cache, gateway.NewAuthenticator(cfg.Gateway.JWTSecret), logger.Named("gateway"), gatewayOpts...)
		s.server = gateway.NewServer(cfg.Gateway.Addr, s.gateway.Handler(), logger)
	}

	return s, nil
}

// Start 启动服务，阻塞直到 ctx 取消
func (s *AnalyzerService) Start(ctx context.Context) error {
	s.logger.Info("Starting analyzer service components")

	go s.sessions.RunSweeper(ctx)

	if s.gateway != nil {
		go s.gateway.Hub().Run(ctx)
		go func() {
			if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("Gateway server stopped", zap.Error(err))
			}
		}()
	}

	if s.mqttConsumer != nil {
		go func() {
			if err := s.mqttConsumer.Start(ctx); err != nil {
				s.logger.Error("MQTT consumer stopped", zap.Error(err))
			}
		}()
	}

	s.logger.Info("Analyzer service started successfully")

	if err := s.streamConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream consumer: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *AnalyzerService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping analyzer service")

	if s.server != nil {
		// ctx 可能已取消，关闭使用独立超时
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Stop(shutdownCtx); err != nil {
			s.logger.Error("Error stopping gateway server", zap.Error(err))
		}
	}

	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping MQTT consumer", zap.Error(err))
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	s.closeStores()
	s.logger.Info("Analyzer service stopped")
	return nil
}

func (s *AnalyzerService) closeStores() {
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Error closing Redis client", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Error closing database connection", zap.Error(err))
	}
}

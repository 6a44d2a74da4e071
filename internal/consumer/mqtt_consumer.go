package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqttcommon "yourmove/common/mqtt"
	rediscommon "yourmove/common/redis"
	"yourmove/internal/config"
	"yourmove/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// mqttSubscriber *mqtt.Client 满足该接口
type mqttSubscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer 订阅客户端帧数据并写入帧数据流
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  mqttSubscriber
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient mqttSubscriber,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.Topics.Frames, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to frames topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.Topics.Frames),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Topics.Frames); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
// 主题格式: yourmove/{session_id}/frames
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	sessionID := parts[1]

	var frame models.FrameMessage
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.logger.Error("Failed to unmarshal MQTT message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if frame.SessionID == "" {
		frame.SessionID = sessionID
	}

	// MQTT 回调不携带上下文
	ctx := context.Background()
	streamID, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Stream.Frames, frame, c.config.Stream.MaxLen)
	if err != nil {
		c.logger.Error("Failed to publish frame to stream",
			zap.String("session_id", frame.SessionID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Debug("Published frame to stream",
		zap.String("session_id", frame.SessionID),
		zap.String("stream_id", streamID),
	)
	return nil
}

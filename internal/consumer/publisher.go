package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	rediscommon "yourmove/common/redis"
	"yourmove/internal/config"
	"yourmove/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CommandPublisher 将指令回传给客户端
type CommandPublisher interface {
	Publish(ctx context.Context, sessionID string, cmd models.AICommand) error
}

// CommandMessage 指令流中的消息体
type CommandMessage struct {
	SessionID string           `json:"session_id"`
	Command   models.AICommand `json:"command"`
}

// StreamCommandPublisher 写入 Redis 指令流
type StreamCommandPublisher struct {
	config      *config.Config
	redisClient *redis.Client
}

func NewStreamCommandPublisher(cfg *config.Config, redisClient *redis.Client) *StreamCommandPublisher {
	return &StreamCommandPublisher{config: cfg, redisClient: redisClient}
}

func (p *StreamCommandPublisher) Publish(ctx context.Context, sessionID string, cmd models.AICommand) error {
	msg := CommandMessage{SessionID: sessionID, Command: cmd}
	if _, err := rediscommon.PublishJSONToStream(ctx, p.redisClient, p.config.Stream.Commands, msg, p.config.Stream.MaxLen); err != nil {
		return fmt.Errorf("failed to publish command to stream: %w", err)
	}
	return nil
}

// mqttPublisher *mqtt.Client 满足该接口
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTCommandPublisher 发布到 yourmove/{session_id}/command
type MQTTCommandPublisher struct {
	config *config.Config
	client mqttPublisher
}

func NewMQTTCommandPublisher(cfg *config.Config, client mqttPublisher) *MQTTCommandPublisher {
	return &MQTTCommandPublisher{config: cfg, client: client}
}

func (p *MQTTCommandPublisher) Publish(ctx context.Context, sessionID string, cmd models.AICommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	topic := fmt.Sprintf(p.config.Topics.Commands, sessionID)
	if err := p.client.Publish(topic, p.config.MQTT.QoS, false, payload); err != nil {
		return fmt.Errorf("failed to publish command to %s: %w", topic, err)
	}
	return nil
}

// MultiPublisher 依次调用所有下游，单个失败不影响其他
type MultiPublisher struct {
	publishers []CommandPublisher
	logger     *zap.Logger
}

func NewMultiPublisher(logger *zap.Logger, publishers ...CommandPublisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers, logger: logger}
}

func (m *MultiPublisher) Publish(ctx context.Context, sessionID string, cmd models.AICommand) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, sessionID, cmd); err != nil {
			m.logger.Warn("Command publisher failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

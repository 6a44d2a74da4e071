package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rediscommon "yourmove/common/redis"
	"yourmove/internal/config"
	"yourmove/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 读取阻塞时间
const readBlock = 2 * time.Second

// FrameProcessor 处理单帧并返回指令（SessionManager 实现）
type FrameProcessor interface {
	Process(ctx context.Context, frame *models.FrameMessage) (models.AICommand, error)
}

// StreamConsumer 帧数据流消费者
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	processor   FrameProcessor
	publisher   CommandPublisher
	logger      *zap.Logger
	metrics     *Metrics
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	processor FrameProcessor,
	publisher CommandPublisher,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		processor:   processor,
		publisher:   publisher,
		logger:      logger,
		metrics:     NewMetrics(),
	}
}

// Metrics 返回指标快照
func (c *StreamConsumer) Metrics() Metrics {
	return c.metrics.GetSnapshot()
}

// Start 启动消费者，阻塞直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Stream.Frames
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Stream.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", c.config.Stream.ConsumerGroup),
		zap.String("consumer_name", c.config.Stream.ConsumerName),
		zap.String("stream", stream),
	)

	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 读取一批消息并逐条处理
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Stream.ConsumerGroup,
		c.config.Stream.ConsumerName,
		c.config.Stream.BatchSize,
		readBlock,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		}
		// 无效消息同样确认，避免反复投递
		if err := rediscommon.Ack(ctx, c.redisClient, stream, c.config.Stream.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// processMessage 处理单条帧消息
func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	startTime := time.Now()

	dataStr, err := msg.DataField()
	if err != nil {
		c.metrics.IncrementFailed(errorParse)
		return err
	}

	var frame models.FrameMessage
	if err := json.Unmarshal([]byte(dataStr), &frame); err != nil {
		c.metrics.IncrementFailed(errorParse)
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	cmd, err := c.processor.Process(ctx, &frame)
	if err != nil {
		if errors.Is(err, models.ErrInvalidFrame) {
			c.metrics.IncrementFailed(errorInvalid)
			// 能定位会话时回传 error 指令
			if frame.SessionID != "" {
				if perr := c.publisher.Publish(ctx, frame.SessionID, cmd); perr != nil {
					c.logger.Warn("Failed to publish error command",
						zap.String("session_id", frame.SessionID),
						zap.Error(perr),
					)
				}
			}
		}
		return fmt.Errorf("failed to process frame: %w", err)
	}

	if err := c.publisher.Publish(ctx, frame.SessionID, cmd); err != nil {
		c.metrics.IncrementFailed(errorPublish)
		return fmt.Errorf("failed to publish command: %w", err)
	}

	processingDuration := time.Since(startTime)
	c.metrics.IncrementSucceeded(processingDuration)

	c.logger.Debug("Processed frame",
		zap.String("session_id", frame.SessionID),
		zap.String("command", cmd.Command),
		zap.String("severity", string(cmd.Severity)),
		zap.Duration("processing_time", processingDuration),
	)
	return nil
}

// reportMetrics 定期报告指标（每60秒）
func (c *StreamConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			c.logger.Info("Metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Float64("success_rate", snapshot.SuccessRate()),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_invalid", snapshot.ErrorsInvalid),
				zap.Int64("errors_publish", snapshot.ErrorsPublish),
				zap.Duration("avg_processing_time", snapshot.AvgProcessingTime()),
				zap.Duration("uptime", time.Since(snapshot.StartTime)),
			)
		}
	}
}

package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	rediscommon "yourmove/common/redis"
	"yourmove/internal/config"
	"yourmove/internal/models"
	"yourmove/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServiceConfig(t *testing.T, redisAddr string) *config.Config {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "yourmove.db"))
	t.Setenv("REDIS_ADDR", redisAddr)
	// 不可达的 broker，服务退化为仅 Streams
	t.Setenv("MQTT_BROKER", "tcp://127.0.0.1:1")
	t.Setenv("GATEWAY_ADDR", "127.0.0.1:0")
	t.Setenv("STORAGE_LOG_EVERY_FRAMES", "1")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func frame(sessionID string) *models.FrameMessage {
	f := &models.FrameMessage{
		SessionID:     sessionID,
		PatientID:     "patient-1",
		GlobalMetrics: models.GlobalMetrics{HMDEyeDotProduct: 0.9},
		Sensors:       make(map[string]models.SensorReading, len(models.Regions)),
	}
	for _, r := range models.Regions {
		f.Sensors[r] = models.SensorReading{StressTrend: 2, TremorIntensity: 1, AverageSpeed: 1}
	}
	return f
}

func TestAnalyzerService_StreamToCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testServiceConfig(t, mr.Addr())

	svc, err := NewAnalyzerService(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, svc.mqttClient)
	require.NotNil(t, svc.gateway)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	for i := 0; i < 3; i++ {
		_, err := rediscommon.PublishJSONToStream(context.Background(), svc.redisClient, cfg.Stream.Frames, frame("s-1"), cfg.Stream.MaxLen)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		n, err := svc.redisClient.XLen(context.Background(), cfg.Stream.Commands).Result()
		return err == nil && n == 3
	}, 10*time.Second, 50*time.Millisecond)

	msgs, err := svc.redisClient.XRange(context.Background(), cfg.Stream.Commands, "-", "+").Result()
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Values["data"], `"command":"continue"`)

	logs := repository.NewSessionLogRepository(svc.db, cfg.Database.Driver, zap.NewNop())
	rows, err := logs.ListBySession(context.Background(), "s-1", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 1, svc.sessions.Count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
	require.NoError(t, svc.Stop(context.Background()))
}

func TestAnalyzerService_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testServiceConfig(t, mr.Addr())
	mr.Close()

	_, err := NewAnalyzerService(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

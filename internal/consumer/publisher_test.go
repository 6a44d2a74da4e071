package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"yourmove/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMQTTPublisher struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (f *fakeMQTTPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.topic, f.qos, f.retained, f.payload = topic, qos, retained, payload
	return nil
}

var calmDown = models.AICommand{
	Command:      models.CommandCalmDown,
	TargetSensor: models.RegionRightHand,
	Reason:       "test",
	Severity:     models.CommandSeverityHigh,
}

func TestStreamCommandPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := testConfig()
	p := NewStreamCommandPublisher(cfg, client)

	require.NoError(t, p.Publish(context.Background(), "s-1", calmDown))

	msgs, err := client.XRange(context.Background(), cfg.Stream.Commands, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got CommandMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, calmDown, got.Command)
}

func TestMQTTCommandPublisher(t *testing.T) {
	fake := &fakeMQTTPublisher{}
	p := NewMQTTCommandPublisher(testConfig(), fake)

	require.NoError(t, p.Publish(context.Background(), "s-7", calmDown))
	assert.Equal(t, "yourmove/s-7/command", fake.topic)
	assert.Equal(t, byte(1), fake.qos)
	assert.False(t, fake.retained)
	assert.JSONEq(t,
		`{"command":"calm_down","target_sensor":"right_hand","reason":"test","severity":"high"}`,
		string(fake.payload))
}

func TestMultiPublisher_ContinuesAfterFailure(t *testing.T) {
	failing := &recordingPublisher{err: assert.AnError}
	ok := &recordingPublisher{}
	p := NewMultiPublisher(zap.NewNop(), failing, ok)

	err := p.Publish(context.Background(), "s-1", calmDown)
	assert.ErrorIs(t, err, assert.AnError)
	require.Len(t, ok.sent, 1)
	assert.Equal(t, "s-1", ok.sent[0].sessionID)

	assert.NoError(t, NewMultiPublisher(zap.NewNop(), ok).Publish(context.Background(), "s-2", calmDown))
}

// internal/websocket/relay.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	walletsvc "rewardjar-service/internal/service/wallet"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PassUpdatesChannel carries pass updates between the processes that deliver
// queue items and the API processes that hold PWA connections.
const PassUpdatesChannel = "wallet:pass-updates"

// PubSub is the subset of the redis client the relay needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type relayMessage struct {
	Serial string               `json:"serial"`
	State  *walletsvc.PassState `json:"state"`
}

// Relay publishes pass updates to Redis and feeds the ones it receives into a
// local hub, so every API process reaches its own clients whichever process
// ran the queue.
type Relay struct {
	client  PubSub
	channel string
	logger  *zap.Logger
}

func NewRelay(client PubSub, logger *zap.Logger) *Relay {
	return &Relay{client: client, channel: PassUpdatesChannel, logger: logger}
}

func (r *Relay) PublishPassUpdate(ctx context.Context, serial string, state *walletsvc.PassState) error {
	payload, err := json.Marshal(relayMessage{Serial: serial, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal pass update: %w", err)
	}
	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish pass update: %w", err)
	}
	r.logger.Debug("pass update published",
		zap.String("serial", serial),
		zap.Int64("subscribers", receivers))
	return nil
}

// Run subscribes to the channel and broadcasts every update on hub until ctx
// is done.
func (r *Relay) Run(ctx context.Context, hub *Hub) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	r.logger.Info("pass update relay started", zap.String("channel", r.channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.forward(hub, msg.Payload)
		}
	}
}

func (r *Relay) forward(hub *Hub, payload string) int {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Serial == "" {
		r.logger.Warn("dropping malformed pass update", zap.String("payload", payload), zap.Error(err))
		return 0
	}
	return hub.BroadcastPassUpdate(msg.Serial, msg.State)
}

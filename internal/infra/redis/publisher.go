package redis

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"quizhost-service/internal/app"
)

const noticeChannel = "quiz:notices"

// Publisher pushes state notices through Redis pub/sub so connections held
// by any instance see producer mutations made on this one. Local delivery
// happens via Relay, which runs on every instance including the origin.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, notice app.StateNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, noticeChannel, data).Err()
}

// Relay subscribes to the notice channel and republishes into the local
// broker until the context is canceled. Run it on every instance.
func Relay(ctx context.Context, client *redis.Client, local app.Publisher) {
	sub := client.Subscribe(ctx, noticeChannel)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var notice app.StateNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				log.Printf("relay notice: %v", err)
				continue
			}
			_ = local.Publish(ctx, notice)
		}
	}
}

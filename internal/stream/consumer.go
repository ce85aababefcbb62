package stream

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Handler processes one observation batch; returning nil acknowledges the entry
type Handler func(ctx context.Context, batch ObservationBatch) error

// RecommendationHandler processes one recommendation event; returning nil acknowledges the entry
type RecommendationHandler func(ctx context.Context, event RecommendationEvent) error

// Consumer reads one stream through a consumer group
type Consumer struct {
	client *redis.Client
	stream string
	group  string
	name   string
	count  int64
	block  time.Duration
}

func NewConsumer(client *redis.Client, stream, group, name string) *Consumer {
	return &Consumer{
		client: client,
		stream: stream,
		group:  group,
		name:   name,
		count:  10,
		block:  5 * time.Second,
	}
}

// EnsureGroup creates the consumer group (and the stream) if it does not exist
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Run reads observation batches until ctx is cancelled. Entries that fail to
// decode are acknowledged and dropped; entries whose handler fails stay pending.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	return c.read(ctx, func(m redis.XMessage) {
		batch, err := DecodeObservationBatch(m.Values)
		if err != nil {
			c.drop(m.ID, err)
			return
		}
		if err := handle(ctx, batch); err != nil {
			log.Printf("Failed to process %s batch for %s: %v", batch.Type, batch.Location.Name, err)
			return
		}
		c.ack(m.ID)
	})
}

// RunRecommendations is Run for the recommendation event stream
func (c *Consumer) RunRecommendations(ctx context.Context, handle RecommendationHandler) error {
	return c.read(ctx, func(m redis.XMessage) {
		event, err := DecodeRecommendationEvent(m.Values)
		if err != nil {
			c.drop(m.ID, err)
			return
		}
		if err := handle(ctx, event); err != nil {
			log.Printf("Failed to process recommendation for %s on %s: %v", event.Record.Crop, event.Record.Date, err)
			return
		}
		c.ack(m.ID)
	})
}

func (c *Consumer) read(ctx context.Context, process func(redis.XMessage)) error {
	for {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, ">"},
			Count:    c.count,
			Block:    c.block,
		}).Result()

		if ctx.Err() != nil {
			return nil
		}

		if err != nil && err != redis.Nil {
			log.Printf("Error reading from Redis stream %s: %v", c.stream, err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, m := range s.Messages {
				if ctx.Err() != nil {
					return nil
				}
				process(m)
			}
		}
	}
}

func (c *Consumer) drop(id string, err error) {
	log.Printf("Warning: dropping malformed entry %s: %v", id, err)
	c.ack(id)
}

func (c *Consumer) ack(id string) {
	if err := c.client.XAck(context.Background(), c.stream, c.group, id).Err(); err != nil {
		log.Printf("Warning: failed to ack %s: %v", id, err)
	}
}

package stream

import (
	"context"
	"fmt"
	"log"
	"time"

	"greenhouse/internal/config"
	"greenhouse/internal/models"

	"github.com/go-redis/redis/v8"
)

// Publisher writes observation batches and recommendation events to Redis streams
type Publisher struct {
	client               *redis.Client
	stream               string
	recommendationStream string
}

func NewPublisher(client *redis.Client, cfg config.RedisConfig) *Publisher {
	return &Publisher{
		client:               client,
		stream:               cfg.Stream,
		recommendationStream: cfg.RecommendationStream(),
	}
}

// PublishObservations serializes a location's observations and appends them to the stream
func (p *Publisher) PublishObservations(ctx context.Context, location models.Location, observations []models.Observation, batchType string) error {
	values, err := encode(ObservationBatch{
		Location:     location,
		Observations: observations,
		Type:         batchType,
		PublishedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{Stream: p.stream, Values: values}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to Redis for %s: %w", location.Name, err)
	}
	log.Printf("Published %d %s observations for %s to Redis", len(observations), batchType, location.Name)
	return nil
}

// PublishRecommendation appends a recommendation event to the recommendation stream
func (p *Publisher) PublishRecommendation(ctx context.Context, event RecommendationEvent) error {
	values, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: p.recommendationStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to publish recommendation: %w", err)
	}
	return nil
}

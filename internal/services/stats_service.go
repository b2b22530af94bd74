package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StatsRecorder counts verification outcomes per project.
type StatsRecorder interface {
	Record(ctx context.Context, projectID, environment, outcome string) error
	Get(ctx context.Context, projectID string) (map[string]int64, error)
}

// StatsService keeps verification counters in a Redis hash per project.
type StatsService struct {
	client *redis.Client
}

// NewStatsService creates a new stats service. A nil client yields a
// recorder that drops everything.
func NewStatsService(client *redis.Client) StatsRecorder {
	if client == nil {
		return NoopStats{}
	}
	return &StatsService{client: client}
}

func statsKey(projectID string) string {
	return fmt.Sprintf("receipt_stats:%s", projectID)
}

// Record increments the counters for one finished verification
func (s *StatsService) Record(ctx context.Context, projectID, environment, outcome string) error {
	key := statsKey(projectID)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	pipe.HIncrBy(ctx, key, "outcome:"+outcome, 1)
	if environment != "" {
		pipe.HIncrBy(ctx, key, "environment:"+environment, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns all counters for a project
func (s *StatsService) Get(ctx context.Context, projectID string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, statsKey(projectID)).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		stats[field] = n
	}
	return stats, nil
}

// NoopStats is used when Redis is not configured.
type NoopStats struct{}

func (NoopStats) Record(context.Context, string, string, string) error { return nil }

func (NoopStats) Get(context.Context, string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

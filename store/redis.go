package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"

	"github.com/lipa-labs/payaudit/types"
)

const DefaultKeyPrefix = "payaudit"

func NewRedisClient(url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	log.Info("Using redis report store", "addr", opts.Addr, "db", opts.DB)
	return redis.NewClient(opts), nil
}

func CheckRedisConnection(client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}
	return nil
}

// RedisReportStore keeps the latest reports as JSON under
// "<prefix>:latest:audit" and "<prefix>:latest:tests".
type RedisReportStore struct {
	r      redis.UniversalClient
	prefix string
}

func NewRedisReportStore(r redis.UniversalClient, prefix string) *RedisReportStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisReportStore{r: r, prefix: prefix}
}

func (s *RedisReportStore) key(kind string) string {
	return fmt.Sprintf("%s:latest:%s", s.prefix, kind)
}

func (s *RedisReportStore) PutAudit(ctx context.Context, report *types.AuditReport) error {
	return s.put(ctx, kindAudit, report)
}

func (s *RedisReportStore) LatestAudit(ctx context.Context) (*types.AuditReport, error) {
	var report types.AuditReport
	if err := s.get(ctx, kindAudit, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *RedisReportStore) PutTests(ctx context.Context, report *types.TestReport) error {
	return s.put(ctx, kindTests, report)
}

func (s *RedisReportStore) LatestTests(ctx context.Context) (*types.TestReport, error) {
	var report types.TestReport
	if err := s.get(ctx, kindTests, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *RedisReportStore) put(ctx context.Context, kind string, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode %s report: %w", kind, err)
	}
	if err := s.r.Set(ctx, s.key(kind), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s report: %w", kind, err)
	}
	return nil
}

func (s *RedisReportStore) get(ctx context.Context, kind string, out any) error {
	data, err := s.r.Get(ctx, s.key(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s report: %w", kind, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s report: %w", kind, err)
	}
	return nil
}

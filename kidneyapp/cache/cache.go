// Package cache 모델과 이미지 MD5 기준 추론 결과 캐시
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/prediction"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "prediction:"

// Cache 추론 결과 캐시
type Cache interface {
	// Get 캐시된 결과. 없으면 nil, nil
	Get(ctx context.Context, key string) (*prediction.Result, error)
	Set(ctx context.Context, key string, result *prediction.Result) error
	// Clear 캐시된 결과 전체 삭제
	Clear(ctx context.Context) error
}

// Key 모델 식별자와 이미지 MD5로 캐시 키 생성
func Key(modelID, md5 string) string {
	return modelID + ":" + md5
}

// Config redis 연결 설정
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis redis 기반 Cache
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis redis 클라이언트 생성. 연결 확인은 Ping
func NewRedis(cfg Config) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{
		client: client,
		ttl:    cfg.TTL,
	}
}

// Ping 연결 확인
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get Cache 구현
func (r *Redis) Get(ctx context.Context, key string) (*prediction.Result, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var result prediction.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set Cache 구현
func (r *Redis) Set(ctx context.Context, key string, result *prediction.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err()
}

// Clear Cache 구현. keyPrefix 키만 삭제
func (r *Redis) Clear(ctx context.Context) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close 연결 해제
func (r *Redis) Close() error {
	return r.client.Close()
}

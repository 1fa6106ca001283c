// Package cache реализует кэширование признаков и оценок риска в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"equipment-insight/internal/models"
)

const (
	// FeaturesKeyPrefix префикс для строк признаков
	FeaturesKeyPrefix = "features:"
	// AssessmentKeyPrefix префикс для последней оценки единицы техники
	AssessmentKeyPrefix = "assessment:"
	// LatestAssessmentsKey список последних оценок
	LatestAssessmentsKey = "assessments:latest"
	// InferenceCounterKey счетчик запросов инференса
	InferenceCounterKey = "inference:total"
	// AnomaliesCounterKey счетчик обнаруженных аномалий
	AnomaliesCounterKey = "anomalies:total"
	// DefaultTTL время жизни записи по умолчанию
	DefaultTTL = 5 * time.Minute
	// FeaturesTTL время жизни строк признаков пакетного прогона
	FeaturesTTL = 1 * time.Hour
	// LatestAssessmentsLimit сколько последних оценок хранится в списке
	LatestAssessmentsLimit = 1000
)

// ErrCacheMiss ключ отсутствует или истек
var ErrCacheMiss = errors.New("cache miss")

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// CacheFeatureRows сохраняет строки признаков пакетного прогона одним пайплайном
func (r *RedisCache) CacheFeatureRows(ctx context.Context, rows []models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal feature row %s: %w", row.EquipmentID, err)
		}
		pipe.Set(ctx, FeaturesKeyPrefix+row.EquipmentID, data, FeaturesTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache feature rows: %w", err)
	}
	return nil
}

// GetFeatures возвращает строку признаков по идентификатору техники
func (r *RedisCache) GetFeatures(ctx context.Context, equipmentID string) (models.FeatureRow, error) {
	var row models.FeatureRow
	err := r.get(ctx, FeaturesKeyPrefix+equipmentID, &row)
	return row, err
}

// CacheAssessment сохраняет ответ инференса и добавляет его в список последних
func (r *RedisCache) CacheAssessment(ctx context.Context, resp *models.InferenceResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	key := resp.EquipmentID
	if key == "" {
		key = resp.RequestID
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, AssessmentKeyPrefix+key, data, r.ttl)
	pipe.LPush(ctx, LatestAssessmentsKey, data)
	pipe.LTrim(ctx, LatestAssessmentsKey, 0, LatestAssessmentsLimit-1)
	pipe.Incr(ctx, InferenceCounterKey)
	if resp.IsAnomaly {
		pipe.Incr(ctx, AnomaliesCounterKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache assessment: %w", err)
	}
	return nil
}

// GetAssessment возвращает последнюю оценку по идентификатору техники или запроса
func (r *RedisCache) GetAssessment(ctx context.Context, id string) (*models.InferenceResponse, error) {
	var resp models.InferenceResponse
	if err := r.get(ctx, AssessmentKeyPrefix+id, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LatestAssessments возвращает последние N оценок
func (r *RedisCache) LatestAssessments(ctx context.Context, count int64) ([]models.InferenceResponse, error) {
	data, err := r.client.LRange(ctx, LatestAssessmentsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest assessments: %w", err)
	}

	out := make([]models.InferenceResponse, 0, len(data))
	for _, d := range data {
		var resp models.InferenceResponse
		if err := json.Unmarshal([]byte(d), &resp); err != nil {
			continue
		}
		out = append(out, resp)
	}
	return out, nil
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

func (r *RedisCache) get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}

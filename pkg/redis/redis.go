package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"os"
	"strconv"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "visionguard:detections:"

type IRedis interface {
	GetDetections(ctx context.Context, key string) ([]byte, error)
	SetDetections(ctx context.Context, key string, payload []byte) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to REDIS_ADDRESS. It returns nil when no address is
// configured, which disables result caching.
func New() IRedis {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		logrus.Info("REDIS_ADDRESS not set, detection cache disabled")
		return nil
	}

	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisPassword := os.Getenv("REDIS_PASSWORD")

	ttl := time.Hour
	if raw := os.Getenv("RESULT_CACHE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		} else {
			logrus.Warnf("Invalid RESULT_CACHE_TTL %q, using %s", raw, ttl)
		}
	}

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, ttl)
}

func NewWithClient(client *redis.Client, ttl time.Duration) IRedis {
	return &redisClient{client: client, ttl: ttl}
}

// CacheKey identifies one inference call: the image fingerprint, the
// model name and the threshold.
func CacheKey(fingerprint string, model string, threshold float64) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, model, strconv.FormatFloat(threshold, 'f', -1, 64), fingerprint)
}

func (r *redisClient) GetDetections(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("No cached detections for key %s", key))
		return nil, ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting detections for key %s: %v", key, err))
		return nil, err
	}
	return val, nil
}

func (r *redisClient) SetDetections(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching detections for key %s: %v", key, err))
		return err
	}
	logrus.Debug(fmt.Sprintf("Cached detections for key %s with expiration %v", key, r.ttl))
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

// Package cache implementa el cache de lectura sobre Redis. Es opcional:
// los casos de uso aceptan un Client nil y pasan directo al store.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Claves de cache que usa la aplicación.
const (
	KeyDashboardSummary = "dashboard:summary"
	KeyProductList      = "products:list"
)

// ErrCacheMiss se devuelve cuando la clave no existe en el cache.
var ErrCacheMiss = redis.Nil

// Client contrato del cache de lectura (inversión de dependencias: los casos
// de uso dependen de esta interfaz, no de Redis).
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ Client = (*RedisClient)(nil)

// RedisClient implementación de Client sobre go-redis.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient crea el cliente y verifica conectividad con un PING.
func NewRedisClient(addr string) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisClient{rdb: rdb}, nil
}

// Get recupera el valor de una clave. ErrCacheMiss si no existe.
func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set guarda un valor con expiración.
func (c *RedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// Delete elimina una o más claves (no falla si no existen).
func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

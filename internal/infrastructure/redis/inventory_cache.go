package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// InventoryCache は日付ごとの在庫数を (ホテル, 部屋タイプ) 単位のハッシュでキャッシュする
type InventoryCache struct {
	client *redis.Client
}

// NewInventoryCache は新しいInventoryCacheインスタンスを作成する
func NewInventoryCache(client *redis.Client) *InventoryCache {
	return &InventoryCache{client: client}
}

// GetCounts は指定日の在庫数を取得する。1日でも欠けていれば ErrCacheMiss
func (c *InventoryCache) GetCounts(ctx context.Context, key inventory.Key, dates []time.Time) (map[string]int, error) {
	fields := make([]string, len(dates))
	for i, d := range dates {
		fields[i] = stay.Format(d)
	}
	values, err := c.client.HMGet(ctx, c.cacheKey(key), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	counts := make(map[string]int, len(fields))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, ErrCacheMiss
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, ErrCacheMiss
		}
		counts[fields[i]] = n
	}
	return counts, nil
}

// SetCounts は在庫数を保存する（キー全体に TTL を設定）
func (c *InventoryCache) SetCounts(ctx context.Context, key inventory.Key, counts map[string]int, ttl time.Duration) error {
	if len(counts) == 0 {
		return nil
	}
	values := make(map[string]any, len(counts))
	for date, n := range counts {
		values[date] = n
	}
	cacheKey := c.cacheKey(key)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, cacheKey, values)
		pipe.Expire(ctx, cacheKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は在庫キーのキャッシュを無効化する
func (c *InventoryCache) Invalidate(ctx context.Context, keys ...inventory.Key) error {
	if len(keys) == 0 {
		return nil
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = c.cacheKey(k)
	}
	if err := c.client.Del(ctx, cacheKeys...).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *InventoryCache) cacheKey(key inventory.Key) string {
	return fmt.Sprintf("inventory:%s:%s", key.HotelCode, key.InvTypeCode)
}

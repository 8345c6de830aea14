package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
	redisinfra "github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
)

// noRecord はキャッシュ上で在庫レコードが存在しない日を表す
const noRecord = -1

// DailyAvailability は1日分の在庫数
type DailyAvailability struct {
	Date  time.Time
	Count int
}

// InventoryService は在庫数の参照を提供する（Redis キャッシュ付き）
type InventoryService struct {
	repo  inventory.Repository
	cache InventoryCacheInterface
	ttl   time.Duration
}

// NewInventoryService は InventoryService を作成する（cache は nil でもよい）
func NewInventoryService(repo inventory.Repository, cache InventoryCacheInterface, ttl time.Duration) *InventoryService {
	return &InventoryService{repo: repo, cache: cache, ttl: ttl}
}

// GetAvailability は [from, to) の在庫数を日付順に返す。在庫レコードのない日は含まない
func (s *InventoryService) GetAvailability(ctx context.Context, key inventory.Key, from, to time.Time) ([]DailyAvailability, error) {
	dates := stay.Nights(from, to)
	if len(dates) == 0 {
		return nil, inventory.ErrInvalidAdjustment
	}

	if s.cache != nil {
		counts, err := s.cache.GetCounts(ctx, key, dates)
		if err == nil {
			return fromCounts(dates, counts), nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Ctx(ctx).Warn("在庫キャッシュの取得に失敗", zap.String("key", key.String()), zap.Error(err))
		}
	}

	records, err := s.repo.ListRange(ctx, key, from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(dates))
	for _, d := range dates {
		counts[stay.Format(d)] = noRecord
	}
	for _, r := range records {
		counts[stay.Format(r.Date)] = r.Count
	}

	if s.cache != nil {
		if err := s.cache.SetCounts(ctx, key, counts, s.ttl); err != nil {
			logger.Ctx(ctx).Warn("在庫キャッシュの保存に失敗", zap.String("key", key.String()), zap.Error(err))
		}
	}
	return fromCounts(dates, counts), nil
}

func fromCounts(dates []time.Time, counts map[string]int) []DailyAvailability {
	result := make([]DailyAvailability, 0, len(dates))
	for _, d := range dates {
		n, ok := counts[stay.Format(d)]
		if !ok || n == noRecord {
			continue
		}
		result = append(result, DailyAvailability{Date: d, Count: n})
	}
	return result
}

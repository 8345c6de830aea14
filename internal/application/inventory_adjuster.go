package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/config"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/transaction"
	redislock "github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/metrics"
)

// errAdjustmentRejected はトランザクションをロールバックさせるための内部エラー
var errAdjustmentRejected = errors.New("在庫調整が拒否されました")

// InventoryAdjuster は宿泊期間単位で在庫を増減する
// (ホテル, 部屋タイプ) ごとの分散ロックを取得した上で、1トランザクション内で行ロックして全日分をまとめて更新する
type InventoryAdjuster struct {
	txManager transaction.Manager
	repo      inventory.Repository
	locker    redislock.Locker
	cache     InventoryCacheInterface
	cfg       config.ReservationConfig
	metrics   *metrics.Metrics
}

// NewInventoryAdjuster は InventoryAdjuster を作成する
// locker と cache は nil でもよい（行ロックのみで直列化する）
func NewInventoryAdjuster(tm transaction.Manager, repo inventory.Repository, locker redislock.Locker, cache InventoryCacheInterface, cfg config.ReservationConfig, m *metrics.Metrics) *InventoryAdjuster {
	return &InventoryAdjuster{txManager: tm, repo: repo, locker: locker, cache: cache, cfg: cfg, metrics: m}
}

// StayDates は [checkIn, checkOut) の宿泊日を返す
func StayDates(checkIn, checkOut time.Time) []time.Time {
	return stay.Nights(checkIn, checkOut)
}

// Decrement は全宿泊日の在庫を減らす（全日成功か何もしないか）
func (a *InventoryAdjuster) Decrement(ctx context.Context, adj inventory.Adjustment) (*inventory.AdjustmentResult, error) {
	return a.run(ctx, "decrement", inventory.Step{Direction: inventory.DirectionDecrement, Adjustment: adj})
}

// Increment は存在する宿泊日の在庫を増やす
func (a *InventoryAdjuster) Increment(ctx context.Context, adj inventory.Adjustment) (*inventory.AdjustmentResult, error) {
	return a.run(ctx, "increment", inventory.Step{Direction: inventory.DirectionIncrement, Adjustment: adj})
}

// Swap は release の在庫を戻してから hold の在庫を確保する
// hold が確保できなければ release も反映せず、元の確保状態のまま残る
func (a *InventoryAdjuster) Swap(ctx context.Context, release, hold inventory.Adjustment) (*inventory.AdjustmentResult, error) {
	return a.run(ctx, "swap",
		inventory.Step{Direction: inventory.DirectionIncrement, Adjustment: release},
		inventory.Step{Direction: inventory.DirectionDecrement, Adjustment: hold},
	)
}

func (a *InventoryAdjuster) run(ctx context.Context, operation string, steps ...inventory.Step) (*inventory.AdjustmentResult, error) {
	for _, s := range steps {
		if err := s.Adjustment.Validate(); err != nil {
			return nil, err
		}
	}
	keys, datesByKey := collectDates(steps)

	locks, err := a.lock(ctx, keys)
	if err != nil {
		a.metrics.ObserveInventory(operation, "busy")
		return nil, err
	}
	defer a.unlock(ctx, locks)

	var rejected *inventory.AdjustmentResult
	err = transaction.Run(ctx, a.txManager, func(tx transaction.Tx) error {
		ledger := inventory.NewLedger()
		for _, k := range keys {
			records, err := a.repo.LockRange(ctx, tx, k, datesByKey[k])
			if err != nil {
				return err
			}
			ledger.Load(records)
		}
		for _, s := range steps {
			if result := ledger.Apply(s); !result.Success {
				rejected = result
				return errAdjustmentRejected
			}
		}
		return a.repo.ApplyChanges(ctx, tx, ledger.Changes())
	})
	if errors.Is(err, errAdjustmentRejected) {
		a.metrics.ObserveInventory(operation, string(rejected.Reason))
		return rejected, nil
	}
	if err != nil {
		a.metrics.ObserveInventory(operation, "error")
		return nil, fmt.Errorf("在庫調整に失敗: %w", err)
	}

	a.metrics.ObserveInventory(operation, "success")
	a.invalidate(ctx, keys)
	return inventory.Succeeded(), nil
}

// lock はキーをソートした順に分散ロックを取得する
func (a *InventoryAdjuster) lock(ctx context.Context, keys []inventory.Key) (redislock.MultiLock, error) {
	if a.locker == nil {
		return nil, nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = "inventory:" + k.String()
	}
	retries := 1
	if a.cfg.LockRetryInterval > 0 {
		retries = int(a.cfg.LockWait/a.cfg.LockRetryInterval) + 1
	}

	start := time.Now()
	locks, err := redislock.AcquireAll(ctx, a.locker, names, a.cfg.LockTTL, retries, a.cfg.LockRetryInterval)
	if err != nil {
		a.metrics.ObserveLock("acquire", "failure", time.Since(start))
		if errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, inventory.ErrInventoryBusy
		}
		return nil, fmt.Errorf("在庫ロックの取得に失敗: %w", err)
	}
	a.metrics.ObserveLock("acquire", "success", time.Since(start))
	return locks, nil
}

func (a *InventoryAdjuster) unlock(ctx context.Context, locks redislock.MultiLock) {
	if len(locks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := locks.Release(ctx); err != nil {
		logger.Ctx(ctx).Warn("在庫ロックの解放に失敗", zap.Error(err))
	}
}

func (a *InventoryAdjuster) invalidate(ctx context.Context, keys []inventory.Key) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx, keys...); err != nil {
		logger.Ctx(ctx).Warn("在庫キャッシュの無効化に失敗", zap.Error(err))
	}
}

// collectDates はステップ全体の在庫キー（ソート済み）とキーごとの宿泊日を返す
func collectDates(steps []inventory.Step) ([]inventory.Key, map[inventory.Key][]time.Time) {
	seen := make(map[inventory.Key]map[string]time.Time)
	for _, s := range steps {
		k := s.Adjustment.Key
		if seen[k] == nil {
			seen[k] = make(map[string]time.Time)
		}
		for _, d := range s.Adjustment.Dates() {
			seen[k][stay.Format(d)] = d
		}
	}

	keys := make([]inventory.Key, 0, len(seen))
	datesByKey := make(map[inventory.Key][]time.Time, len(seen))
	for k, byDay := range seen {
		keys = append(keys, k)
		dates := make([]time.Time, 0, len(byDay))
		for _, d := range byDay {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		datesByKey[k] = dates
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, datesByKey
}

var _ InventoryAdjusterInterface = (*InventoryAdjuster)(nil)

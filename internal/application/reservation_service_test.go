//go:build integration
// +build integration

package application

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/config"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/channelmanager"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/ota"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/redis"
)

// fakeChannelManager は応答本文を差し替えられるチャネルマネージャー
type fakeChannelManager struct {
	server   *httptest.Server
	response atomic.Value
	requests atomic.Int32
}

func newFakeChannelManager(t *testing.T) *fakeChannelManager {
	f := &fakeChannelManager{}
	f.response.Store(acceptedXML)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(f.response.Load().(string)))
	}))
	t.Cleanup(f.server.Close)
	return f
}

type integrationEnv struct {
	service   *ReservationService
	store     *ReservationStore
	inventory *postgres.InventoryRepository
	channel   *fakeChannelManager
	db        *sqlx.DB
}

func setupTestEnv(t *testing.T) *integrationEnv {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}
	require.NoError(t, postgres.RunMigrations(db.DB, "../../migrations"))

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		t.Skipf("Redis接続エラー: %v", err)
	}
	t.Cleanup(func() {
		redisClient.Close()
		db.Close()
	})

	channel := newFakeChannelManager(t)
	resCfg := config.ReservationConfig{
		FlowTimeout:       10 * time.Second,
		LockTTL:           10 * time.Second,
		LockWait:          5 * time.Second,
		LockRetryInterval: 20 * time.Millisecond,
	}

	invRepo := postgres.NewInventoryRepository(db)
	lockManager := redisinfra.NewLockManager(redisClient)
	store := NewReservationStore(postgres.NewReservationRepository(db), postgres.NewAuditLogRepository(db), nil, nil)
	adjuster := NewInventoryAdjuster(
		postgres.NewTxManager(db), invRepo,
		lockManager, redisinfra.NewInventoryCache(redisClient),
		resCfg, nil,
	)
	svc := NewReservationService(
		reservation.NewProcessor(nil, nil),
		ota.NewFormatter(nil, nil),
		channelmanager.NewClient(config.ChannelManagerConfig{URL: channel.server.URL, Timeout: 5 * time.Second}, nil),
		store, adjuster, lockManager, nil, resCfg, nil,
	)

	return &integrationEnv{service: svc, store: store, inventory: invRepo, channel: channel, db: db}
}

// seedStay は一意なホテルコードで在庫を登録し、その宿泊内容を返す
func (env *integrationEnv) seedStay(t *testing.T, count int) reservation.StayDetails {
	t.Helper()
	checkIn := stay.DateOf(time.Now()).AddDate(0, 0, 30)
	checkOut := checkIn.AddDate(0, 0, 2)
	hotel := "IT-" + uuid.NewString()[:8]

	for _, d := range stay.Nights(checkIn, checkOut) {
		_, err := env.db.Exec(`INSERT INTO inventories (hotel_code, inv_type_code, date, count) VALUES ($1, $2, $3::date, $4)`,
			hotel, "STD", stay.Format(d), count)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		env.db.Exec("DELETE FROM inventories WHERE hotel_code = $1", hotel)
		env.db.Exec("DELETE FROM reservation_logs WHERE reservation_id IN (SELECT id FROM reservations WHERE hotel_code = $1)", hotel)
		env.db.Exec("DELETE FROM reservations WHERE hotel_code = $1", hotel)
	})

	return reservation.StayDetails{
		HotelCode:     hotel,
		HotelName:     "Integration Hotel",
		RatePlanCode:  "BAR",
		RoomTypeCode:  "STD",
		CheckInDate:   checkIn,
		CheckOutDate:  checkOut,
		NumberOfRooms: 1,
		Guests: []reservation.Guest{
			{FirstName: "Taro", LastName: "Yamada", DateOfBirth: date(1985, 4, 1)},
			{FirstName: "Jiro", LastName: "Yamada", DateOfBirth: time.Now().AddDate(-8, 0, 0)},
		},
		TotalAmount:  42000,
		CurrencyCode: "JPY",
		Email:        "taro@example.com",
	}
}

func (env *integrationEnv) counts(t *testing.T, details reservation.StayDetails) []int {
	t.Helper()
	records, err := env.inventory.ListRange(context.Background(),
		inventory.Key{HotelCode: details.HotelCode, InvTypeCode: details.RoomTypeCode},
		details.CheckInDate, details.CheckOutDate)
	require.NoError(t, err)
	counts := make([]int, len(records))
	for i, r := range records {
		counts[i] = r.Count
	}
	return counts
}

func booking(details reservation.StayDetails) reservation.BookingInput {
	return reservation.BookingInput{
		ReservationID: "IT-" + uuid.NewString(),
		PaymentMethod: "payAtHotel",
		StayDetails:   details,
	}
}

func TestIntegration_CreateReservation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	t.Run("確定した予約の年齢区分が宿泊者と一致する", func(t *testing.T) {
		details := env.seedStay(t, 3)
		in := booking(details)

		result, err := env.service.CreateReservation(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in.ReservationID, result.ReservationID)

		saved, err := env.service.GetReservation(ctx, in.ReservationID)
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusConfirmed, saved.Status)
		assert.True(t, saved.InventoryHeld)
		assert.Equal(t, result.AgeCodeSummary, saved.AgeCodeSummary)
		assert.Equal(t, len(details.Guests), saved.AgeCodeSummary.Total())
		assert.Equal(t, []int{2, 2}, env.counts(t, details))

		logs, err := env.service.ListReservationLogs(ctx, in.ReservationID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, auditlog.StatusSuccess, logs[0].Status)
		assert.Contains(t, logs[0].XMLSent, "OTA_HotelResNotifRQ")
	})

	t.Run("同じIDでの再作成はErrReservationAlreadyExists", func(t *testing.T) {
		details := env.seedStay(t, 3)
		in := booking(details)

		_, err := env.service.CreateReservation(ctx, in)
		require.NoError(t, err)
		_, err = env.service.CreateReservation(ctx, in)

		assert.ErrorIs(t, err, reservation.ErrReservationAlreadyExists)
		assert.Equal(t, []int{2, 2}, env.counts(t, details))
	})

	t.Run("拒否された場合は在庫を戻し予約を残さない", func(t *testing.T) {
		details := env.seedStay(t, 1)
		in := booking(details)
		env.channel.response.Store(rejectedXML)
		defer env.channel.response.Store(acceptedXML)

		_, err := env.service.CreateReservation(ctx, in)

		var cmErr *channelmanager.Error
		require.ErrorAs(t, err, &cmErr)
		assert.Equal(t, []int{1, 1}, env.counts(t, details))
		_, err = env.service.GetReservation(ctx, in.ReservationID)
		assert.ErrorIs(t, err, reservation.ErrReservationNotFound)

		logs, err := env.service.ListReservationLogs(ctx, in.ReservationID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, auditlog.StatusFailure, logs[0].Status)
	})
}

func TestIntegration_ConcurrentCreateForLastRoom(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	details := env.seedStay(t, 1)

	const workers = 5
	var (
		wg           sync.WaitGroup
		successCount atomic.Int32
		insufficient atomic.Int32
		other        atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.CreateReservation(ctx, booking(details))
			var insErr *inventory.InsufficientError
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.As(err, &insErr):
				insufficient.Add(1)
			default:
				t.Logf("予期しないエラー: %v", err)
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(workers-1), insufficient.Load())
	assert.Zero(t, other.Load())
	assert.Equal(t, []int{0, 0}, env.counts(t, details))
	// 在庫を確保できたリクエストだけがチャネルマネージャーに送信される
	assert.Equal(t, int32(1), env.channel.requests.Load())
}

func TestIntegration_AmendAndCancel(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	details := env.seedStay(t, 3)
	in := booking(details)
	_, err := env.service.CreateReservation(ctx, in)
	require.NoError(t, err)

	t.Run("部屋数の変更で在庫を差し替える", func(t *testing.T) {
		amended := details
		amended.NumberOfRooms = 2

		result, err := env.service.AmendReservation(ctx, in.ReservationID, amended)

		require.NoError(t, err)
		assert.Equal(t, 2, result.AgeCodeSummary.Total())
		assert.Equal(t, []int{1, 1}, env.counts(t, details))
	})

	t.Run("キャンセルで在庫を戻す", func(t *testing.T) {
		result, err := env.service.CancelReservation(ctx, in.ReservationID, CancelInput{Reason: "予定変更"})

		require.NoError(t, err)
		assert.Equal(t, in.ReservationID, result.ReservationID)
		assert.Equal(t, []int{3, 3}, env.counts(t, details))

		saved, err := env.service.GetReservation(ctx, in.ReservationID)
		require.NoError(t, err)
		assert.True(t, saved.IsCancelled())
		require.NotNil(t, saved.CancelledGuest)
		assert.Equal(t, "Taro", saved.CancelledGuest.FirstName)
	})

	t.Run("キャンセル済みの予約は変更もキャンセルもできない", func(t *testing.T) {
		_, err := env.service.AmendReservation(ctx, in.ReservationID, details)
		assert.ErrorIs(t, err, reservation.ErrReservationAlreadyCancelled)

		_, err = env.service.CancelReservation(ctx, in.ReservationID, CancelInput{})
		assert.ErrorIs(t, err, reservation.ErrReservationAlreadyCancelled)
	})
}

func TestIntegration_ConcurrentAmendOfSameReservation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	details := env.seedStay(t, 3)
	in := booking(details)
	_, err := env.service.CreateReservation(ctx, in)
	require.NoError(t, err)

	amended := details
	amended.NumberOfRooms = 2

	const workers = 3
	var (
		wg           sync.WaitGroup
		successCount atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.AmendReservation(ctx, in.ReservationID, amended)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, reservation.ErrReservationBusy):
			default:
				t.Errorf("予期しないエラー: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, successCount.Load(), int32(1))
	// 同じ変更が何度適用されても確保している在庫は2室分だけ
	assert.Equal(t, []int{1, 1}, env.counts(t, details))
	saved, err := env.service.GetReservation(ctx, in.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.NumberOfRooms)
}

func TestIntegration_ReconcilePendingReservations(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	details := env.seedStay(t, 1)

	rec, err := reservation.NewProcessor(func() time.Time { return time.Now().Add(-time.Hour) }, nil).Process(booking(details))
	require.NoError(t, err)
	require.NoError(t, env.store.CreatePending(ctx, rec))

	resolved, err := env.service.ReconcilePendingReservations(ctx, 30*time.Minute)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, resolved, 1)
	_, err = env.service.GetReservation(ctx, rec.ID)
	assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
	assert.Equal(t, []int{1, 1}, env.counts(t, details))
}

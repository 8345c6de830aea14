package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

const uniqueViolation = "23505"

const reservationColumns = `id, payment_method, hotel_code, hotel_name, rate_plan_code, room_type_code,
	check_in_date, check_out_date, number_of_rooms, guests, age_code_summary, total_amount, currency_code,
	email, status, inventory_held, cancelled_guest, cancelled_at, created_at, updated_at`

type reservationRow struct {
	ID             string             `db:"id"`
	PaymentMethod  string             `db:"payment_method"`
	HotelCode      string             `db:"hotel_code"`
	HotelName      string             `db:"hotel_name"`
	RatePlanCode   string             `db:"rate_plan_code"`
	RoomTypeCode   string             `db:"room_type_code"`
	CheckInDate    time.Time          `db:"check_in_date"`
	CheckOutDate   time.Time          `db:"check_out_date"`
	NumberOfRooms  int                `db:"number_of_rooms"`
	Guests         types.JSONText     `db:"guests"`
	AgeCodeSummary types.JSONText     `db:"age_code_summary"`
	TotalAmount    float64            `db:"total_amount"`
	CurrencyCode   string             `db:"currency_code"`
	Email          string             `db:"email"`
	Status         string             `db:"status"`
	InventoryHeld  bool               `db:"inventory_held"`
	CancelledGuest types.NullJSONText `db:"cancelled_guest"`
	CancelledAt    *time.Time         `db:"cancelled_at"`
	CreatedAt      time.Time          `db:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at"`
}

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	row, err := toReservationRow(res)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservations (` + reservationColumns + `) VALUES (
		:id, :payment_method, :hotel_code, :hotel_name, :rate_plan_code, :room_type_code,
		:check_in_date, :check_out_date, :number_of_rooms, :guests, :age_code_summary, :total_amount, :currency_code,
		:email, :status, :inventory_held, :cancelled_guest, :cancelled_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return reservation.ErrReservationAlreadyExists
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity()
}

// Update は予約内容を上書きする。キャンセル済みの予約は更新しない
func (r *ReservationRepository) Update(ctx context.Context, res *reservation.Reservation) error {
	row, err := toReservationRow(res)
	if err != nil {
		return err
	}
	query := `UPDATE reservations SET
		hotel_code = :hotel_code, hotel_name = :hotel_name, rate_plan_code = :rate_plan_code,
		room_type_code = :room_type_code, check_in_date = :check_in_date, check_out_date = :check_out_date,
		number_of_rooms = :number_of_rooms, guests = :guests, age_code_summary = :age_code_summary,
		total_amount = :total_amount, currency_code = :currency_code, email = :email, status = :status,
		inventory_held = :inventory_held, cancelled_guest = :cancelled_guest, cancelled_at = :cancelled_at,
		updated_at = :updated_at
		WHERE id = :id AND status <> 'cancelled'`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.missingOrCancelled(ctx, res.ID)
	}
	return nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, from, to reservation.Status, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), at, id, string(from))
	if err != nil {
		return fmt.Errorf("予約状態の更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		if err := r.missingOrCancelled(ctx, id); !errors.Is(err, reservation.ErrReservationAlreadyCancelled) {
			return err
		}
		return reservation.ErrReservationNotPending
	}
	return nil
}

func (r *ReservationRepository) SetInventoryHeld(ctx context.Context, id string, held bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET inventory_held = $1, updated_at = NOW() WHERE id = $2`, held, id)
	if err != nil {
		return fmt.Errorf("在庫確保状態の更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return reservation.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) DeletePending(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("保留中予約の削除に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return reservation.ErrReservationNotPending
	}
	return nil
}

func (r *ReservationRepository) GetStalePending(ctx context.Context, olderThan time.Duration) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = 'pending' AND created_at < $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, time.Now().Add(-olderThan)); err != nil {
		return nil, fmt.Errorf("保留中予約の取得に失敗: %w", err)
	}
	result := make([]*reservation.Reservation, 0, len(rows))
	for i := range rows {
		res, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, nil
}

// missingOrCancelled は更新対象がなかった理由を判定する
func (r *ReservationRepository) missingOrCancelled(ctx context.Context, id string) error {
	var status string
	if err := r.db.GetContext(ctx, &status, `SELECT status FROM reservations WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrReservationNotFound
		}
		return fmt.Errorf("予約取得に失敗: %w", err)
	}
	if reservation.Status(status) == reservation.StatusCancelled {
		return reservation.ErrReservationAlreadyCancelled
	}
	return reservation.ErrReservationNotPending
}

func toReservationRow(res *reservation.Reservation) (*reservationRow, error) {
	guests, err := json.Marshal(res.Guests)
	if err != nil {
		return nil, fmt.Errorf("宿泊者のシリアライズに失敗: %w", err)
	}
	summary, err := json.Marshal(res.AgeCodeSummary)
	if err != nil {
		return nil, fmt.Errorf("年齢区分のシリアライズに失敗: %w", err)
	}
	row := &reservationRow{
		ID: res.ID, PaymentMethod: string(res.PaymentMethod),
		HotelCode: res.HotelCode, HotelName: res.HotelName,
		RatePlanCode: res.RatePlanCode, RoomTypeCode: res.RoomTypeCode,
		CheckInDate: res.CheckInDate, CheckOutDate: res.CheckOutDate,
		NumberOfRooms: res.NumberOfRooms, Guests: guests, AgeCodeSummary: summary,
		TotalAmount: res.TotalAmount, CurrencyCode: res.CurrencyCode, Email: res.Email,
		Status: string(res.Status), InventoryHeld: res.InventoryHeld,
		CancelledAt: res.CancelledAt, CreatedAt: res.CreatedAt, UpdatedAt: res.UpdatedAt,
	}
	if res.CancelledGuest != nil {
		b, err := json.Marshal(res.CancelledGuest)
		if err != nil {
			return nil, fmt.Errorf("キャンセル時宿泊者のシリアライズに失敗: %w", err)
		}
		row.CancelledGuest = types.NullJSONText{JSONText: b, Valid: true}
	}
	return row, nil
}

func (row *reservationRow) toEntity() (*reservation.Reservation, error) {
	res := &reservation.Reservation{
		ID: row.ID, PaymentMethod: reservation.PaymentMethod(row.PaymentMethod),
		HotelCode: row.HotelCode, HotelName: row.HotelName,
		RatePlanCode: row.RatePlanCode, RoomTypeCode: row.RoomTypeCode,
		CheckInDate: stay.DateOf(row.CheckInDate), CheckOutDate: stay.DateOf(row.CheckOutDate),
		NumberOfRooms: row.NumberOfRooms, TotalAmount: row.TotalAmount,
		CurrencyCode: row.CurrencyCode, Email: row.Email,
		Status: reservation.Status(row.Status), InventoryHeld: row.InventoryHeld,
		CancelledAt: row.CancelledAt, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	if err := row.Guests.Unmarshal(&res.Guests); err != nil {
		return nil, fmt.Errorf("宿泊者の読み込みに失敗: %w", err)
	}
	if err := row.AgeCodeSummary.Unmarshal(&res.AgeCodeSummary); err != nil {
		return nil, fmt.Errorf("年齢区分の読み込みに失敗: %w", err)
	}
	if row.CancelledGuest.Valid {
		var g reservation.Guest
		if err := row.CancelledGuest.Unmarshal(&g); err != nil {
			return nil, fmt.Errorf("キャンセル時宿泊者の読み込みに失敗: %w", err)
		}
		res.CancelledGuest = &g
	}
	return res, nil
}

var _ reservation.Repository = (*ReservationRepository)(nil)

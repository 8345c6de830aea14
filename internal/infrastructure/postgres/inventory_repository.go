package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/transaction"
)

type inventoryRow struct {
	HotelCode   string    `db:"hotel_code"`
	InvTypeCode string    `db:"inv_type_code"`
	Date        time.Time `db:"date"`
	Count       int       `db:"count"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row *inventoryRow) toEntity() *inventory.Record {
	return &inventory.Record{
		HotelCode:   row.HotelCode,
		InvTypeCode: row.InvTypeCode,
		Date:        stay.DateOf(row.Date),
		Count:       row.Count,
		UpdatedAt:   row.UpdatedAt,
	}
}

type InventoryRepository struct{ db *sqlx.DB }

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// LockRange は対象日の在庫行を SELECT ... FOR UPDATE で日付順にロックする
// 存在しない日付は結果に含まれない
func (r *InventoryRepository) LockRange(ctx context.Context, tx transaction.Tx, key inventory.Key, dates []time.Time) ([]*inventory.Record, error) {
	sqlxTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}
	var rows []inventoryRow
	query := `SELECT hotel_code, inv_type_code, date, count, updated_at FROM inventories
		WHERE hotel_code = $1 AND inv_type_code = $2 AND date = ANY($3::date[])
		ORDER BY date FOR UPDATE`
	if err := sqlxTx.SelectContext(ctx, &rows, query, key.HotelCode, key.InvTypeCode, pq.Array(dateStrings(dates))); err != nil {
		return nil, fmt.Errorf("在庫のロックに失敗: %w", err)
	}
	return toRecords(rows), nil
}

// ApplyChanges は増減をまとめて1回の UPDATE で反映する
func (r *InventoryRepository) ApplyChanges(ctx context.Context, tx transaction.Tx, changes []inventory.Change) error {
	sqlxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	hotels := make([]string, len(changes))
	types := make([]string, len(changes))
	dates := make([]string, len(changes))
	deltas := make([]int64, len(changes))
	for i, c := range changes {
		hotels[i] = c.HotelCode
		types[i] = c.InvTypeCode
		dates[i] = stay.Format(c.Date)
		deltas[i] = int64(c.Delta)
	}
	query := `UPDATE inventories AS i
		SET count = i.count + c.delta, updated_at = NOW()
		FROM UNNEST($1::text[], $2::text[], $3::date[], $4::int[]) AS c(hotel_code, inv_type_code, date, delta)
		WHERE i.hotel_code = c.hotel_code AND i.inv_type_code = c.inv_type_code AND i.date = c.date`
	result, err := sqlxTx.ExecContext(ctx, query,
		pq.Array(hotels), pq.Array(types), pq.Array(dates), pq.Array(deltas))
	if err != nil {
		return fmt.Errorf("在庫の更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("在庫の更新件数の取得に失敗: %w", err)
	}
	if rows != int64(len(changes)) {
		return fmt.Errorf("在庫の更新件数が一致しません: 期待値 %d, 実際 %d", len(changes), rows)
	}
	return nil
}

func (r *InventoryRepository) ListRange(ctx context.Context, key inventory.Key, from, to time.Time) ([]*inventory.Record, error) {
	var rows []inventoryRow
	query := `SELECT hotel_code, inv_type_code, date, count, updated_at FROM inventories
		WHERE hotel_code = $1 AND inv_type_code = $2 AND date >= $3::date AND date < $4::date
		ORDER BY date`
	if err := r.db.SelectContext(ctx, &rows, query, key.HotelCode, key.InvTypeCode, stay.Format(from), stay.Format(to)); err != nil {
		return nil, fmt.Errorf("在庫の取得に失敗: %w", err)
	}
	return toRecords(rows), nil
}

func dateStrings(dates []time.Time) []string {
	s := make([]string, len(dates))
	for i, d := range dates {
		s[i] = stay.Format(d)
	}
	return s
}

func toRecords(rows []inventoryRow) []*inventory.Record {
	records := make([]*inventory.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].toEntity()
	}
	return records
}

var _ inventory.Repository = (*InventoryRepository)(nil)

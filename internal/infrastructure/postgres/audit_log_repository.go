package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
)

type auditLogRow struct {
	ID            int64              `db:"id"`
	ReservationID string             `db:"reservation_id"`
	Process       string             `db:"process"`
	Input         types.NullJSONText `db:"input"`
	XMLSent       string             `db:"xml_sent"`
	RawResponse   string             `db:"raw_response"`
	Status        string             `db:"status"`
	ErrorMessage  string             `db:"error_message"`
	CreatedAt     time.Time          `db:"created_at"`
}

func (row *auditLogRow) toEntity() *auditlog.Entry {
	e := &auditlog.Entry{
		ID:            row.ID,
		ReservationID: row.ReservationID,
		Process:       auditlog.Process(row.Process),
		XMLSent:       row.XMLSent,
		RawResponse:   row.RawResponse,
		Status:        auditlog.Status(row.Status),
		ErrorMessage:  row.ErrorMessage,
		CreatedAt:     row.CreatedAt,
	}
	if row.Input.Valid {
		e.Input = []byte(row.Input.JSONText)
	}
	return e
}

// AuditLogRepository は監査ログを追記専用で保存する
type AuditLogRepository struct{ db *sqlx.DB }

func NewAuditLogRepository(db *sqlx.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Append(ctx context.Context, entry *auditlog.Entry) error {
	var input types.NullJSONText
	if len(entry.Input) > 0 {
		input = types.NullJSONText{JSONText: types.JSONText(entry.Input), Valid: true}
	}
	query := `INSERT INTO reservation_logs
		(reservation_id, process, input, xml_sent, raw_response, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		entry.ReservationID, string(entry.Process), input, entry.XMLSent, entry.RawResponse,
		string(entry.Status), entry.ErrorMessage, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("監査ログの記録に失敗: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) ListByReservationID(ctx context.Context, reservationID string) ([]*auditlog.Entry, error) {
	var rows []auditLogRow
	query := `SELECT id, reservation_id, process, input, xml_sent, raw_response, status, error_message, created_at
		FROM reservation_logs WHERE reservation_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query, reservationID); err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗: %w", err)
	}
	entries := make([]*auditlog.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toEntity()
	}
	return entries, nil
}

var _ auditlog.Repository = (*AuditLogRepository)(nil)

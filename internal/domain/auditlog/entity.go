// Package auditlog は予約操作の監査ログ（追記専用）を扱う
package auditlog

import (
	"encoding/json"
	"time"
)

// Process は記録対象の操作種別
type Process string

const (
	ProcessReservation Process = "Reservation"
	ProcessAmend       Process = "Amend Reservation"
	ProcessCancel      Process = "Cancellation"
)

// Status は操作の結果
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailure Status = "Failure"
)

// Entry は監査ログの1レコード。一度記録したら更新・削除しない
type Entry struct {
	ID            int64
	ReservationID string
	Process       Process
	Input         json.RawMessage
	XMLSent       string
	RawResponse   string
	Status        Status
	ErrorMessage  string
	CreatedAt     time.Time
}

// NewEntry は監査ログを作成する。cause が nil なら成功として記録する
func NewEntry(process Process, reservationID string, input any, xmlSent, rawResponse []byte, cause error) *Entry {
	e := &Entry{
		ReservationID: reservationID,
		Process:       process,
		Input:         marshalInput(input),
		XMLSent:       string(xmlSent),
		RawResponse:   string(rawResponse),
		Status:        StatusSuccess,
		CreatedAt:     time.Now(),
	}
	if cause != nil {
		e.Status = StatusFailure
		e.ErrorMessage = cause.Error()
	}
	return e
}

func marshalInput(input any) json.RawMessage {
	if input == nil {
		return nil
	}
	if raw, ok := input.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	return b
}

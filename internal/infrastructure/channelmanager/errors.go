package channelmanager

import (
	"errors"
	"fmt"
)

var (
	ErrChannelManager        = errors.New("チャネルマネージャーとの連携に失敗しました")
	ErrEndpointNotConfigured = errors.New("チャネルマネージャーのエンドポイントが設定されていません")
	ErrUnexpectedStatus      = errors.New("チャネルマネージャーが異常なステータスを返しました")
	ErrRejected              = errors.New("チャネルマネージャーが予約を受け付けませんでした")
)

// Error はチャネルマネージャーとの通信失敗・拒否を表す
// 応答本文は監査ログ用に保持するが、エラーメッセージには含めない
type Error struct {
	Operation  string
	StatusCode int
	Body       []byte
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s, status=%d): %v", ErrChannelManager, e.Operation, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %v", ErrChannelManager, e.Operation, e.Cause)
}

// Unwrap は ErrChannelManager と原因の両方を返す
func (e *Error) Unwrap() []error {
	return []error{ErrChannelManager, e.Cause}
}

// NewRejectedError は HTTP 2xx だが応答内容で拒否された場合のエラーを作成する
func NewRejectedError(operation string, statusCode int, body []byte, summary string) *Error {
	return &Error{
		Operation:  operation,
		StatusCode: statusCode,
		Body:       body,
		Cause:      fmt.Errorf("%w: %s", ErrRejected, summary),
	}
}

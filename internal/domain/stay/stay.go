// Package stay は宿泊期間（チェックイン日〜チェックアウト日）の日付計算を扱う
package stay

import "time"

// DateLayout は日付のみを表すフォーマット（YYYY-MM-DD）
const DateLayout = "2006-01-02"

// DateOf は時刻情報を切り捨てた日付（UTC 0時）を返す
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Parse は YYYY-MM-DD 形式の文字列を日付に変換する
func Parse(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Format は日付を YYYY-MM-DD 形式で返す
func Format(t time.Time) string {
	return DateOf(t).Format(DateLayout)
}

// Nights は [checkIn, checkOut) に含まれる宿泊日を返す（チェックアウト日は含まない）
func Nights(checkIn, checkOut time.Time) []time.Time {
	in, out := DateOf(checkIn), DateOf(checkOut)
	var dates []time.Time
	for d := in; d.Before(out); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

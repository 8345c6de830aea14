package inventory

import (
	"sort"
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

type slot struct {
	key  Key
	date string
}

type ledgerEntry struct {
	record *Record
	delta  int
}

// Ledger はロック済みの在庫レコードに対する増減をメモリ上で計算する
// 失敗した操作は何も反映しないため、呼び出し側は Changes をそのまま書き込める
type Ledger struct {
	entries map[slot]*ledgerEntry
}

// NewLedger は空の Ledger を作成する
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[slot]*ledgerEntry)}
}

// Load はレコードを読み込む（既に読み込まれた日付は無視する）
func (l *Ledger) Load(records []*Record) {
	for _, r := range records {
		s := slot{key: r.Key(), date: stay.Format(r.Date)}
		if _, ok := l.entries[s]; !ok {
			l.entries[s] = &ledgerEntry{record: r}
		}
	}
}

// Available は計算中の在庫数を返す
func (l *Ledger) Available(key Key, date time.Time) (int, bool) {
	e, ok := l.entries[slot{key: key, date: stay.Format(date)}]
	if !ok {
		return 0, false
	}
	return e.record.Count + e.delta, true
}

// Apply は在庫調整を1件適用する
func (l *Ledger) Apply(s Step) *AdjustmentResult {
	if s.Direction == DirectionIncrement {
		return l.increment(s.Adjustment)
	}
	return l.decrement(s.Adjustment)
}

// decrement は全宿泊日を検証してから減算する（全日成功か何もしないか）
func (l *Ledger) decrement(a Adjustment) *AdjustmentResult {
	dates := a.Dates()
	entries := make([]*ledgerEntry, len(dates))
	matched := 0
	for i, d := range dates {
		if e, ok := l.entries[slot{key: a.Key, date: stay.Format(d)}]; ok {
			entries[i] = e
			matched++
		}
	}
	if matched == 0 {
		return notFound(a.Key, nil)
	}
	for i := range dates {
		if entries[i] == nil {
			return notFound(a.Key, &dates[i])
		}
	}
	for i, d := range dates {
		if available := entries[i].record.Count + entries[i].delta; available < a.Rooms {
			return insufficient(a.Key, d, available, a.Rooms)
		}
	}
	for _, e := range entries {
		e.delta -= a.Rooms
	}
	return Succeeded()
}

// increment は存在するレコードすべてに加算する
func (l *Ledger) increment(a Adjustment) *AdjustmentResult {
	var entries []*ledgerEntry
	for _, d := range a.Dates() {
		if e, ok := l.entries[slot{key: a.Key, date: stay.Format(d)}]; ok {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return notFound(a.Key, nil)
	}
	for _, e := range entries {
		e.delta += a.Rooms
	}
	return Succeeded()
}

// Changes は差分のあるレコードの増減をキー・日付順で返す
func (l *Ledger) Changes() []Change {
	var changes []Change
	for _, e := range l.entries {
		if e.delta == 0 {
			continue
		}
		changes = append(changes, Change{
			HotelCode:   e.record.HotelCode,
			InvTypeCode: e.record.InvTypeCode,
			Date:        stay.DateOf(e.record.Date),
			Delta:       e.delta,
		})
	}
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.HotelCode != b.HotelCode {
			return a.HotelCode < b.HotelCode
		}
		if a.InvTypeCode != b.InvTypeCode {
			return a.InvTypeCode < b.InvTypeCode
		}
		return a.Date.Before(b.Date)
	})
	return changes
}

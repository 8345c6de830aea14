package reservation

import (
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

// AgeCode は OTA の AgeQualifyingCode を表す
type AgeCode string

const (
	AgeCodeInfant AgeCode = "7"
	AgeCodeChild  AgeCode = "8"
	AgeCodeAdult  AgeCode = "10"
)

// AgeCodes は数値の昇順に並べた年齢区分コード
var AgeCodes = []AgeCode{AgeCodeInfant, AgeCodeChild, AgeCodeAdult}

// AgeCodeSummary は年齢区分ごとの人数
type AgeCodeSummary map[AgeCode]int

// Total は合計人数を返す
func (s AgeCodeSummary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// AgeOn は today 時点の満年齢を返す
func AgeOn(dateOfBirth, today time.Time) int {
	b, t := stay.DateOf(dateOfBirth), stay.DateOf(today)
	age := t.Year() - b.Year()
	if t.Month() < b.Month() || (t.Month() == b.Month() && t.Day() < b.Day()) {
		age--
	}
	return age
}

// ClassifyAge は満年齢から年齢区分コードを返す
// 2歳以下は幼児、12歳以下は子供、それ以外は大人
func ClassifyAge(age int) AgeCode {
	switch {
	case age <= 2:
		return AgeCodeInfant
	case age <= 12:
		return AgeCodeChild
	default:
		return AgeCodeAdult
	}
}

// SummarizeAges は宿泊者を年齢区分ごとに集計する
func SummarizeAges(guests []Guest, today time.Time) AgeCodeSummary {
	summary := make(AgeCodeSummary, len(AgeCodes))
	for _, g := range guests {
		summary[ClassifyAge(AgeOn(g.DateOfBirth, today))]++
	}
	return summary
}

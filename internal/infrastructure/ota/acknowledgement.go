package ota

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Acknowledgement はチャネルマネージャーの応答（OTA_*RS）の解釈結果
type Acknowledgement struct {
	XMLName   xml.Name
	EchoToken string     `xml:"EchoToken,attr"`
	Success   *struct{}  `xml:"Success"`
	Warnings  []Warning  `xml:"Warnings>Warning"`
	Errors    []AckError `xml:"Errors>Error"`
	// Unparsed は応答本文が XML として解釈できなかったことを示す
	Unparsed bool `xml:"-"`
}

// Warning は応答に含まれる警告
type Warning struct {
	Type      string `xml:"Type,attr"`
	ShortText string `xml:"ShortText,attr"`
	Text      string `xml:",chardata"`
}

// AckError は応答に含まれるエラー
type AckError struct {
	Type      string `xml:"Type,attr"`
	Code      string `xml:"Code,attr"`
	ShortText string `xml:"ShortText,attr"`
	Text      string `xml:",chardata"`
}

// Accepted は応答が受理を表すかを返す
// HTTP 2xx で返された応答は Errors 要素がない限り受理とみなす
func (a *Acknowledgement) Accepted() bool {
	return len(a.Errors) == 0
}

// ErrorSummary は Errors 要素の内容を1行にまとめる
func (a *Acknowledgement) ErrorSummary() string {
	parts := make([]string, 0, len(a.Errors))
	for _, e := range a.Errors {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			text = e.ShortText
		}
		if e.Code != "" {
			text = e.Code + " " + text
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, "; ")
}

// ParseAcknowledgement は HTTP 2xx の応答本文を解釈する
// 空の本文や XML として解釈できない本文は受理として扱う
func ParseAcknowledgement(raw []byte) *Acknowledgement {
	ack := &Acknowledgement{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ack
	}
	if err := xml.Unmarshal(raw, ack); err != nil {
		return &Acknowledgement{Unparsed: true}
	}
	return ack
}

package ota

import "encoding/xml"

// HotelResNotifRQ は予約作成通知（OTA_HotelResNotifRQ）
type HotelResNotifRQ struct {
	XMLName           xml.Name          `xml:"OTA_HotelResNotifRQ"`
	Xmlns             string            `xml:"xmlns,attr"`
	EchoToken         string            `xml:"EchoToken,attr"`
	TimeStamp         string            `xml:"TimeStamp,attr"`
	Version           string            `xml:"Version,attr"`
	ResStatus         string            `xml:"ResStatus,attr"`
	HotelReservations HotelReservations `xml:"HotelReservations"`
}

// HotelResModifyNotifRQ は予約変更通知（OTA_HotelResModifyNotifRQ）
type HotelResModifyNotifRQ struct {
	XMLName          xml.Name         `xml:"OTA_HotelResModifyNotifRQ"`
	Xmlns            string           `xml:"xmlns,attr"`
	EchoToken        string           `xml:"EchoToken,attr"`
	TimeStamp        string           `xml:"TimeStamp,attr"`
	Version          string           `xml:"Version,attr"`
	HotelResModifies HotelResModifies `xml:"HotelResModifies"`
}

// CancelRQ は予約キャンセル要求（OTA_CancelRQ）
type CancelRQ struct {
	XMLName      xml.Name     `xml:"OTA_CancelRQ"`
	Xmlns        string       `xml:"xmlns,attr"`
	EchoToken    string       `xml:"EchoToken,attr"`
	TimeStamp    string       `xml:"TimeStamp,attr"`
	Version      string       `xml:"Version,attr"`
	CancelType   string       `xml:"CancelType,attr"`
	UniqueID     UniqueID     `xml:"UniqueID"`
	Verification Verification `xml:"Verification"`
}

type HotelReservations struct {
	HotelReservation []HotelReservation `xml:"HotelReservation"`
}

type HotelResModifies struct {
	HotelResModify []HotelReservation `xml:"HotelResModify"`
}

type HotelReservation struct {
	CreateDateTime string        `xml:"CreateDateTime,attr,omitempty"`
	ResStatus      string        `xml:"ResStatus,attr"`
	UniqueID       UniqueID      `xml:"UniqueID"`
	RoomStays      RoomStays     `xml:"RoomStays"`
	ResGuests      ResGuests     `xml:"ResGuests"`
	ResGlobalInfo  ResGlobalInfo `xml:"ResGlobalInfo"`
}

type UniqueID struct {
	Type string `xml:"Type,attr"`
	ID   string `xml:"ID,attr"`
}

type RoomStays struct {
	RoomStay []RoomStay `xml:"RoomStay"`
}

type RoomStay struct {
	RoomTypes         RoomTypes         `xml:"RoomTypes"`
	RatePlans         RatePlans         `xml:"RatePlans"`
	GuestCounts       GuestCounts       `xml:"GuestCounts"`
	TimeSpan          TimeSpan          `xml:"TimeSpan"`
	Total             Total             `xml:"Total"`
	BasicPropertyInfo BasicPropertyInfo `xml:"BasicPropertyInfo"`
}

type RoomTypes struct {
	RoomType []RoomType `xml:"RoomType"`
}

type RoomType struct {
	RoomTypeCode  string `xml:"RoomTypeCode,attr"`
	NumberOfUnits int    `xml:"NumberOfUnits,attr"`
}

type RatePlans struct {
	RatePlan []RatePlan `xml:"RatePlan"`
}

type RatePlan struct {
	RatePlanCode string `xml:"RatePlanCode,attr"`
}

type GuestCounts struct {
	GuestCount []GuestCount `xml:"GuestCount"`
}

type GuestCount struct {
	AgeQualifyingCode string `xml:"AgeQualifyingCode,attr"`
	Count             int    `xml:"Count,attr"`
}

type TimeSpan struct {
	Start string `xml:"Start,attr"`
	End   string `xml:"End,attr"`
}

type Total struct {
	AmountBeforeTax string `xml:"AmountBeforeTax,attr"`
	CurrencyCode    string `xml:"CurrencyCode,attr"`
}

type BasicPropertyInfo struct {
	HotelCode string `xml:"HotelCode,attr"`
	HotelName string `xml:"HotelName,attr,omitempty"`
}

type ResGuests struct {
	ResGuest []ResGuest `xml:"ResGuest"`
}

type ResGuest struct {
	ResGuestRPH       int      `xml:"ResGuestRPH,attr"`
	AgeQualifyingCode string   `xml:"AgeQualifyingCode,attr"`
	Profiles          Profiles `xml:"Profiles"`
}

type Profiles struct {
	ProfileInfo ProfileInfo `xml:"ProfileInfo"`
}

type ProfileInfo struct {
	Profile Profile `xml:"Profile"`
}

type Profile struct {
	ProfileType string   `xml:"ProfileType,attr"`
	Customer    Customer `xml:"Customer"`
}

type Customer struct {
	BirthDate  string     `xml:"BirthDate,attr"`
	PersonName PersonName `xml:"PersonName"`
	Email      string     `xml:"Email,omitempty"`
}

type PersonName struct {
	GivenName string `xml:"GivenName"`
	Surname   string `xml:"Surname"`
}

type ResGlobalInfo struct {
	HotelReservationIDs HotelReservationIDs `xml:"HotelReservationIDs"`
}

type HotelReservationIDs struct {
	HotelReservationID []HotelReservationID `xml:"HotelReservationID"`
}

type HotelReservationID struct {
	ResIDType  string `xml:"ResID_Type,attr"`
	ResIDValue string `xml:"ResID_Value,attr"`
}

// Verification はキャンセル対象の照合情報
// 部屋・料金プラン情報は OTA の拡張領域（TPA_Extensions）に載せる
type Verification struct {
	PersonName          PersonName        `xml:"PersonName"`
	ReservationTimeSpan TimeSpan          `xml:"ReservationTimeSpan"`
	BasicPropertyInfo   BasicPropertyInfo `xml:"BasicPropertyInfo"`
	TPAExtensions       TPAExtensions     `xml:"TPA_Extensions"`
}

type TPAExtensions struct {
	RoomStay RoomStay `xml:"RoomStay"`
}

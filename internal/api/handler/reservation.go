package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/application"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

// warningNotification は予約は成功したが通知に失敗した場合の警告
const warningNotification = "予約は完了しましたが、確認メールの送信に失敗しました"

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type GuestRequest struct {
	FirstName   string `json:"first_name" validate:"required" example:"Taro"`
	LastName    string `json:"last_name" validate:"required" example:"Yamada"`
	DateOfBirth string `json:"date_of_birth" validate:"required" example:"1990-01-01"`
}

type StayRequest struct {
	HotelCode     string         `json:"hotel_code" validate:"required" example:"HTL001"`
	HotelName     string         `json:"hotel_name" example:"Grand Hotel Tokyo"`
	RatePlanCode  string         `json:"rate_plan_code" validate:"required" example:"BAR"`
	RoomTypeCode  string         `json:"room_type_code" validate:"required" example:"STD"`
	CheckInDate   string         `json:"check_in_date" validate:"required" example:"2025-07-01"`
	CheckOutDate  string         `json:"check_out_date" validate:"required" example:"2025-07-03"`
	NumberOfRooms int            `json:"number_of_rooms" validate:"min=1" example:"1"`
	Guests        []GuestRequest `json:"guests" validate:"required,min=1,dive"`
	TotalAmount   float64        `json:"total_amount" validate:"gte=0" example:"30000"`
	CurrencyCode  string         `json:"currency_code" validate:"required,len=3" example:"JPY"`
	Email         string         `json:"email" validate:"omitempty,email" example:"taro@example.com"`
}

type CreateReservationRequest struct {
	ReservationID    string `json:"reservation_id" example:"RES-2025-0001"`
	PaymentMethod    string `json:"payment_method" validate:"required" example:"payAtHotel"`
	PaymentSucceeded bool   `json:"payment_succeeded"`
	StayRequest
}

type CancelReservationRequest struct {
	Reason string `json:"reason" example:"予定変更"`
}

type CreateReservationResponse struct {
	ReservationID  string         `json:"reservation_id"`
	AgeCodeSummary map[string]int `json:"age_code_summary"`
	Warning        string         `json:"warning,omitempty"`
}

type AmendReservationResponse struct {
	AgeCodeSummary map[string]int `json:"age_code_summary"`
	Warning        string         `json:"warning,omitempty"`
}

type CancelReservationResponse struct {
	ReservationID string `json:"reservation_id"`
	Warning       string `json:"warning,omitempty"`
}

type GuestResponse struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
}

type ReservationResponse struct {
	ID             string          `json:"id"`
	PaymentMethod  string          `json:"payment_method"`
	HotelCode      string          `json:"hotel_code"`
	HotelName      string          `json:"hotel_name"`
	RatePlanCode   string          `json:"rate_plan_code"`
	RoomTypeCode   string          `json:"room_type_code"`
	CheckInDate    string          `json:"check_in_date"`
	CheckOutDate   string          `json:"check_out_date"`
	NumberOfRooms  int             `json:"number_of_rooms"`
	Guests         []GuestResponse `json:"guests"`
	AgeCodeSummary map[string]int  `json:"age_code_summary"`
	TotalAmount    float64         `json:"total_amount"`
	CurrencyCode   string          `json:"currency_code"`
	Email          string          `json:"email,omitempty"`
	Status         string          `json:"status"`
	CancelledGuest *GuestResponse  `json:"cancelled_guest,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AuditLogResponse は監査ログ1件。送受信した XML 本文は含めない
type AuditLogResponse struct {
	ID           int64     `json:"id"`
	Process      string    `json:"process"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAgeCodeSummary(s reservation.AgeCodeSummary) map[string]int {
	m := make(map[string]int, len(reservation.AgeCodes))
	for _, code := range reservation.AgeCodes {
		m[string(code)] = s[code]
	}
	return m
}

func toGuestResponse(g reservation.Guest) GuestResponse {
	return GuestResponse{FirstName: g.FirstName, LastName: g.LastName, DateOfBirth: stay.Format(g.DateOfBirth)}
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	guests := make([]GuestResponse, len(r.Guests))
	for i, g := range r.Guests {
		guests[i] = toGuestResponse(g)
	}
	resp := ReservationResponse{
		ID: r.ID, PaymentMethod: string(r.PaymentMethod),
		HotelCode: r.HotelCode, HotelName: r.HotelName,
		RatePlanCode: r.RatePlanCode, RoomTypeCode: r.RoomTypeCode,
		CheckInDate: stay.Format(r.CheckInDate), CheckOutDate: stay.Format(r.CheckOutDate),
		NumberOfRooms: r.NumberOfRooms, Guests: guests,
		AgeCodeSummary: toAgeCodeSummary(r.AgeCodeSummary),
		TotalAmount:    r.TotalAmount, CurrencyCode: r.CurrencyCode, Email: r.Email,
		Status: string(r.Status), CancelledAt: r.CancelledAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.CancelledGuest != nil {
		g := toGuestResponse(*r.CancelledGuest)
		resp.CancelledGuest = &g
	}
	return resp
}

func toAuditLogResponse(e *auditlog.Entry) AuditLogResponse {
	return AuditLogResponse{
		ID: e.ID, Process: string(e.Process), Status: string(e.Status),
		ErrorMessage: e.ErrorMessage, CreatedAt: e.CreatedAt,
	}
}

func parseDate(field, value string) (time.Time, error) {
	d, err := stay.Parse(value)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, field+" は YYYY-MM-DD 形式で指定してください")
	}
	return d, nil
}

func (req *StayRequest) toStayDetails() (reservation.StayDetails, error) {
	checkIn, err := parseDate("check_in_date", req.CheckInDate)
	if err != nil {
		return reservation.StayDetails{}, err
	}
	checkOut, err := parseDate("check_out_date", req.CheckOutDate)
	if err != nil {
		return reservation.StayDetails{}, err
	}
	guests := make([]reservation.Guest, len(req.Guests))
	for i, g := range req.Guests {
		dob, err := parseDate("date_of_birth", g.DateOfBirth)
		if err != nil {
			return reservation.StayDetails{}, err
		}
		guests[i] = reservation.Guest{FirstName: g.FirstName, LastName: g.LastName, DateOfBirth: dob}
	}
	return reservation.StayDetails{
		HotelCode:     req.HotelCode,
		HotelName:     req.HotelName,
		RatePlanCode:  req.RatePlanCode,
		RoomTypeCode:  req.RoomTypeCode,
		CheckInDate:   checkIn,
		CheckOutDate:  checkOut,
		NumberOfRooms: req.NumberOfRooms,
		Guests:        guests,
		TotalAmount:   req.TotalAmount,
		CurrencyCode:  req.CurrencyCode,
		Email:         req.Email,
	}, nil
}

// warningFor は通知の失敗であれば警告文を返す。それ以外のエラーはそのまま返す
func warningFor(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	var notifyErr *application.NotificationError
	if errors.As(err, &notifyErr) {
		return warningNotification, nil
	}
	return "", err
}

// Create godoc
// @Summary 予約を作成
// @Description 在庫を確保し、チャネルマネージャーに予約を送信します
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} CreateReservationResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "在庫不足・予約ID重複"
// @Failure 502 {object} map[string]string "チャネルマネージャーとの連携失敗"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	details, err := req.toStayDetails()
	if err != nil {
		return err
	}

	result, err := h.service.CreateReservation(c.Request().Context(), reservation.BookingInput{
		ReservationID:    req.ReservationID,
		PaymentMethod:    req.PaymentMethod,
		PaymentSucceeded: req.PaymentSucceeded,
		StayDetails:      details,
	})
	warning, err := warningFor(err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CreateReservationResponse{
		ReservationID:  result.ReservationID,
		AgeCodeSummary: toAgeCodeSummary(result.AgeCodeSummary),
		Warning:        warning,
	})
}

// Amend godoc
// @Summary 予約を変更
// @Description 宿泊内容を変更し、在庫を差し替えます
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body StayRequest true "変更後の宿泊内容"
// @Success 200 {object} AmendReservationResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "キャンセル済み・在庫不足"
// @Failure 422 {object} map[string]string "チェックイン日を過ぎている"
// @Router /reservations/{id} [put]
func (h *ReservationHandler) Amend(c echo.Context) error {
	var req StayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	details, err := req.toStayDetails()
	if err != nil {
		return err
	}

	result, err := h.service.AmendReservation(c.Request().Context(), c.Param("id"), details)
	warning, err := warningFor(err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AmendReservationResponse{
		AgeCodeSummary: toAgeCodeSummary(result.AgeCodeSummary),
		Warning:        warning,
	})
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description チャネルマネージャーにキャンセルを送信し、在庫を戻します
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body CancelReservationRequest false "キャンセル理由"
// @Success 200 {object} CancelReservationResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "キャンセル済み"
// @Failure 422 {object} map[string]string "チェックイン日を過ぎている"
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	var req CancelReservationRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
		}
	}

	result, err := h.service.CancelReservation(c.Request().Context(), c.Param("id"), application.CancelInput{Reason: req.Reason})
	warning, err := warningFor(err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CancelReservationResponse{
		ReservationID: result.ReservationID,
		Warning:       warning,
	})
}

// GetByID godoc
// @Summary 予約を取得
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} map[string]string
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	r, err := h.service.GetReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// ListLogs godoc
// @Summary 予約の監査ログを取得
// @Description 作成に失敗した予約の記録も含め、記録順に返します
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {array} AuditLogResponse
// @Router /reservations/{id}/logs [get]
func (h *ReservationHandler) ListLogs(c echo.Context) error {
	entries, err := h.service.ListReservationLogs(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	resp := make([]AuditLogResponse, len(entries))
	for i, e := range entries {
		resp[i] = toAuditLogResponse(e)
	}
	return c.JSON(http.StatusOK, resp)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

type InventoryHandler struct {
	service InventoryServiceInterface
}

func NewInventoryHandler(s InventoryServiceInterface) *InventoryHandler {
	return &InventoryHandler{service: s}
}

type AvailabilityQuery struct {
	HotelCode    string `query:"hotel_code" validate:"required"`
	RoomTypeCode string `query:"room_type_code" validate:"required"`
	From         string `query:"from" validate:"required"`
	To           string `query:"to" validate:"required"`
}

type DailyAvailabilityResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AvailabilityResponse struct {
	HotelCode    string                      `json:"hotel_code"`
	RoomTypeCode string                      `json:"room_type_code"`
	Availability []DailyAvailabilityResponse `json:"availability"`
}

// GetAvailability godoc
// @Summary 在庫数を取得
// @Description [from, to) の日別在庫数を返します（在庫未登録の日は含みません）
// @Tags inventory
// @Produce json
// @Param hotel_code query string true "ホテルコード"
// @Param room_type_code query string true "部屋タイプコード"
// @Param from query string true "開始日 (YYYY-MM-DD)"
// @Param to query string true "終了日 (YYYY-MM-DD, 含まない)"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} map[string]string
// @Router /inventory [get]
func (h *InventoryHandler) GetAvailability(c echo.Context) error {
	var q AvailabilityQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	from, err := parseDate("from", q.From)
	if err != nil {
		return err
	}
	to, err := parseDate("to", q.To)
	if err != nil {
		return err
	}

	key := inventory.Key{HotelCode: q.HotelCode, InvTypeCode: q.RoomTypeCode}
	days, err := h.service.GetAvailability(c.Request().Context(), key, from, to)
	if err != nil {
		return err
	}

	resp := AvailabilityResponse{
		HotelCode:    q.HotelCode,
		RoomTypeCode: q.RoomTypeCode,
		Availability: make([]DailyAvailabilityResponse, len(days)),
	}
	for i, d := range days {
		resp.Availability[i] = DailyAvailabilityResponse{Date: stay.Format(d.Date), Count: d.Count}
	}
	return c.JSON(http.StatusOK, resp)
}

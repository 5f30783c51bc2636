package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/api"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/application"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
)

type ItineraryHandler struct {
	catalog  CatalogServiceInterface
	seatMaps SeatMapServiceInterface
}

func NewItineraryHandler(catalog CatalogServiceInterface, seatMaps SeatMapServiceInterface) *ItineraryHandler {
	return &ItineraryHandler{catalog: catalog, seatMaps: seatMaps}
}

// ItineraryRequest は旅程の作成・更新リクエスト
// 座席配置は rows×columns か seat_labels のどちらか一方を指定する
type ItineraryRequest struct {
	Origin        string   `json:"origin" validate:"required" example:"Brasília"`
	Destination   string   `json:"destination" validate:"required" example:"Goiânia"`
	DepartureAt   string   `json:"departure_at" validate:"required" example:"2025-12-20T08:00:00-03:00"`
	Carrier       string   `json:"carrier" example:"Viação Real"`
	TransportType string   `json:"transport_type" validate:"required,transport_type" example:"bus"`
	SeatClass     string   `json:"seat_class" validate:"required" example:"SEMI_LEITO"`
	TotalSeats    int      `json:"total_seats" validate:"required,gt=0" example:"40"`
	Rows          int      `json:"rows" validate:"gte=0" example:"10"`
	Columns       int      `json:"columns" validate:"gte=0,lte=26" example:"4"`
	SeatLabels    []string `json:"seat_labels" validate:"omitempty,dive,required,seat_label"`
	RowWidth      int      `json:"row_width" validate:"gte=0"`
	Price         int      `json:"price" validate:"gte=0" example:"12000"`
}

func (r ItineraryRequest) toInput() (application.ItineraryInput, error) {
	departureAt, err := time.Parse(time.RFC3339, r.DepartureAt)
	if err != nil {
		return application.ItineraryInput{}, echo.NewHTTPError(http.StatusBadRequest, "出発日時の形式が不正です")
	}
	return application.ItineraryInput{
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureAt:   departureAt,
		Carrier:       r.Carrier,
		TransportType: itinerary.TransportType(r.TransportType),
		SeatClass:     itinerary.SeatClass(r.SeatClass),
		TotalSeats:    r.TotalSeats,
		Rows:          r.Rows,
		Columns:       r.Columns,
		SeatLabels:    r.SeatLabels,
		RowWidth:      r.RowWidth,
		Price:         r.Price,
	}, nil
}

type LayoutResponse struct {
	Rows       int      `json:"rows,omitempty"`
	Columns    int      `json:"columns,omitempty"`
	SeatLabels []string `json:"seat_labels,omitempty"`
	RowWidth   int      `json:"row_width,omitempty"`
}

type ItineraryResponse struct {
	ID            string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Origin        string         `json:"origin" example:"Brasília"`
	Destination   string         `json:"destination" example:"Goiânia"`
	DepartureAt   string         `json:"departure_at" example:"2025-12-20T08:00:00-03:00"`
	Carrier       string         `json:"carrier,omitempty" example:"Viação Real"`
	TransportType string         `json:"transport_type" example:"bus"`
	SeatClass     string         `json:"seat_class" example:"SEMI_LEITO"`
	TotalSeats    int            `json:"total_seats" example:"40"`
	Layout        LayoutResponse `json:"layout"`
	Price         int            `json:"price" example:"12000"`
	Version       int            `json:"version"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

func toItineraryResponse(it *itinerary.Itinerary) ItineraryResponse {
	return ItineraryResponse{
		ID:            it.ID,
		Origin:        it.Origin,
		Destination:   it.Destination,
		DepartureAt:   it.DepartureAt.Format(time.RFC3339),
		Carrier:       it.Carrier,
		TransportType: string(it.TransportType),
		SeatClass:     string(it.SeatClass),
		TotalSeats:    it.TotalSeats,
		Layout: LayoutResponse{
			Rows:       it.Layout.Rows,
			Columns:    it.Layout.Columns,
			SeatLabels: it.Layout.Explicit,
			RowWidth:   it.Layout.RowWidth,
		},
		Price:     it.Price,
		Version:   it.Version,
		CreatedAt: it.CreatedAt.Format(time.RFC3339),
		UpdatedAt: it.UpdatedAt.Format(time.RFC3339),
	}
}

type SeatResponse struct {
	Label     string `json:"label" example:"1A"`
	Status    string `json:"status" example:"FREE"`
	Available bool   `json:"available"`
}

type SeatMapResponse struct {
	ItineraryID string           `json:"itinerary_id"`
	Rows        [][]SeatResponse `json:"rows"`
	Capacity    int              `json:"capacity"`
	Occupied    int              `json:"occupied"`
	Available   int              `json:"available"`
}

func toSeatMapResponse(m *seat.Map) SeatMapResponse {
	rows := make([][]SeatResponse, len(m.Rows))
	for i, row := range m.Rows {
		rows[i] = make([]SeatResponse, len(row))
		for j, s := range row {
			rows[i][j] = SeatResponse{Label: s.Label, Status: string(s.Status), Available: s.IsAvailable()}
		}
	}
	return SeatMapResponse{
		ItineraryID: m.ItineraryID,
		Rows:        rows,
		Capacity:    m.Capacity,
		Occupied:    m.Occupied,
		Available:   m.Available(),
	}
}

// Search godoc
// @Summary 旅程を検索
// @Description 出発地・目的地・出発日・交通手段で旅程を検索します
// @Tags itineraries
// @Produce json
// @Param origin query string false "出発地"
// @Param destination query string false "目的地"
// @Param date query string false "出発日 (YYYY-MM-DD)"
// @Param transport_type query string false "bus | flight"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ItineraryResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /itineraries [get]
func (h *ItineraryHandler) Search(c echo.Context) error {
	filter := itinerary.SearchFilter{
		Origin:        c.QueryParam("origin"),
		Destination:   c.QueryParam("destination"),
		TransportType: itinerary.TransportType(c.QueryParam("transport_type")),
	}
	if date := c.QueryParam("date"); date != "" {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "日付の形式が不正です（YYYY-MM-DD）")
		}
		filter.Date = &d
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	itineraries, err := h.catalog.SearchItineraries(c.Request().Context(), filter)
	if err != nil {
		return api.ToHTTPError(err)
	}
	resp := make([]ItineraryResponse, len(itineraries))
	for i, it := range itineraries {
		resp[i] = toItineraryResponse(it)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetByID godoc
// @Summary 旅程を取得
// @Tags itineraries
// @Produce json
// @Param id path string true "旅程ID"
// @Success 200 {object} ItineraryResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /itineraries/{id} [get]
func (h *ItineraryHandler) GetByID(c echo.Context) error {
	it, err := h.catalog.GetItinerary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toItineraryResponse(it))
}

// GetSeatMap godoc
// @Summary 座席表を取得
// @Description 座席配置の行ごとに各座席の状態（FREE/HELD/SOLD）を返します
// @Tags itineraries
// @Produce json
// @Param id path string true "旅程ID"
// @Success 200 {object} SeatMapResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /itineraries/{id}/seats [get]
func (h *ItineraryHandler) GetSeatMap(c echo.Context) error {
	m, err := h.seatMaps.GetSeatMap(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toSeatMapResponse(m))
}

// CountAvailable godoc
// @Summary 空席数を取得
// @Tags itineraries
// @Produce json
// @Param id path string true "旅程ID"
// @Success 200 {object} map[string]int
// @Router /itineraries/{id}/seats/available/count [get]
func (h *ItineraryHandler) CountAvailable(c echo.Context) error {
	count, err := h.seatMaps.CountAvailable(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"available_count": count})
}

// Create godoc
// @Summary 旅程を作成（オペレーター）
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ItineraryRequest true "旅程情報"
// @Success 201 {object} ItineraryResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /admin/itineraries [post]
func (h *ItineraryHandler) Create(c echo.Context) error {
	input, err := bindItinerary(c)
	if err != nil {
		return err
	}
	it, err := h.catalog.CreateItinerary(c.Request().Context(), input)
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toItineraryResponse(it))
}

// Update godoc
// @Summary 旅程を更新（オペレーター）
// @Description 座席数・座席配置の変更は仮押さえ・販売済みの座席が無い場合のみ可能です
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "旅程ID"
// @Param request body ItineraryRequest true "旅程情報"
// @Success 200 {object} ItineraryResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /admin/itineraries/{id} [put]
func (h *ItineraryHandler) Update(c echo.Context) error {
	input, err := bindItinerary(c)
	if err != nil {
		return err
	}
	it, err := h.catalog.UpdateItinerary(c.Request().Context(), c.Param("id"), input)
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toItineraryResponse(it))
}

// Delete godoc
// @Summary 旅程を削除（オペレーター）
// @Tags admin
// @Security BearerAuth
// @Param id path string true "旅程ID"
// @Success 204
// @Failure 409 {object} api.ErrorResponse
// @Router /admin/itineraries/{id} [delete]
func (h *ItineraryHandler) Delete(c echo.Context) error {
	if err := h.catalog.DeleteItinerary(c.Request().Context(), c.Param("id")); err != nil {
		return api.ToHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bindItinerary(c echo.Context) (application.ItineraryInput, error) {
	var req ItineraryRequest
	if err := c.Bind(&req); err != nil {
		return application.ItineraryInput{}, echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return application.ItineraryInput{}, err
	}
	return req.toInput()
}

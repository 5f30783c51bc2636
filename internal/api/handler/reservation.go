package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/api"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/api/middleware"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/application"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

// ReservationHandler は仮押さえ・購入・チケットのエンドポイント
type ReservationHandler struct {
	reservations ReservationServiceInterface
	tickets      TicketServiceInterface
}

func NewReservationHandler(rs ReservationServiceInterface, ts TicketServiceInterface) *ReservationHandler {
	return &ReservationHandler{reservations: rs, tickets: ts}
}

// HoldRequest は仮押さえのリクエスト
// seat_label を省略すると空席を自動で割り当てる
type HoldRequest struct {
	SeatLabel        string `json:"seat_label" validate:"omitempty,seat_label" example:"1A"`
	IdempotencyToken string `json:"idempotency_token" validate:"required,max=128" example:"hold-2025-001"`
}

type HoldResponse struct {
	ItineraryID string    `json:"itinerary_id"`
	SeatLabel   string    `json:"seat_label" example:"1A"`
	HolderID    string    `json:"holder_id" example:"user-123"`
	Token       string    `json:"token" example:"hold-2025-001"`
	Status      string    `json:"status" example:"HELD"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toHoldResponse(h *reservation.Hold) HoldResponse {
	return HoldResponse{
		ItineraryID: h.ItineraryID,
		SeatLabel:   h.SeatLabel,
		HolderID:    h.HolderID,
		Token:       h.Token,
		Status:      string(h.Status),
		ExpiresAt:   h.ExpiresAt,
	}
}

type PurchaseRequest struct {
	HoldToken     string `json:"hold_token" validate:"required" example:"hold-2025-001"`
	PassengerName string `json:"passenger_name" validate:"required,max=200" example:"Maria Silva"`
	Contact       string `json:"contact" validate:"required,max=200" example:"+55 61 99999-0000"`
}

type PassengerRequest struct {
	PassengerName string `json:"passenger_name" validate:"required,max=200" example:"Maria Silva"`
	Contact       string `json:"contact" validate:"required,max=200" example:"maria@example.com"`
}

type TicketResponse struct {
	ID            string     `json:"id"`
	ItineraryID   string     `json:"itinerary_id"`
	SeatLabel     string     `json:"seat_label" example:"1A"`
	HolderID      string     `json:"holder_id"`
	PassengerName string     `json:"passenger_name"`
	Contact       string     `json:"contact"`
	TransportType string     `json:"transport_type" example:"bus"`
	SeatClass     string     `json:"seat_class" example:"SEMI_LEITO"`
	Price         int        `json:"price"`
	Status        string     `json:"status" example:"CONFIRMED"`
	CreatedAt     time.Time  `json:"created_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func toTicketResponse(t *ticket.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		ItineraryID:   t.ItineraryID,
		SeatLabel:     t.SeatLabel,
		HolderID:      t.HolderID,
		PassengerName: t.PassengerName,
		Contact:       t.Contact,
		TransportType: string(t.TransportType),
		SeatClass:     string(t.SeatClass),
		Price:         t.Price,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		CancelledAt:   t.CancelledAt,
	}
}

func toTicketResponses(tickets []*ticket.Ticket) []TicketResponse {
	resp := make([]TicketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = toTicketResponse(t)
	}
	return resp
}

// Hold godoc
// @Summary 座席を仮押さえ
// @Description 座席を一定時間確保します。同じ idempotency_token の再送は同じ仮押さえを返します
// @Tags holds
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "旅程ID"
// @Param request body HoldRequest true "仮押さえ"
// @Success 201 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "座席が確保済み・空席なし"
// @Failure 422 {object} api.ErrorResponse "出発済み"
// @Router /itineraries/{id}/holds [post]
func (h *ReservationHandler) Hold(c echo.Context) error {
	var req HoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var (
		hold *reservation.Hold
		err  error
	)
	if req.SeatLabel == "" {
		hold, err = h.reservations.ReserveAny(ctx, application.ReserveAnyInput{
			ItineraryID: c.Param("id"), HolderID: middleware.UserID(c), IdempotencyToken: req.IdempotencyToken,
		})
	} else {
		hold, err = h.reservations.Reserve(ctx, application.ReserveInput{
			ItineraryID: c.Param("id"), SeatLabel: req.SeatLabel, HolderID: middleware.UserID(c), IdempotencyToken: req.IdempotencyToken,
		})
	}
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toHoldResponse(hold))
}

// ReleaseHold godoc
// @Summary 仮押さえを解放
// @Tags holds
// @Param X-User-ID header string true "ユーザーID"
// @Param token path string true "仮押さえのトークン"
// @Success 204
// @Failure 409 {object} api.ErrorResponse "販売済み"
// @Router /holds/{token} [delete]
func (h *ReservationHandler) ReleaseHold(c echo.Context) error {
	if err := h.reservations.ReleaseHold(c.Request().Context(), c.Param("token"), middleware.UserID(c)); err != nil {
		return api.ToHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Purchase godoc
// @Summary 購入
// @Description 仮押さえを販売済みにしてチケットを発行します。チケットの記録が遅れた場合は 202 を返します
// @Tags purchases
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body PurchaseRequest true "購入情報"
// @Success 201 {object} TicketResponse
// @Success 202 {object} api.ErrorResponse "チケット記録待ち"
// @Failure 404 {object} api.ErrorResponse
// @Failure 410 {object} api.ErrorResponse "仮押さえの期限切れ"
// @Router /purchases [post]
func (h *ReservationHandler) Purchase(c echo.Context) error {
	var req PurchaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	tk, err := h.reservations.Purchase(c.Request().Context(), application.PurchaseInput{
		HoldToken:     req.HoldToken,
		HolderID:      middleware.UserID(c),
		PassengerName: req.PassengerName,
		Contact:       req.Contact,
	})
	if err != nil {
		if errors.Is(err, reservation.ErrPendingReconciliation) {
			return c.JSON(http.StatusAccepted, api.ErrorResponse{
				Error: err.Error(), Code: http.StatusAccepted, Class: string(reservation.ClassPending),
			})
		}
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toTicketResponse(tk))
}

// ListMyTickets godoc
// @Summary 自分のチケット一覧
// @Tags tickets
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} TicketResponse
// @Router /tickets [get]
func (h *ReservationHandler) ListMyTickets(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	tickets, err := h.tickets.ListMyTickets(c.Request().Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTicketResponses(tickets))
}

// GetTicket godoc
// @Summary チケットを取得
// @Tags tickets
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "チケットID"
// @Success 200 {object} TicketResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /tickets/{id} [get]
func (h *ReservationHandler) GetTicket(c echo.Context) error {
	tk, err := h.tickets.GetTicket(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTicketResponse(tk))
}

// CancelTicket godoc
// @Summary チケットをキャンセル
// @Description 出発前のチケットをキャンセルし、座席を解放します
// @Tags tickets
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "チケットID"
// @Success 200 {object} TicketResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse "出発済み"
// @Router /tickets/{id}/cancel [post]
func (h *ReservationHandler) CancelTicket(c echo.Context) error {
	return h.cancel(c, middleware.UserID(c))
}

// AdminCancelTicket godoc
// @Summary チケットをキャンセル（オペレーター）
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "チケットID"
// @Success 200 {object} TicketResponse
// @Router /admin/tickets/{id}/cancel [post]
func (h *ReservationHandler) AdminCancelTicket(c echo.Context) error {
	return h.cancel(c, "")
}

func (h *ReservationHandler) cancel(c echo.Context, holderID string) error {
	tk, err := h.reservations.Cancel(c.Request().Context(), application.CancelInput{TicketID: c.Param("id"), HolderID: holderID})
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTicketResponse(tk))
}

// SearchPassengers godoc
// @Summary 乗客検索（オペレーター）
// @Description 旅程・交通手段・乗客名（部分一致、大文字小文字を区別しない）で検索します
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param itinerary_id query string false "旅程ID"
// @Param transport_type query string false "bus | flight"
// @Param passenger_name query string false "乗客名"
// @Success 200 {array} TicketResponse
// @Router /admin/tickets [get]
func (h *ReservationHandler) SearchPassengers(c echo.Context) error {
	filter := ticket.SearchFilter{
		ItineraryID:   c.QueryParam("itinerary_id"),
		TransportType: itinerary.TransportType(c.QueryParam("transport_type")),
		PassengerName: c.QueryParam("passenger_name"),
	}
	if filter.TransportType != "" && !filter.TransportType.IsValid() {
		return api.ToHTTPError(itinerary.ErrInvalidTransportType)
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	tickets, err := h.tickets.SearchPassengers(c.Request().Context(), filter)
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTicketResponses(tickets))
}

// UpdatePassenger godoc
// @Summary 乗客情報を更新（オペレーター）
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "チケットID"
// @Param request body PassengerRequest true "乗客情報"
// @Success 200 {object} TicketResponse
// @Router /admin/tickets/{id} [put]
func (h *ReservationHandler) UpdatePassenger(c echo.Context) error {
	var req PassengerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	tk, err := h.tickets.UpdatePassenger(c.Request().Context(), c.Param("id"), ticket.Passenger{Name: req.PassengerName, Contact: req.Contact})
	if err != nil {
		return api.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTicketResponse(tk))
}

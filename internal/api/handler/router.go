package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/api/middleware"
)

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Health      *HealthHandler
	Itinerary   *ItineraryHandler
	Reservation *ReservationHandler
}

// RegisterRoutes は /health と /api/v1 以下のルートを登録する
// 旅行者のルートは X-User-ID、オペレーターのルートは Bearer トークンで認証する
func RegisterRoutes(e *echo.Echo, h Handlers, operatorSecret string) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")
	v1.GET("/health", h.Health.Check)

	// 旅程の参照は認証不要
	v1.GET("/itineraries", h.Itinerary.Search)
	v1.GET("/itineraries/:id", h.Itinerary.GetByID)
	v1.GET("/itineraries/:id/seats", h.Itinerary.GetSeatMap)
	v1.GET("/itineraries/:id/seats/available/count", h.Itinerary.CountAvailable)

	traveler := middleware.RequireTraveler()
	v1.POST("/itineraries/:id/holds", h.Reservation.Hold, traveler)
	v1.DELETE("/holds/:token", h.Reservation.ReleaseHold, traveler)
	v1.POST("/purchases", h.Reservation.Purchase, traveler)
	v1.GET("/tickets", h.Reservation.ListMyTickets, traveler)
	v1.GET("/tickets/:id", h.Reservation.GetTicket, traveler)
	v1.POST("/tickets/:id/cancel", h.Reservation.CancelTicket, traveler)

	admin := v1.Group("/admin", middleware.OperatorAuth(operatorSecret))
	admin.POST("/itineraries", h.Itinerary.Create)
	admin.PUT("/itineraries/:id", h.Itinerary.Update)
	admin.DELETE("/itineraries/:id", h.Itinerary.Delete)
	admin.GET("/tickets", h.Reservation.SearchPassengers)
	admin.PUT("/tickets/:id", h.Reservation.UpdatePassenger)
	admin.POST("/tickets/:id/cancel", h.Reservation.AdminCancelTicket)
}

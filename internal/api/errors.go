package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

// DomainError はドメインのエラーと、その HTTP 上の表現
type DomainError struct {
	Err    error
	Status int
	Class  string
}

func (e *DomainError) Error() string { return e.Err.Error() }

func (e *DomainError) Unwrap() error { return e.Err }

// Message はレスポンスに載せるメッセージ
func (e *DomainError) Message() string {
	return e.Err.Error()
}

var classStatus = map[reservation.Class]int{
	reservation.ClassNotFound:   http.StatusNotFound,
	reservation.ClassConflict:   http.StatusConflict,
	reservation.ClassExpired:    http.StatusGone,
	reservation.ClassPending:    http.StatusAccepted,
	reservation.ClassRejected:   http.StatusUnprocessableEntity,
	reservation.ClassValidation: http.StatusBadRequest,
	reservation.ClassTransient:  http.StatusServiceUnavailable,
	reservation.ClassInternal:   http.StatusInternalServerError,
}

// 旅程・チケットのエラーの分類
var (
	notFoundErrors = []error{itinerary.ErrItineraryNotFound, ticket.ErrTicketNotFound}
	conflictErrors = []error{
		itinerary.ErrItineraryHasBookings,
		itinerary.ErrOptimisticLockConflict,
		ticket.ErrSeatAlreadyTicketed,
		ticket.ErrTicketAlreadyCancelled,
	}
	validationErrors = []error{
		itinerary.ErrOriginRequired,
		itinerary.ErrDestinationRequired,
		itinerary.ErrDepartureRequired,
		itinerary.ErrInvalidTransportType,
		itinerary.ErrSeatClassMismatch,
		itinerary.ErrInvalidPrice,
		itinerary.ErrInvalidTotalSeats,
		itinerary.ErrInvalidLayout,
		itinerary.ErrAmbiguousLayout,
		itinerary.ErrDuplicateSeatLabel,
		ticket.ErrPassengerNameRequired,
		ticket.ErrContactRequired,
		ticket.ErrTokenRequired,
		ticket.ErrSeatRequired,
	}
)

// Classify はエラーを分類する
// 旅程・チケットのエラーを先に判定し、残りは予約ドメインの分類に従う
func Classify(err error) reservation.Class {
	switch {
	case err == nil:
		return reservation.ClassNone
	case errors.Is(err, reservation.ErrTransient):
		return reservation.ClassTransient
	case isAny(err, notFoundErrors):
		return reservation.ClassNotFound
	case isAny(err, conflictErrors):
		return reservation.ClassConflict
	case isAny(err, validationErrors):
		return reservation.ClassValidation
	default:
		return reservation.Classify(err)
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NewDomainError はエラーを分類して DomainError を作る
func NewDomainError(err error) *DomainError {
	class := Classify(err)
	status, ok := classStatus[class]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &DomainError{Err: err, Status: status, Class: string(class)}
}

// ToHTTPError はドメインのエラーを echo.HTTPError に変換する
func ToHTTPError(err error) *echo.HTTPError {
	de := NewDomainError(err)
	he := echo.NewHTTPError(de.Status, de.Message())
	he.Internal = de
	return he
}

package payment

import (
	"errors"
	"net/http"

	"homestay/internal/domain"
	"homestay/internal/modules/booking"
	"homestay/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	resolve  func(c *gin.Context) *Service
	bookings func(c *gin.Context) BookingReader
}

func NewHandler(resolve func(c *gin.Context) *Service, bookings func(c *gin.Context) BookingReader) *Handler {
	return &Handler{resolve: resolve, bookings: bookings}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/bookings/:id/payment", h.GetPayment)
	protected.POST("/bookings/:id/payment", h.InitiatePayment)
	protected.POST("/bookings/:id/payment-confirmation", h.ConfirmPayment)
}

// GetPayment returns the transfer details, provisioning them on first read.
// @Summary	Payment details
// @Param		id	path	string	true	"Booking ID"
// @Success	200	{object}	Details
// @Router		/bookings/{id}/payment [GET]
func (h *Handler) GetPayment(c *gin.Context) {
	p, err := h.resolve(c).PaymentDetails(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewDetails(*p))
}

func (h *Handler) InitiatePayment(c *gin.Context) {
	p, err := h.resolve(c).InitiatePayment(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, NewDetails(*p))
}

// ConfirmPayment self-reports a transfer. The booking is re-read first and
// the response carries the server's booking with its new projection.
// @Summary	Report payment
// @Param		id		path	string			true	"Booking ID"
// @Param		request	body	Acknowledgement	true	"confirmed must be true"
// @Success	200	{object}	booking.BookingView
// @Failure	409	{object}	map[string]interface{}	"Action not available for the booking state"
// @Router		/bookings/{id}/payment-confirmation [POST]
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var ack Acknowledgement
	if err := c.ShouldBindJSON(&ack); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	current, err := h.bookings(c).GetBooking(ctx, domain.ID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	updated, err := h.resolve(c).ConfirmUserPayment(ctx, *current, ack)
	if err != nil {
		Fail(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, booking.NewBookingView(*updated),
		"Thanks, your payment is now awaiting verification")
}

// Fail writes the envelope for payment errors and defers the rest to the
// booking error mapping.
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrConfirmationRequired):
		response.Error(c, http.StatusBadRequest, "CONFIRMATION_REQUIRED", "Please confirm that you have completed the transfer")
	case errors.Is(err, ErrReasonRequired):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Please give a reason for rejecting this payment", gin.H{"field": "notes"})
	case errors.Is(err, ErrMissingBooking):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Booking id is required")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
	case errors.Is(err, ErrInvalidTransition):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", "This action is no longer available for the booking")
	default:
		booking.Fail(c, err)
	}
}

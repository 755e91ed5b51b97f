package booking

import (
	"errors"
	"net/http"

	"homestay/internal/domain"
	"homestay/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// VerifiedHook runs after a booking was verified, before the response is written.
type VerifiedHook func(c *gin.Context, v *Verification)

type Handler struct {
	resolve    func(c *gin.Context) *Service
	onVerified VerifiedHook
}

func NewHandler(resolve func(c *gin.Context) *Service, onVerified VerifiedHook) *Handler {
	return &Handler{resolve: resolve, onVerified: onVerified}
}

func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/bookings/quote", h.Quote)
	public.GET("/bookings/verify/:token", h.VerifyBooking)

	protected.POST("/bookings", h.CreateBooking)
	protected.GET("/bookings", h.ListBookings)
	protected.GET("/bookings/:id", h.GetBooking)
	protected.GET("/homestays/:id/booking", h.CheckExisting)
}

// CreateBooking books a homestay for the signed-in client.
// @Summary	Create booking
// @Param		request	body	CreateBookingRequest	true	"homestayId, checkInDate, checkOutDate, guestCount, notes"
// @Success	201	{object}	BookingView
// @Failure	400	{object}	map[string]interface{}	"Invalid input, nothing was sent to the backend"
// @Failure	409	{object}	map[string]interface{}	"Dates unavailable or price too large"
// @Router		/bookings [POST]
func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	b, err := h.resolve(c).CreateBooking(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, NewBookingView(*b), "Booking created")
}

func (h *Handler) ListBookings(c *gin.Context) {
	list, err := h.resolve(c).GetUserBookings(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	views := make([]BookingView, 0, len(list))
	for _, b := range list {
		views = append(views, NewBookingView(b))
	}
	response.Success(c, http.StatusOK, views)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.resolve(c).GetBooking(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewBookingView(*b))
}

// CheckExisting decides between the booking form and the status view on a
// homestay page. It always answers 200.
func (h *Handler) CheckExisting(c *gin.Context) {
	existing := h.resolve(c).CheckExistingBooking(c.Request.Context(), domain.ID(c.Param("id")))
	out := gin.H{
		"hasBooking": existing.HasBooking,
	}
	if existing.Booking != nil {
		out["booking"] = NewBookingView(*existing.Booking)
	}
	if existing.Error != "" {
		out["error"] = existing.Error
	}
	response.Success(c, http.StatusOK, out)
}

func (h *Handler) VerifyBooking(c *gin.Context) {
	v, err := h.resolve(c).VerifyBooking(c.Request.Context(), c.Param("token"))
	if err != nil {
		Fail(c, err)
		return
	}
	if h.onVerified != nil {
		h.onVerified(c, v)
	}
	response.SuccessWithMessage(c, http.StatusOK, gin.H{
		"booking":    NewBookingView(v.Booking),
		"redirect":   v.Redirect,
		"verifiedAt": v.Booking.UpdatedAt,
	}, v.Message)
}

func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	q, err := EstimateQuote(req)
	if err != nil {
		Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, q)
}

// Fail writes the error envelope for booking and payment errors.
func Fail(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", ve.Message, gin.H{"field": ve.Field})
	case errors.Is(err, ErrUnrecognizedList):
		_ = c.Error(err)
		response.Error(c, http.StatusBadGateway, "BAD_RESPONSE", "Something went wrong, please try again later")
	case response.GatewayError(c, err):
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong, please try again later")
	}
}

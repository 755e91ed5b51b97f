package admin

import (
	"errors"
	"net/http"
	"strings"

	"homestay/internal/domain"
	"homestay/internal/modules/payment"
	"homestay/internal/pkg/response"
	"homestay/internal/view"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	queue func(c *gin.Context) *Queue
}

func NewHandler(queue func(c *gin.Context) *Queue) *Handler {
	return &Handler{queue: queue}
}

// RegisterRoutes expects a group already restricted to administrators.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/payment-approvals", h.ListApprovals)
	admin.GET("/bookings/:id", h.GetBooking)
	admin.POST("/bookings/:id/payment/verify", h.VerifyPayment)
	admin.DELETE("/selection", h.CloseSelection)
}

// ListApprovals godoc
// @Summary	Review queue
// @Param		status	query	string	false	"Payment status; empty reads the approval queue"
// @Param		q		query	string	false	"Filter over id, customer, property and payment reference"
// @Success	200	{object}	map[string]interface{}
// @Router		/admin/payment-approvals [GET]
func (h *Handler) ListApprovals(c *gin.Context) {
	var query Query
	if raw := c.Query("status"); raw != "" {
		query.Status = domain.ParsePaymentStatus(raw)
		if !query.Status.Valid() {
			response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown payment status", gin.H{"field": "status"})
			return
		}
	}

	q := h.queue(c)
	if err := q.Refresh(c.Request.Context(), query); err != nil {
		fail(c, err)
		return
	}
	items := q.Filter(c.Query("q"))
	response.Success(c, http.StatusOK, gin.H{
		"items": NewItems(items),
		"total": len(items),
	})
}

func (h *Handler) GetBooking(c *gin.Context) {
	panel, err := h.queue(c).Select(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, NewItem(panel.Booking()))
}

// VerifyPayment re-reads the booking, then approves or rejects it.
// @Summary	Verify payment
// @Param		id		path	string			true	"Booking ID"
// @Param		request	body	VerifyRequest	true	"approved, notes (required to reject)"
// @Success	200	{object}	Item
// @Failure	400	{object}	map[string]interface{}	"Rejection without a reason"
// @Failure	403	{object}	map[string]interface{}	"Not an administrator"
// @Router		/admin/bookings/{id}/payment/verify [POST]
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	// a rejection without a reason never reaches the backend, not even to
	// re-read the booking
	if !req.Approved && strings.TrimSpace(req.Notes) == "" {
		fail(c, payment.ErrReasonRequired)
		return
	}

	ctx := c.Request.Context()
	q := h.queue(c)
	if _, err := q.Select(ctx, domain.ID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}

	var (
		updated *domain.Booking
		err     error
		message string
	)
	if req.Approved {
		updated, err = q.Approve(ctx, req.Notes)
		message = "Payment approved"
	} else {
		updated, err = q.Reject(ctx, req.Notes)
		message = "Payment rejected"
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, gin.H{
		"item":      NewItem(*updated),
		"remaining": len(q.Items()),
	}, message)
}

func (h *Handler) CloseSelection(c *gin.Context) {
	h.queue(c).Close()
	c.Status(http.StatusNoContent)
}

func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotSelected):
		response.Error(c, http.StatusBadRequest, "NOT_SELECTED", "Select a booking first")
	case errors.Is(err, view.ErrBusy):
		response.Error(c, http.StatusConflict, "ACTION_IN_PROGRESS", "This booking is already being processed")
	case errors.Is(err, view.ErrNotAllowed), errors.Is(err, view.ErrDetached):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", "This action is no longer available for the booking")
	default:
		payment.Fail(c, err)
	}
}

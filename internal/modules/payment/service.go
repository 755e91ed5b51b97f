package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"homestay/internal/domain"
	"homestay/internal/gateway"
	"homestay/internal/view"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	backend Backend
	group   *singleflight.Group
	log     *logrus.Logger
}

// NewService builds a payment service. The group is shared by every service
// of the process so duplicate submits from concurrent requests collapse.
func NewService(backend Backend, group *singleflight.Group, log *logrus.Logger) *Service {
	if group == nil {
		group = &singleflight.Group{}
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Service{backend: backend, group: group, log: log}
}

func paymentsPath(id domain.ID, suffix string) string {
	return "/bookings/" + url.PathEscape(string(id)) + suffix
}

// InitiatePayment provisions the transfer reference and QR code. Calling it
// again returns the existing record.
func (s *Service) InitiatePayment(ctx context.Context, bookingID domain.ID) (*domain.Payment, error) {
	if strings.TrimSpace(string(bookingID)) == "" {
		return nil, ErrMissingBooking
	}
	var p domain.Payment
	if err := s.backend.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   paymentsPath(bookingID, "/payments"),
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetPaymentInfo(ctx context.Context, bookingID domain.ID) (*domain.Payment, error) {
	if strings.TrimSpace(string(bookingID)) == "" {
		return nil, ErrMissingBooking
	}
	var p domain.Payment
	if err := s.backend.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   paymentsPath(bookingID, "/payments"),
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PaymentDetails reads the payment and provisions it when no QR code exists
// yet, so opening the payment view is enough to get transfer instructions.
func (s *Service) PaymentDetails(ctx context.Context, bookingID domain.ID) (*domain.Payment, error) {
	p, err := s.GetPaymentInfo(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if p.HasQRCode() {
		return p, nil
	}
	s.log.WithField("booking_id", bookingID).Info("no payment QR yet, initiating")
	return s.InitiatePayment(ctx, bookingID)
}

// ConfirmUserPayment self-reports a completed transfer for current, which
// must be the booking as the server last returned it. Concurrent duplicates
// for the same booking share a single backend call.
func (s *Service) ConfirmUserPayment(ctx context.Context, current domain.Booking, ack Acknowledgement) (*domain.Booking, error) {
	if !ack.Confirmed {
		return nil, ErrConfirmationRequired
	}
	if !view.Allowed(current, view.ActionSelfReportPayment) {
		return nil, fmt.Errorf("%w: booking %s is %s/%s", ErrInvalidTransition, current.ID, current.Status, current.PaymentStatus)
	}

	payload := confirmPayload{Notes: strings.TrimSpace(ack.Notes)}
	return s.shared(ctx, "confirm:"+string(current.ID), gateway.Request{
		Method: http.MethodPost,
		Path:   paymentsPath(current.ID, "/payment-confirmation"),
		Body:   payload,
	})
}

// VerifyPayment records an administrator's decision. Non-admins and
// reasonless rejections are refused before any call.
func (s *Service) VerifyPayment(ctx context.Context, actor domain.User, current domain.Booking, d Decision) (*domain.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	notes := strings.TrimSpace(d.Notes)
	if !d.Approved && notes == "" {
		return nil, ErrReasonRequired
	}
	action := view.ActionRejectPayment
	if d.Approved {
		action = view.ActionApprovePayment
	}
	if !view.Allowed(current, action) {
		return nil, fmt.Errorf("%w: booking %s is %s/%s", ErrInvalidTransition, current.ID, current.Status, current.PaymentStatus)
	}
	if d.Approved && notes == "" {
		notes = DefaultApprovalNote
	}

	key := fmt.Sprintf("verify:%s:%t", current.ID, d.Approved)
	b, err := s.shared(ctx, key, gateway.Request{
		Method: http.MethodPost,
		Path:   paymentsPath(current.ID, "/payments/verify"),
		Body:   verifyPayload{Approved: d.Approved, Notes: notes},
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"booking_id":     b.ID,
		"admin_id":       actor.ID,
		"approved":       d.Approved,
		"payment_status": b.PaymentStatus,
	}).Info("payment verified")
	return b, nil
}

func (s *Service) shared(ctx context.Context, key string, req gateway.Request) (*domain.Booking, error) {
	v, err, dup := s.group.Do(key, func() (any, error) {
		var b domain.Booking
		if err := s.backend.Do(ctx, req, &b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if dup {
		s.log.WithField("key", key).Debug("duplicate payment submit collapsed")
	}
	if err != nil {
		return nil, err
	}
	b := v.(domain.Booking)
	return &b, nil
}

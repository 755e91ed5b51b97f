package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"homestay/internal/domain"
	"homestay/internal/gateway"
	"homestay/internal/modules/booking"
	"homestay/internal/modules/payment"

	"github.com/sirupsen/logrus"
)

type Service struct {
	backend  Backend
	verifier Verifier
	log      *logrus.Logger
}

func NewService(backend Backend, verifier Verifier, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Service{backend: backend, verifier: verifier, log: log}
}

// List is the single review query. Without a status it reads the payment
// approval queue; with one it reads bookings in that payment status. The two
// backend endpoints are kept apart because nothing guarantees they are the
// same data source.
func (s *Service) List(ctx context.Context, actor domain.User, q Query) ([]domain.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	req := gateway.Request{Method: http.MethodGet, Path: "/admin/bookings/payment-approvals"}
	if q.Status != "" {
		req.Path = "/admin/bookings"
		req.Query = url.Values{"paymentStatus": {string(q.Status)}}
	}

	var raw json.RawMessage
	if err := s.backend.Do(ctx, req, &raw); err != nil {
		return nil, err
	}
	list, err := booking.DecodeBookingList(raw)
	if err != nil {
		return nil, err
	}
	// oldest report first
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (s *Service) Detail(ctx context.Context, actor domain.User, id domain.ID) (*domain.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var b domain.Booking
	if err := s.backend.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/bookings/" + url.PathEscape(string(id)),
	}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) Decide(ctx context.Context, actor domain.User, current domain.Booking, d payment.Decision) (*domain.Booking, error) {
	return s.verifier.VerifyPayment(ctx, actor, current, d)
}

// FilterBookings keeps the bookings whose id, customer name, property name or
// payment reference contains text, ignoring case. Empty text keeps all.
func FilterBookings(items []domain.Booking, text string) []domain.Booking {
	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]domain.Booking, 0, len(items))
	for _, b := range items {
		if needle == "" || matches(b, needle) {
			out = append(out, b)
		}
	}
	return out
}

func matches(b domain.Booking, needle string) bool {
	fields := []string{string(b.ID), b.PaymentReference}
	if b.User != nil {
		fields = append(fields, b.User.FullName)
	}
	if b.Homestay != nil {
		fields = append(fields, b.Homestay.Name)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

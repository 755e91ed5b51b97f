package booking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"homestay/internal/domain"
	"homestay/internal/gateway"

	"github.com/sirupsen/logrus"
)

const (
	defaultRedirectPath  = "/profile"
	defaultRedirectDelay = 5 * time.Second
)

type Config struct {
	VerifyRedirectPath  string
	VerifyRedirectDelay time.Duration
}

type Service struct {
	backend Backend
	cfg     Config
	log     *logrus.Logger
}

func NewService(backend Backend, cfg Config, log *logrus.Logger) *Service {
	if cfg.VerifyRedirectPath == "" {
		cfg.VerifyRedirectPath = defaultRedirectPath
	}
	if cfg.VerifyRedirectDelay <= 0 {
		cfg.VerifyRedirectDelay = defaultRedirectDelay
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Service{backend: backend, cfg: cfg, log: log}
}

// CreateBooking validates the input locally and only then asks the backend.
// The returned booking is the server's, in PENDING/unpaid state.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	payload, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	var created domain.Booking
	if err := s.backend.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/bookings",
		Body:   payload,
	}, &created); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":  created.ID,
		"homestay_id": created.HomestayID,
		"nights":      created.Nights(),
	}).Info("booking created")
	return &created, nil
}

func validateCreate(req CreateBookingRequest) (createPayload, error) {
	homestayID := domain.ID(strings.TrimSpace(string(req.HomestayID)))
	if homestayID == "" {
		return createPayload{}, invalid("homestayId", "Please choose a homestay")
	}
	if req.GuestCount < 1 {
		return createPayload{}, invalid("guestCount", "At least one guest is required")
	}
	in, out, err := parseRange(req.CheckInDate, req.CheckOutDate)
	if err != nil {
		return createPayload{}, err
	}
	return createPayload{
		HomestayID:   homestayID,
		CheckInDate:  in,
		CheckOutDate: out,
		GuestCount:   req.GuestCount,
		Notes:        strings.TrimSpace(req.Notes),
	}, nil
}

func parseRange(checkIn, checkOut string) (domain.Date, domain.Date, error) {
	if strings.TrimSpace(checkIn) == "" {
		return domain.Date{}, domain.Date{}, invalid("checkInDate", "Check-in date is required")
	}
	if strings.TrimSpace(checkOut) == "" {
		return domain.Date{}, domain.Date{}, invalid("checkOutDate", "Check-out date is required")
	}
	in, err := domain.ParseDate(checkIn)
	if err != nil {
		return domain.Date{}, domain.Date{}, invalid("checkInDate", "Check-in date is not a valid date")
	}
	out, err := domain.ParseDate(checkOut)
	if err != nil {
		return domain.Date{}, domain.Date{}, invalid("checkOutDate", "Check-out date is not a valid date")
	}

	nights := in.NightsUntil(out)
	if nights <= 0 {
		return domain.Date{}, domain.Date{}, invalid("checkOutDate", "Check-out date must be after check-in date")
	}
	if nights > MaxStayNights {
		return domain.Date{}, domain.Date{}, invalid("checkOutDate", "Stays longer than 365 nights cannot be booked online, please choose a shorter stay")
	}
	return in, out, nil
}

func (s *Service) GetBooking(ctx context.Context, id domain.ID) (*domain.Booking, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, invalid("id", "Booking id is required")
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

// GetUserBookings lists the client's bookings, newest first.
func (s *Service) GetUserBookings(ctx context.Context) ([]domain.Booking, error) {
	var raw json.RawMessage
	if err := s.backend.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/bookings/user"}, &raw); err != nil {
		return nil, err
	}
	list, err := DecodeBookingList(raw)
	if err != nil {
		s.log.WithError(err).Warn("booking list response not recognized")
		return nil, err
	}
	return list, nil
}

// CheckExistingBooking never fails. When the lookup does, the result says so
// and carries no booking, so the caller can offer a new booking form.
func (s *Service) CheckExistingBooking(ctx context.Context, homestayID domain.ID) Existing {
	list, err := s.GetUserBookings(ctx)
	if err != nil {
		msg := "Could not check your existing bookings"
		var gerr *gateway.Error
		if errors.As(err, &gerr) && gerr.Message != "" {
			msg = gerr.Message
		}
		return Existing{Error: msg}
	}

	for i := range list {
		b := list[i]
		if b.HomestayID == homestayID && b.Status.Active() {
			return Existing{HasBooking: true, Booking: &b}
		}
	}
	return Existing{}
}

// VerifyBooking exchanges an emailed token for the booking it confirms. The
// result tells the caller where to navigate and after how long.
func (s *Service) VerifyBooking(ctx context.Context, token string) (*Verification, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalid("token", "Verification token is required")
	}

	var b domain.Booking
	if err := s.backend.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/bookings/verify/" + url.PathEscape(token),
	}, &b); err != nil {
		return nil, err
	}

	s.log.WithField("booking_id", b.ID).Info("booking verified")
	return &Verification{
		Booking: b,
		Message: "Your booking has been verified",
		Redirect: Redirect{
			To:      s.cfg.VerifyRedirectPath,
			After:   s.cfg.VerifyRedirectDelay,
			Seconds: int(s.cfg.VerifyRedirectDelay / time.Second),
		},
	}, nil
}

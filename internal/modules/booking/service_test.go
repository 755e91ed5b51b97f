package booking

import (
	"context"
	"net/http"
	"testing"
	"time"

	"homestay/internal/apitest"
	"homestay/internal/domain"
	"homestay/internal/gateway"
	"homestay/internal/notify"
	"homestay/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Do(ctx context.Context, req gateway.Request, out any) error {
	args := m.Called(ctx, req, out)
	return args.Error(0)
}

type fixture struct {
	api  *apitest.Backend
	user domain.User
	rec  *notify.Recorder
	svc  *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	api := apitest.New(t)
	user := api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)

	store := session.NewStore("browser-1", session.NewMemoryTier(), session.NewMemoryTier(), nil)
	require.NoError(t, store.Save(context.Background(), session.Snapshot{Token: api.Token(user), User: user}, false))

	rec := &notify.Recorder{}
	gw := gateway.New(gateway.Config{BaseURL: api.URL(), Timeout: 2 * time.Second}, nil).For(store, rec)
	return &fixture{
		api:  api,
		user: user,
		rec:  rec,
		svc:  NewService(gw, Config{VerifyRedirectPath: "/profile", VerifyRedirectDelay: 5 * time.Second}, nil),
	}
}

func TestCreateBooking_Success(t *testing.T) {
	f := setup(t)

	b, err := f.svc.CreateBooking(context.Background(), CreateBookingRequest{
		HomestayID:   "1",
		CheckInDate:  "2025-07-01",
		CheckOutDate: "2025-07-04",
		GuestCount:   2,
		Notes:        "  late arrival ",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, domain.Money(1500000), b.TotalPrice)
	assert.Equal(t, "late arrival", b.Notes)
	assert.Equal(t, 1, f.api.Calls("POST /bookings"))
}

func TestCreateBooking_LocalValidationMakesNoCall(t *testing.T) {
	cases := map[string]struct {
		req   CreateBookingRequest
		field string
	}{
		"missing homestay":       {CreateBookingRequest{CheckInDate: "2025-07-01", CheckOutDate: "2025-07-02", GuestCount: 1}, "homestayId"},
		"no guests":              {CreateBookingRequest{HomestayID: "1", CheckInDate: "2025-07-01", CheckOutDate: "2025-07-02"}, "guestCount"},
		"missing check-in":       {CreateBookingRequest{HomestayID: "1", CheckOutDate: "2025-07-02", GuestCount: 1}, "checkInDate"},
		"bad date":               {CreateBookingRequest{HomestayID: "1", CheckInDate: "July 1st", CheckOutDate: "2025-07-02", GuestCount: 1}, "checkInDate"},
		"check-out equals start": {CreateBookingRequest{HomestayID: "1", CheckInDate: "2025-07-01", CheckOutDate: "2025-07-01", GuestCount: 1}, "checkOutDate"},
		"check-out before start": {CreateBookingRequest{HomestayID: "1", CheckInDate: "2025-07-05", CheckOutDate: "2025-07-01", GuestCount: 1}, "checkOutDate"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			backend := new(mockBackend)
			svc := NewService(backend, Config{}, nil)

			_, err := svc.CreateBooking(context.Background(), tc.req)

			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			backend.AssertNotCalled(t, "Do", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateBooking_StayOverCapNeverSent(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateBooking(context.Background(), CreateBookingRequest{
		HomestayID:   "1",
		CheckInDate:  "2025-01-01",
		CheckOutDate: "2026-01-02", // 366 nights
		GuestCount:   1,
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "365 nights")
	assert.Zero(t, f.api.TotalCalls())
	assert.Zero(t, f.rec.Len())
}

func TestCreateBooking_YearLongStayIsAllowed(t *testing.T) {
	f := setup(t)

	b, err := f.svc.CreateBooking(context.Background(), CreateBookingRequest{
		HomestayID:   "2",
		CheckInDate:  "2025-01-01",
		CheckOutDate: "2026-01-01",
		GuestCount:   1,
	})

	require.NoError(t, err)
	assert.Equal(t, MaxStayNights, b.Nights())
}

func TestCreateBooking_BackendConflictSurfacedVerbatim(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := CreateBookingRequest{HomestayID: "1", CheckInDate: "2025-07-01", CheckOutDate: "2025-07-04", GuestCount: 2}
	_, err := f.svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, req)

	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, gateway.KindConflict, gerr.Kind)
	assert.Equal(t, "Homestay is not available for the selected dates", gerr.Message)
	assert.Equal(t, 1, f.rec.Len())
}

func TestCreateBooking_PriceOverflowGetsActionableMessage(t *testing.T) {
	f := setup(t)
	f.api.Fail("POST /bookings", http.StatusInternalServerError, "value \"3000000000\" is out of range for type integer")

	_, err := f.svc.CreateBooking(context.Background(), CreateBookingRequest{
		HomestayID: "2", CheckInDate: "2025-01-01", CheckOutDate: "2025-12-31", GuestCount: 1,
	})

	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, gateway.KindConflict, gerr.Kind)
	assert.Equal(t, gateway.MsgPriceOverflow, gerr.Message)
}

func TestGetUserBookings_NewestFirstForEveryShape(t *testing.T) {
	shapes := map[string]apitest.ListShape{
		"envelope":       apitest.ShapeEnvelope,
		"bare":           apitest.ShapeBare,
		"nested data":    apitest.ShapeNestedData,
		"bookings key":   apitest.ShapeBookingsKey,
		"envelope keyed": apitest.ShapeEnvelopeKeyed,
	}

	for name, shape := range shapes {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			first := f.api.Seed(f.user, domain.Booking{HomestayID: "1"})
			second := f.api.Seed(f.user, domain.Booking{HomestayID: "2"})
			f.api.SetListShape(shape)

			list, err := f.svc.GetUserBookings(context.Background())

			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.ID, list[0].ID)
			assert.Equal(t, first.ID, list[1].ID)
		})
	}
}

func TestCheckExistingBooking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.api.Seed(f.user, domain.Booking{HomestayID: "1", Status: domain.BookingCancelled})
	active := f.api.Seed(f.user, domain.Booking{HomestayID: "1", Status: domain.BookingConfirmed})
	f.api.Seed(f.user, domain.Booking{HomestayID: "2", Status: domain.BookingCancelled})

	got := f.svc.CheckExistingBooking(ctx, "1")
	assert.True(t, got.HasBooking)
	require.NotNil(t, got.Booking)
	assert.Equal(t, active.ID, got.Booking.ID)
	assert.Empty(t, got.Error)

	none := f.svc.CheckExistingBooking(ctx, "2")
	assert.False(t, none.HasBooking)
	assert.Nil(t, none.Booking)
}

func TestCheckExistingBooking_NeverFails(t *testing.T) {
	f := setup(t)
	f.api.Fail("GET /bookings/user", http.StatusInternalServerError, "database unavailable")

	got := f.svc.CheckExistingBooking(context.Background(), "1")

	assert.False(t, got.HasBooking)
	assert.Nil(t, got.Booking)
	assert.Equal(t, "database unavailable", got.Error)
}

func TestVerifyBooking(t *testing.T) {
	f := setup(t)
	seeded := f.api.Seed(f.user, domain.Booking{HomestayID: "1"})

	v, err := f.svc.VerifyBooking(context.Background(), "verify-"+string(seeded.ID))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, v.Booking.Status)
	assert.Equal(t, "/profile", v.Redirect.To)
	assert.Equal(t, 5*time.Second, v.Redirect.After)
	assert.Equal(t, 5, v.Redirect.Seconds)
}

func TestVerifyBooking_BadToken(t *testing.T) {
	f := setup(t)

	_, err := f.svc.VerifyBooking(context.Background(), "nope")
	assert.True(t, gateway.IsKind(err, gateway.KindValidation))

	_, err = f.svc.VerifyBooking(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetBooking(t *testing.T) {
	f := setup(t)
	seeded := f.api.Seed(f.user, domain.Booking{HomestayID: "2"})

	b, err := f.svc.GetBooking(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lake Cabin", b.Homestay.Name)

	_, err = f.svc.GetBooking(context.Background(), "999")
	assert.True(t, gateway.IsKind(err, gateway.KindNotFound))
}

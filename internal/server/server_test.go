package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"homestay/internal/apitest"
	"homestay/internal/config"
	"homestay/internal/domain"
	"homestay/internal/middleware"
	"homestay/internal/session"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code     string         `json:"code"`
		Message  string         `json:"message"`
		Redirect string         `json:"redirect"`
		Details  map[string]any `json:"details"`
	} `json:"error"`
}

type browser struct {
	t    *testing.T
	base string
	http *http.Client
	last *http.Response
}

type suite struct {
	api   *apitest.Backend
	tiers *apitest.Tiers
	srv   *httptest.Server
	cfg   *config.Config
	log   *logrus.Logger
}

func setup(t *testing.T) *suite {
	t.Helper()
	api := apitest.New(t)
	tiers := apitest.NewTiers(t)

	cfg := &config.Config{
		AppEnv:              "test",
		APIURL:              api.URL(),
		APITimeout:          2 * time.Second,
		SessionTTL:          24 * time.Hour,
		CookiePath:          "/",
		CookieSameSite:      "Lax",
		VerifyRedirectDelay: time.Second,
		VerifyRedirectPath:  "/profile",
		AuthRatePerMinute:   600,
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	s := New(cfg, Options{Durable: tiers.Durable, Scoped: tiers.Scoped}, log)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &suite{api: api, tiers: tiers, srv: srv, cfg: cfg, log: log}
}

// restart simulates a new process over the same durable tier and returns
// its base URL. Session-scoped data does not survive.
func (s *suite) restart(t *testing.T) string {
	t.Helper()
	next := New(s.cfg, Options{Durable: s.tiers.Durable, Scoped: session.NewMemoryTier()}, s.log)
	srv := httptest.NewServer(next.Handler())
	t.Cleanup(srv.Close)
	s.srv = srv
	return srv.URL
}

func (s *suite) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: s.srv.URL, http: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (b *browser) do(method, path string, body any) (int, envelope) {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, r)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	b.last = resp

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (b *browser) login(email string, remember bool) {
	b.t.Helper()
	status, env := b.do(http.MethodPost, "/api/auth/login", map[string]any{
		"email": email, "password": apitest.DefaultPassword, "rememberMe": remember,
	})
	require.Equal(b.t, http.StatusOK, status, env.Error)
}

// clientCookie returns the last client cookie of the last response; a later
// Set-Cookie overrides an earlier one, as in a browser.
func (b *browser) clientCookie() *http.Cookie {
	var found *http.Cookie
	for _, c := range b.last.Cookies() {
		if c.Name == middleware.ClientCookieName {
			found = c
		}
	}
	return found
}

type bookingView struct {
	Booking    domain.Booking `json:"booking"`
	Projection struct {
		Actions []string `json:"actions"`
		Notice  string   `json:"notice"`
		Payment struct {
			Code string `json:"code"`
		} `json:"payment"`
	} `json:"projection"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAnonymousSession(t *testing.T) {
	s := setup(t)
	guest := s.browser(t)

	status, env := guest.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[map[string]any](t, env.Data)["authenticated"].(bool))

	status, env = guest.do(http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "/login", env.Error.Redirect)
	assert.Zero(t, s.api.Calls("GET /bookings/user"))
}

func TestLogin_RememberFlagControlsCookie(t *testing.T) {
	s := setup(t)
	s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)

	remembered := s.browser(t)
	remembered.login("lan@example.com", true)
	require.NotNil(t, remembered.clientCookie())
	assert.Equal(t, 24*3600, remembered.clientCookie().MaxAge)

	status, env := remembered.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, status)
	restored := decode[map[string]any](t, env.Data)
	assert.True(t, restored["authenticated"].(bool))
	assert.True(t, restored["remembered"].(bool))
	assert.Zero(t, s.api.Calls("GET /auth/me"), "the backend has just issued the token")

	tab := s.browser(t)
	tab.login("lan@example.com", false)
	require.NotNil(t, tab.clientCookie())
	assert.Zero(t, tab.clientCookie().MaxAge)
}

func TestRememberedSessionIsRevalidatedOncePerProcess(t *testing.T) {
	s := setup(t)
	s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)
	b := s.browser(t)
	b.login("lan@example.com", true)

	list := func() {
		for i := 0; i < 3; i++ {
			status, env := b.do(http.MethodGet, "/api/bookings", nil)
			require.Equal(t, http.StatusOK, status, env.Error)
		}
	}
	list()
	assert.Zero(t, s.api.Calls("GET /auth/me"))

	b.base = s.restart(t)
	list()
	assert.Equal(t, 1, s.api.Calls("GET /auth/me"))
}

func TestRememberedSessionSurvivesBackendFailure(t *testing.T) {
	s := setup(t)
	s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)
	b := s.browser(t)
	b.login("lan@example.com", true)
	b.base = s.restart(t)

	s.api.Fail("GET /auth/me", http.StatusServiceUnavailable, "maintenance")
	status, _ := b.do(http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, http.StatusBadGateway, status)

	status, env := b.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[map[string]any](t, env.Data)["authenticated"].(bool))

	status, _ = b.do(http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, s.api.Calls("GET /auth/me"))
}

func TestLogin_RotatesClientID(t *testing.T) {
	s := setup(t)
	s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)
	b := s.browser(t)
	b.do(http.MethodGet, "/api/session", nil)
	planted := b.clientCookie().Value

	b.login("lan@example.com", false)
	rotated := b.clientCookie()
	require.NotNil(t, rotated)
	assert.NotEqual(t, planted, rotated.Value)

	// whoever still holds the old id holds no session
	u, err := url.Parse(s.srv.URL)
	require.NoError(t, err)
	other := s.browser(t)
	other.http.Jar.SetCookies(u, []*http.Cookie{{Name: middleware.ClientCookieName, Value: planted, Path: "/"}})
	_, env := other.do(http.MethodGet, "/api/session", nil)
	assert.False(t, decode[map[string]any](t, env.Data)["authenticated"].(bool))

	_, env = b.do(http.MethodGet, "/api/session", nil)
	assert.True(t, decode[map[string]any](t, env.Data)["authenticated"].(bool))
}

func TestLogin_WrongPassword(t *testing.T) {
	s := setup(t)
	s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)

	status, env := s.browser(t).do(http.MethodPost, "/api/auth/login", map[string]any{
		"email": "lan@example.com", "password": "Wrong1234",
	})

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "LOGIN_FAILED", env.Error.Code)
}

func TestBackendRejectionTearsDownSession(t *testing.T) {
	s := setup(t)
	s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)
	b := s.browser(t)
	b.login("lan@example.com", false)

	s.api.Fail("GET /bookings/user", http.StatusUnauthorized, "Token expired")
	status, env := b.do(http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "/login", env.Error.Redirect)

	_, env = b.do(http.MethodGet, "/api/session", nil)
	assert.False(t, decode[map[string]any](t, env.Data)["authenticated"].(bool))
}

func TestBookingAndPaymentFlow(t *testing.T) {
	s := setup(t)
	s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)
	s.api.AddUser("admin@example.com", "Hoa", "Le", domain.RoleAdmin)
	guest := s.browser(t)
	guest.login("lan@example.com", true)

	// over-long stays never reach the backend
	status, env := guest.do(http.MethodPost, "/api/bookings", map[string]any{
		"homestayId": "1", "checkInDate": "2025-01-01", "checkOutDate": "2026-06-01", "guestCount": 2,
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "checkOutDate", env.Error.Details["field"])
	assert.Zero(t, s.api.Calls("POST /bookings"))

	status, env = guest.do(http.MethodPost, "/api/bookings", map[string]any{
		"homestayId": "1", "checkInDate": "2025-07-01", "checkOutDate": "2025-07-03", "guestCount": 2,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	created := decode[bookingView](t, env.Data)
	id := string(created.Booking.ID)
	assert.Equal(t, domain.BookingPending, created.Booking.Status)
	assert.Empty(t, created.Projection.Actions)

	status, env = guest.do(http.MethodGet, "/api/homestays/1/booking", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[map[string]any](t, env.Data)["hasBooking"].(bool))

	status, env = guest.do(http.MethodGet, "/api/bookings/verify/verify-"+id, nil)
	require.Equal(t, http.StatusOK, status)
	verified := decode[struct {
		Booking  bookingView    `json:"booking"`
		Redirect map[string]any `json:"redirect"`
	}](t, env.Data)
	assert.Equal(t, []string{"self_report_payment"}, verified.Booking.Projection.Actions)
	assert.Equal(t, "/profile", verified.Redirect["to"])

	status, env = guest.do(http.MethodGet, "/api/bookings/"+id+"/payment", nil)
	require.Equal(t, http.StatusOK, status)
	details := decode[map[string]any](t, env.Data)
	assert.Equal(t, "1.000.000 ₫", details["amount"])
	assert.Equal(t, 1, s.api.Calls("POST /bookings/:id/payments"))

	status, env = guest.do(http.MethodPost, "/api/bookings/"+id+"/payment-confirmation", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "CONFIRMATION_REQUIRED", env.Error.Code)

	status, env = guest.do(http.MethodPost, "/api/bookings/"+id+"/payment-confirmation", map[string]any{"confirmed": true})
	require.Equal(t, http.StatusOK, status, env.Error)
	reported := decode[bookingView](t, env.Data)
	assert.Equal(t, domain.PaymentPendingVerification, reported.Booking.PaymentStatus)
	assert.Empty(t, reported.Projection.Actions)

	status, _ = guest.do(http.MethodPost, "/api/bookings/"+id+"/payment-confirmation", map[string]any{"confirmed": true})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = guest.do(http.MethodGet, "/api/admin/payment-approvals", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = guest.do(http.MethodPost, "/api/admin/bookings/"+id+"/payment/verify", map[string]any{"approved": true})
	assert.Equal(t, http.StatusForbidden, status)

	staff := s.browser(t)
	staff.login("admin@example.com", false)

	status, env = staff.do(http.MethodGet, "/api/admin/payment-approvals?q=sunny", nil)
	require.Equal(t, http.StatusOK, status)
	queue := decode[struct {
		Items []bookingView `json:"items"`
		Total int           `json:"total"`
	}](t, env.Data)
	require.Equal(t, 1, queue.Total)
	assert.Equal(t, []string{"approve_payment", "reject_payment"}, queue.Items[0].Projection.Actions)

	before := s.api.TotalCalls()
	status, env = staff.do(http.MethodPost, "/api/admin/bookings/"+id+"/payment/verify", map[string]any{"approved": false, "notes": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "notes", env.Error.Details["field"])
	assert.Equal(t, before, s.api.TotalCalls(), "a reasonless rejection makes no backend call")

	status, env = staff.do(http.MethodPost, "/api/admin/bookings/"+id+"/payment/verify", map[string]any{"approved": true})
	require.Equal(t, http.StatusOK, status, env.Error)
	decided := decode[struct {
		Item      bookingView `json:"item"`
		Remaining int         `json:"remaining"`
	}](t, env.Data)
	assert.Equal(t, domain.PaymentPaid, decided.Item.Booking.PaymentStatus)
	assert.Zero(t, decided.Remaining)
	assert.Equal(t, "Payment confirmed by admin", s.api.Booking(domain.ID(id)).Notes)

	status, env = guest.do(http.MethodGet, "/api/bookings/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	final := decode[bookingView](t, env.Data)
	assert.Equal(t, "paid", final.Projection.Payment.Code)
	assert.Empty(t, final.Projection.Actions)
}

func TestVerificationPushesCountdownThenNavigate(t *testing.T) {
	s := setup(t)
	owner := s.api.AddUser("lan@example.com", "Lan", "Nguyen", domain.RoleUser)
	seeded := s.api.Seed(owner, domain.Booking{HomestayID: "2"})
	b := s.browser(t)
	b.do(http.MethodGet, "/api/session", nil) // obtain the client cookie

	u, err := url.Parse(s.srv.URL)
	require.NoError(t, err)
	header := http.Header{}
	for _, c := range b.http.Jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.srv.URL, "http")+"/api/ws/notifications", header)
	require.NoError(t, err)
	defer ws.Close()
	time.Sleep(50 * time.Millisecond) // let the hub register the connection

	status, _ := b.do(http.MethodGet, "/api/bookings/verify/verify-"+string(seeded.ID), nil)
	require.Equal(t, http.StatusOK, status)

	var types []string
	var seconds []float64
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		require.NoError(t, ws.ReadJSON(&ev))
		types = append(types, ev.Type)
		if ev.Type == "countdown" {
			seconds = append(seconds, ev.Payload["seconds"].(float64))
			continue
		}
		assert.Equal(t, "/profile", ev.Payload["to"])
		break
	}
	assert.Equal(t, []string{"countdown", "countdown", "navigate"}, types)
	assert.Equal(t, []float64{1, 0}, seconds)
}

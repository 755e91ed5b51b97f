// Package apitest runs an in-memory stand-in for the homestay REST backend.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"homestay/internal/domain"
	"homestay/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListShape selects how GET /bookings/user wraps its collection.
type ListShape int

const (
	ShapeEnvelope      ListShape = iota // {success, data: [...]}
	ShapeBare                           // [...]
	ShapeNestedData                     // {data: {data: [...]}}
	ShapeBookingsKey                    // {bookings: [...]}
	ShapeEnvelopeKeyed                  // {success, data: {bookings: [...]}}
)

const (
	DefaultPassword   = "Secret123"
	VerifyEmailToken  = "email-token-ok"
	ResetToken        = "reset-token-ok"
	overflowThreshold = 365
)

type account struct {
	user     domain.User
	password string
}

type homestay struct {
	name  string
	price domain.Money
}

type failure struct {
	status  int
	message string
}

// Backend is a fake of the REST API the front end talks to.
type Backend struct {
	Server *httptest.Server
	jwt    *jwt.Service

	mu          sync.Mutex
	accounts    map[string]*account
	homestays   map[domain.ID]homestay
	bookings    map[domain.ID]*domain.Booking
	order       []domain.ID
	verifyToken map[string]domain.ID
	calls       map[string]int
	failures    map[string]failure
	holds       map[string]chan struct{}
	shape       ListShape
	nextID      int
	clock       time.Time
}

func New(t testing.TB) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		jwt:         jwt.New("apitest-secret", time.Hour),
		accounts:    make(map[string]*account),
		bookings:    make(map[domain.ID]*domain.Booking),
		verifyToken: make(map[string]domain.ID),
		calls:       make(map[string]int),
		failures:    make(map[string]failure),
		holds:       make(map[string]chan struct{}),
		homestays: map[domain.ID]homestay{
			"1": {name: "Sunny Villa", price: 500000},
			"2": {name: "Lake Cabin", price: 800000},
		},
		nextID: 100,
		clock:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	r := gin.New()
	r.Use(b.record)
	b.routes(r)
	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

// Calls returns how often a route was hit, e.g. Calls("POST /bookings").
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

func (b *Backend) SetListShape(shape ListShape) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shape = shape
}

// Fail makes the next call of route answer with status and message.
func (b *Backend) Fail(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, message: message}
}

// Hold blocks every call of route until the returned release is called.
func (b *Backend) Hold(route string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.holds[route] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.holds, route)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Backend) AddUser(email, firstName, lastName string, role domain.UserRole) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, DefaultPassword, firstName, lastName, role)
}

func (b *Backend) addUserLocked(email, password, firstName, lastName string, role domain.UserRole) domain.User {
	b.nextID++
	u := domain.User{
		ID:        domain.ID(strconv.Itoa(b.nextID)),
		FirstName: firstName,
		LastName:  lastName,
		FullName:  strings.TrimSpace(firstName + " " + lastName),
		Email:     email,
		Role:      role,
	}
	b.accounts[strings.ToLower(email)] = &account{user: u, password: password}
	return u
}

// Token issues a valid bearer token for user.
func (b *Backend) Token(user domain.User) string {
	token, err := b.jwt.GenerateToken(string(user.ID), string(user.Role))
	if err != nil {
		panic(err)
	}
	return token
}

func (b *Backend) ExpiredToken(user domain.User) string {
	token, err := b.jwt.GenerateExpired(string(user.ID), string(user.Role))
	if err != nil {
		panic(err)
	}
	return token
}

// Seed stores a booking as is, filling the ID and timestamps when empty.
func (b *Backend) Seed(owner domain.User, bk domain.Booking) domain.Booking {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bk.ID == "" {
		b.nextID++
		bk.ID = domain.ID(strconv.Itoa(b.nextID))
	}
	if bk.CreatedAt.IsZero() {
		bk.CreatedAt = b.tick()
	}
	if bk.Status == "" {
		bk.Status = domain.BookingPending
	}
	if bk.PaymentStatus == "" {
		bk.PaymentStatus = domain.PaymentUnpaid
	}
	bk.UpdatedAt = bk.CreatedAt
	bk.User = &domain.BookingUser{ID: owner.ID, FullName: owner.FullName, Email: owner.Email}
	if hs, ok := b.homestays[bk.HomestayID]; ok {
		bk.Homestay = &domain.HomestayRef{ID: bk.HomestayID, Name: hs.name}
	}
	stored := bk
	b.bookings[bk.ID] = &stored
	b.order = append(b.order, bk.ID)
	b.verifyToken["verify-"+string(bk.ID)] = bk.ID
	return stored
}

func (b *Backend) Booking(id domain.ID) domain.Booking {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bk, ok := b.bookings[id]; ok {
		return *bk
	}
	return domain.Booking{}
}

// SetStatus moves a booking as the backend's own confirmation would.
func (b *Backend) SetStatus(id domain.ID, status domain.BookingStatus, payment domain.PaymentStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bk, ok := b.bookings[id]; ok {
		bk.Status = status
		bk.PaymentStatus = payment
	}
}

func (b *Backend) tick() time.Time {
	b.clock = b.clock.Add(time.Minute)
	return b.clock
}

func (b *Backend) record(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	b.mu.Lock()
	b.calls[route]++
	f, failing := b.failures[route]
	if failing {
		delete(b.failures, route)
	}
	hold := b.holds[route]
	b.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if failing {
		c.AbortWithStatusJSON(f.status, gin.H{"success": false, "message": f.message})
		return
	}
	c.Next()
}

func (b *Backend) routes(r *gin.Engine) {
	r.POST("/auth/login", b.login)
	r.POST("/auth/register", b.register)
	r.GET("/auth/me", b.requireUser, b.me)
	r.POST("/auth/verify-email", b.verifyEmail)
	r.POST("/auth/forgot-password", b.forgotPassword)
	r.POST("/auth/reset-password", b.resetPassword)

	r.POST("/bookings", b.requireUser, b.createBooking)
	r.GET("/bookings/user", b.requireUser, b.userBookings)
	r.GET("/bookings/verify/:token", b.verifyBooking)
	r.GET("/bookings/:id", b.requireUser, b.getBooking)
	r.POST("/bookings/:id/payment-confirmation", b.requireUser, b.confirmPayment)
	r.POST("/bookings/:id/payments", b.requireUser, b.initiatePayment)
	r.GET("/bookings/:id/payments", b.requireUser, b.paymentInfo)
	r.POST("/bookings/:id/payments/verify", b.requireUser, b.requireAdmin, b.verifyPayment)

	r.GET("/admin/bookings/payment-approvals", b.requireUser, b.requireAdmin, b.paymentApprovals)
	r.GET("/admin/bookings", b.requireUser, b.requireAdmin, b.adminBookings)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func (b *Backend) requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		fail(c, http.StatusUnauthorized, "Missing token")
		return
	}
	claims, err := b.jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		fail(c, http.StatusUnauthorized, "Token expired")
		return
	}
	c.Set("user_id", claims.UserID)
	c.Set("role", claims.Role)
	c.Next()
}

func (b *Backend) requireAdmin(c *gin.Context) {
	if c.GetString("role") != string(domain.RoleAdmin) {
		fail(c, http.StatusForbidden, "Admin access required")
		return
	}
	c.Next()
}

func (b *Backend) userByID(id string) *domain.User {
	for _, a := range b.accounts {
		if string(a.user.ID) == id {
			u := a.user
			return &u
		}
	}
	return nil
}

func (b *Backend) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	a, found := b.accounts[strings.ToLower(req.Email)]
	b.mu.Unlock()
	if !found || a.password != req.Password {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	ok(c, http.StatusOK, gin.H{"token": b.Token(a.user), "user": a.user})
}

func (b *Backend) register(c *gin.Context) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	if _, exists := b.accounts[strings.ToLower(req.Email)]; exists {
		b.mu.Unlock()
		fail(c, http.StatusConflict, "Email is already registered")
		return
	}
	u := b.addUserLocked(req.Email, req.Password, req.FirstName, req.LastName, domain.RoleUser)
	b.mu.Unlock()
	ok(c, http.StatusCreated, gin.H{"token": b.Token(u), "user": u})
}

func (b *Backend) me(c *gin.Context) {
	b.mu.Lock()
	u := b.userByID(c.GetString("user_id"))
	b.mu.Unlock()
	if u == nil {
		fail(c, http.StatusUnauthorized, "User not found")
		return
	}
	ok(c, http.StatusOK, gin.H{"user": u})
}

func (b *Backend) verifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Token != VerifyEmailToken {
		fail(c, http.StatusBadRequest, "Verification link is invalid or has expired")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified"})
}

func (b *Backend) forgotPassword(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "If the email exists, a reset link was sent"})
}

func (b *Backend) resetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Token != ResetToken {
		fail(c, http.StatusBadRequest, "Reset link is invalid or has expired")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated"})
}

func (b *Backend) createBooking(c *gin.Context) {
	var req struct {
		HomestayID   domain.ID   `json:"homestayId"`
		CheckInDate  domain.Date `json:"checkInDate"`
		CheckOutDate domain.Date `json:"checkOutDate"`
		GuestCount   int         `json:"guestCount"`
		Notes        string      `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	hs, found := b.homestays[req.HomestayID]
	if !found {
		fail(c, http.StatusNotFound, "Homestay not found")
		return
	}
	nights := req.CheckInDate.NightsUntil(req.CheckOutDate)
	if nights <= 0 || req.GuestCount < 1 {
		fail(c, http.StatusUnprocessableEntity, "Invalid booking dates or guest count")
		return
	}
	if nights > overflowThreshold {
		fail(c, http.StatusInternalServerError, "numeric field overflow")
		return
	}
	for _, id := range b.order {
		other := b.bookings[id]
		if other.HomestayID == req.HomestayID && other.Status.Active() &&
			req.CheckInDate.Before(other.CheckOutDate.Time) && other.CheckInDate.Before(req.CheckOutDate.Time) {
			fail(c, http.StatusConflict, "Homestay is not available for the selected dates")
			return
		}
	}

	owner := b.userByID(c.GetString("user_id"))
	b.nextID++
	now := b.tick()
	bk := &domain.Booking{
		ID:            domain.ID(strconv.Itoa(b.nextID)),
		HomestayID:    req.HomestayID,
		CheckInDate:   req.CheckInDate,
		CheckOutDate:  req.CheckOutDate,
		GuestCount:    req.GuestCount,
		TotalPrice:    domain.Money(nights) * hs.price,
		Notes:         req.Notes,
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
		Homestay:      &domain.HomestayRef{ID: req.HomestayID, Name: hs.name},
	}
	if owner != nil {
		bk.User = &domain.BookingUser{ID: owner.ID, FullName: owner.FullName, Email: owner.Email}
	}
	b.bookings[bk.ID] = bk
	b.order = append(b.order, bk.ID)
	b.verifyToken["verify-"+string(bk.ID)] = bk.ID
	ok(c, http.StatusCreated, bk)
}

func (b *Backend) userBookings(c *gin.Context) {
	b.mu.Lock()
	uid := c.GetString("user_id")
	// oldest first on purpose; clients sort
	list := make([]domain.Booking, 0)
	for _, id := range b.order {
		bk := b.bookings[id]
		if bk.User != nil && string(bk.User.ID) == uid {
			list = append(list, *bk)
		}
	}
	shape := b.shape
	b.mu.Unlock()

	switch shape {
	case ShapeBare:
		c.JSON(http.StatusOK, list)
	case ShapeNestedData:
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"data": list}})
	case ShapeBookingsKey:
		c.JSON(http.StatusOK, gin.H{"bookings": list})
	case ShapeEnvelopeKeyed:
		ok(c, http.StatusOK, gin.H{"bookings": list})
	default:
		ok(c, http.StatusOK, list)
	}
}

// owned loads a booking visible to the caller; admins see every booking.
func (b *Backend) owned(c *gin.Context) *domain.Booking {
	bk, found := b.bookings[domain.ID(c.Param("id"))]
	if !found {
		fail(c, http.StatusNotFound, "Booking not found")
		return nil
	}
	if c.GetString("role") != string(domain.RoleAdmin) && (bk.User == nil || string(bk.User.ID) != c.GetString("user_id")) {
		fail(c, http.StatusForbidden, "Not your booking")
		return nil
	}
	return bk
}

func (b *Backend) getBooking(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bk := b.owned(c); bk != nil {
		ok(c, http.StatusOK, bk)
	}
}

func (b *Backend) verifyBooking(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, found := b.verifyToken[c.Param("token")]
	if !found {
		fail(c, http.StatusBadRequest, "Verification token is invalid or has expired")
		return
	}
	bk := b.bookings[id]
	if bk.Status == domain.BookingPending {
		bk.Status = domain.BookingConfirmed
		bk.UpdatedAt = b.tick()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": bk, "message": "Booking verified"})
}

func (b *Backend) confirmPayment(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk := b.owned(c)
	if bk == nil {
		return
	}
	if bk.Status != domain.BookingConfirmed {
		fail(c, http.StatusBadRequest, "Booking is not confirmed yet")
		return
	}
	next, err := domain.NextPaymentStatus(bk.PaymentStatus, domain.EventSelfReport)
	if err != nil {
		fail(c, http.StatusBadRequest, "Payment was already reported")
		return
	}
	now := b.tick()
	bk.PaymentStatus = next
	bk.PaymentConfirmedAt = &now
	bk.UpdatedAt = now
	ok(c, http.StatusOK, bk)
}

func paymentOf(bk *domain.Booking) domain.Payment {
	return domain.Payment{
		BookingID:          bk.ID,
		PaymentReference:   bk.PaymentReference,
		PaymentQRCode:      bk.PaymentQRCode,
		PaymentStatus:      bk.PaymentStatus,
		TotalPrice:         bk.TotalPrice,
		PaymentConfirmedAt: bk.PaymentConfirmedAt,
	}
}

func (b *Backend) initiatePayment(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk := b.owned(c)
	if bk == nil {
		return
	}
	if bk.PaymentReference == "" {
		bk.PaymentReference = "HS-" + strings.ToUpper(uuid.NewString()[:8])
		bk.PaymentQRCode = fmt.Sprintf("https://qr.example.test/%s.png", bk.PaymentReference)
	}
	ok(c, http.StatusCreated, paymentOf(bk))
}

func (b *Backend) paymentInfo(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bk := b.owned(c); bk != nil {
		ok(c, http.StatusOK, paymentOf(bk))
	}
}

func (b *Backend) verifyPayment(c *gin.Context) {
	var req struct {
		Approved bool   `json:"approved"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bk := b.owned(c)
	if bk == nil {
		return
	}
	event := domain.EventReject
	if req.Approved {
		event = domain.EventApprove
	}
	next, err := domain.NextPaymentStatus(bk.PaymentStatus, event)
	if err != nil {
		fail(c, http.StatusBadRequest, "Payment is not awaiting verification")
		return
	}
	bk.PaymentStatus = next
	bk.Notes = req.Notes
	bk.UpdatedAt = b.tick()
	ok(c, http.StatusOK, bk)
}

func (b *Backend) byPaymentStatus(status domain.PaymentStatus) []domain.Booking {
	list := make([]domain.Booking, 0)
	for _, id := range b.order {
		if bk := b.bookings[id]; bk.PaymentStatus == status {
			list = append(list, *bk)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

func (b *Backend) paymentApprovals(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok(c, http.StatusOK, b.byPaymentStatus(domain.PaymentPendingVerification))
}

func (b *Backend) adminBookings(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := domain.ParsePaymentStatus(c.Query("paymentStatus"))
	ok(c, http.StatusOK, b.byPaymentStatus(status))
}

// Package server wires the front-end HTTP surface: every request gets the
// session, gateway and services of the browser client that sent it.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"homestay/internal/config"
	"homestay/internal/domain"
	"homestay/internal/gateway"
	"homestay/internal/middleware"
	"homestay/internal/modules/admin"
	"homestay/internal/modules/auth"
	"homestay/internal/modules/booking"
	"homestay/internal/modules/payment"
	"homestay/internal/notify"
	"homestay/internal/session"
	"homestay/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const scopeKey = "scope"

// Options are the collaborators the server does not build itself.
type Options struct {
	Durable    session.Tier
	Scoped     session.Tier
	HTTPClient *http.Client
}

type Server struct {
	cfg     *config.Config
	log     *logrus.Logger
	gateway *gateway.Client
	durable session.Tier
	scoped  session.Tier
	checked *session.Revalidations
	hub     *notify.Hub
	group   *singleflight.Group
	queues  *admin.Queues
	cookie  middleware.ClientCookie
	limiter *middleware.RateLimiter
	engine  *gin.Engine
}

// scope is everything that belongs to one request's client.
type scope struct {
	clientID string
	store    *session.Store
	auth     *auth.Service
	bookings *booking.Service
	payments *payment.Service
	admin    *admin.Service
}

func New(cfg *config.Config, opts Options, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if opts.Scoped == nil {
		opts.Scoped = session.NewMemoryTier()
	}

	s := &Server{
		cfg: cfg,
		log: log,
		gateway: gateway.New(gateway.Config{
			BaseURL:    cfg.APIURL,
			Timeout:    cfg.APITimeout,
			HTTPClient: opts.HTTPClient,
		}, log),
		durable: opts.Durable,
		scoped:  opts.Scoped,
		checked: session.NewRevalidations(),
		hub:     notify.NewHub(cfg.CORSOrigins, log),
		group:   &singleflight.Group{},
		queues:  admin.NewQueues(30 * time.Minute),
		cookie: middleware.ClientCookie{
			Secure:   cfg.CookieSecure,
			SameSite: cfg.SameSite(),
			Path:     cfg.CookiePath,
			TTL:      cfg.SessionTTL,
		},
		limiter: middleware.NewRateLimiter(cfg.AuthRatePerMinute),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Hub() *notify.Hub { return s.hub }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorLogger(s.log), middleware.CORS(s.cfg.CORSOrigins), s.cookie.Handler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/ws/notifications", s.serveWS)

	authHandler := auth.NewHandler(func(c *gin.Context) *auth.Service { return s.scope(c).auth }, sessionCookie{s.cookie, s.hub})
	authHandler.RegisterRoutes(api, s.limiter.Handler())

	protected := api.Group("")
	protected.Use(middleware.RequireSession(s.currentUser))

	bookingHandler := booking.NewHandler(func(c *gin.Context) *booking.Service { return s.scope(c).bookings }, s.afterVerification)
	bookingHandler.RegisterRoutes(api, protected)

	paymentHandler := payment.NewHandler(
		func(c *gin.Context) *payment.Service { return s.scope(c).payments },
		func(c *gin.Context) payment.BookingReader { return s.scope(c).bookings },
	)
	paymentHandler.RegisterRoutes(protected)

	adminGroup := protected.Group("/admin")
	adminGroup.Use(middleware.AdminOnly())
	adminHandler := admin.NewHandler(s.adminQueue)
	adminHandler.RegisterRoutes(adminGroup)

	return r
}

// scope builds the request's services once per client id and caches them on
// the context. Notifications go to the tabs the browser has open, which
// stay under its old id until a sign-in commits.
func (s *Server) scope(c *gin.Context) *scope {
	clientID := middleware.ClientID(c)
	if v, ok := c.Get(scopeKey); ok {
		if sc := v.(*scope); sc.clientID == clientID {
			return sc
		}
	}

	store := session.NewStore(clientID, s.durable, s.scoped, s.log).Track(s.checked)
	gw := s.gateway.For(store, notify.WithLog(s.log, s.hub.For(middleware.BrowserID(c))))
	payments := payment.NewService(gw, s.group, s.log)
	sc := &scope{
		clientID: clientID,
		store:    store,
		auth:     auth.NewService(gw, store, s.log),
		bookings: booking.NewService(gw, booking.Config{
			VerifyRedirectPath:  s.cfg.VerifyRedirectPath,
			VerifyRedirectDelay: s.cfg.VerifyRedirectDelay,
		}, s.log),
		payments: payments,
		admin:    admin.NewService(gw, payments, s.log),
	}
	c.Set(scopeKey, sc)
	return sc
}

// sessionCookie carries the browser's open tabs over to its new client id
// once a sign-in persists it.
type sessionCookie struct {
	middleware.ClientCookie
	hub *notify.Hub
}

func (sc sessionCookie) Persist(c *gin.Context, remember bool) {
	sc.ClientCookie.Persist(c, remember)
	sc.hub.Move(middleware.BrowserID(c), middleware.ClientID(c))
}

func (s *Server) currentUser(c *gin.Context) (*domain.User, error) {
	restored, err := s.scope(c).auth.RestoreSession(c.Request.Context())
	if err != nil {
		return nil, err
	}
	if !restored.Authenticated {
		return nil, nil
	}
	return restored.User, nil
}

func (s *Server) adminQueue(c *gin.Context) *admin.Queue {
	actor := middleware.CurrentUser(c)
	return s.queues.Get(middleware.ClientID(c), s.scope(c).admin, *actor)
}

// afterVerification counts down on the client's open tabs and then tells
// them where to go. It outlives the request.
func (s *Server) afterVerification(c *gin.Context, v *booking.Verification) {
	clientID := middleware.ClientID(c)
	redirect := v.Redirect
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), redirect.After+5*time.Second)
		defer cancel()
		err := view.Countdown(ctx, redirect.After, time.Second, func(remaining time.Duration) {
			s.hub.Push(clientID, notify.Event{Type: notify.EventCountdown, Payload: gin.H{
				"seconds": int(remaining / time.Second),
				"to":      redirect.To,
			}})
		})
		if err != nil {
			s.log.WithError(err).WithField("client_id", clientID).Warn("verification countdown aborted")
			return
		}
		s.hub.Push(clientID, notify.Event{Type: notify.EventNavigate, Payload: gin.H{"to": redirect.To}})
	}()
}

func (s *Server) serveWS(c *gin.Context) {
	if err := s.hub.ServeWS(c.Writer, c.Request, middleware.ClientID(c)); err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
	}
}

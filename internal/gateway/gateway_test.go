package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"homestay/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	mu          sync.Mutex
	token       string
	invalidated int
}

func (f *fakeCreds) Token(context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) Invalidate(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.invalidated++
}

func setupBackend(t *testing.T, register func(r *gin.Engine)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server, creds Credentials, rec *notify.Recorder) *Client {
	return New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil).For(creds, rec)
}

func TestDo_AttachesBearerUnlessPublic(t *testing.T) {
	var seen []string
	srv := setupBackend(t, func(r *gin.Engine) {
		r.GET("/echo", func(c *gin.Context) {
			seen = append(seen, c.GetHeader("Authorization"))
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
		})
	})
	client := newClient(srv, &fakeCreds{token: "abc"}, &notify.Recorder{})

	require.NoError(t, client.Get(context.Background(), "/echo", nil))
	require.NoError(t, client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/echo", Public: true}, nil))

	assert.Equal(t, []string{"Bearer abc", ""}, seen)
}

func TestDo_UnwrapsEnvelope(t *testing.T) {
	srv := setupBackend(t, func(r *gin.Engine) {
		r.GET("/wrapped", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"name": "Villa"}, "message": "ok"})
		})
		r.GET("/bare", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"name": "Cabin"})
		})
	})
	client := newClient(srv, nil, &notify.Recorder{})

	var wrapped, bare struct {
		Name string `json:"name"`
	}
	require.NoError(t, client.Get(context.Background(), "/wrapped", &wrapped))
	require.NoError(t, client.Get(context.Background(), "/bare", &bare))

	assert.Equal(t, "Villa", wrapped.Name)
	assert.Equal(t, "Cabin", bare.Name)
}

func TestDo_RawMessageKeepsPayload(t *testing.T) {
	srv := setupBackend(t, func(r *gin.Engine) {
		r.GET("/list", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"data": []int{1, 2}}})
		})
	})
	client := newClient(srv, nil, &notify.Recorder{})

	var raw json.RawMessage
	require.NoError(t, client.Get(context.Background(), "/list", &raw))
	assert.JSONEq(t, `{"data":[1,2]}`, string(raw))
}

func TestDo_UnauthorizedTearsDownSession(t *testing.T) {
	srv := setupBackend(t, func(r *gin.Engine) {
		r.GET("/private", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "jwt expired"})
		})
	})
	creds := &fakeCreds{token: "stale"}
	rec := &notify.Recorder{}
	client := newClient(srv, creds, rec)

	err := client.Get(context.Background(), "/private", nil)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindAuthentication, gerr.Kind)
	assert.Equal(t, LoginPath, gerr.Redirect)
	assert.Equal(t, 1, creds.invalidated)
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, MsgSessionExpired, rec.All()[0].Message)
}

func TestDo_UnauthorizedOnPublicRequestKeepsSession(t *testing.T) {
	srv := setupBackend(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid email or password"})
		})
	})
	creds := &fakeCreds{}
	rec := &notify.Recorder{}
	client := newClient(srv, creds, rec)

	err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login", Body: gin.H{}, Public: true}, nil)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindAuthentication, gerr.Kind)
	assert.Equal(t, "Invalid email or password", gerr.Message)
	assert.Empty(t, gerr.Redirect)
	assert.Zero(t, creds.invalidated)
	assert.Equal(t, 1, rec.Len())
}

func TestDo_StatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    gin.H
		kind    Kind
		message string
	}{
		{"forbidden", http.StatusForbidden, gin.H{"message": "admins only"}, KindAuthorization, MsgForbidden},
		{"validation with message", http.StatusUnprocessableEntity, gin.H{"message": "guestCount must be positive"}, KindValidation, "guestCount must be positive"},
		{"validation fallback", http.StatusBadRequest, gin.H{}, KindValidation, MsgInvalidData},
		{"nested error", http.StatusConflict, gin.H{"success": false, "error": gin.H{"code": "OVERLAP", "message": "Dates overlap"}}, KindConflict, "Dates overlap"},
		{"not found", http.StatusNotFound, gin.H{"message": "Booking not found"}, KindNotFound, "Booking not found"},
		{"server fallback", http.StatusInternalServerError, gin.H{}, KindServer, MsgGeneric},
		{"range message elsewhere is verbatim", http.StatusInternalServerError, gin.H{"message": "numeric field overflow"}, KindServer, "numeric field overflow"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := setupBackend(t, func(r *gin.Engine) {
				r.GET("/x", func(c *gin.Context) { c.JSON(tc.status, tc.body) })
			})
			creds := &fakeCreds{token: "t"}
			rec := &notify.Recorder{}

			err := newClient(srv, creds, rec).Get(context.Background(), "/x", nil)

			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tc.kind, gerr.Kind)
			assert.Equal(t, tc.message, gerr.Message)
			assert.Equal(t, tc.status, gerr.Status)
			assert.Zero(t, creds.invalidated)
			assert.Equal(t, 1, rec.Len(), "exactly one notification per failure")
		})
	}
}

func TestDo_PriceOverflowOnlyForBookingCreation(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		message string
		kind    Kind
		want    string
	}{
		{"numeric overflow", http.StatusInternalServerError, "numeric field overflow", KindConflict, MsgPriceOverflow},
		{"integer out of range", http.StatusInternalServerError, `value "3000000000" is out of range for type integer`, KindConflict, MsgPriceOverflow},
		{"guest count", http.StatusBadRequest, "Guest count out of range", KindValidation, "Guest count out of range"},
		{"check-in date", http.StatusBadRequest, "Check-in date is out of range for this homestay", KindValidation, "Check-in date is out of range for this homestay"},
		{"stack overflow", http.StatusInternalServerError, "stack overflow in pricing worker", KindServer, "stack overflow in pricing worker"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := setupBackend(t, func(r *gin.Engine) {
				r.POST("/bookings", func(c *gin.Context) { c.JSON(tc.status, gin.H{"message": tc.message}) })
			})
			rec := &notify.Recorder{}

			err := newClient(srv, &fakeCreds{token: "t"}, rec).Post(context.Background(), "/bookings", gin.H{}, nil)

			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tc.kind, gerr.Kind)
			assert.Equal(t, tc.want, gerr.Message)
			assert.Equal(t, 1, rec.Len())
		})
	}
}

func TestDo_EnvelopeFailureOn200(t *testing.T) {
	srv := setupBackend(t, func(r *gin.Engine) {
		r.GET("/x", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Could not load"})
		})
	})
	rec := &notify.Recorder{}

	err := newClient(srv, nil, rec).Get(context.Background(), "/x", nil)

	assert.True(t, IsKind(err, KindServer))
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, "Could not load", rec.All()[0].Message)
}

func TestDo_TransportFailure(t *testing.T) {
	srv := setupBackend(t, func(r *gin.Engine) {})
	srv.Close()
	rec := &notify.Recorder{}

	err := newClient(srv, nil, rec).Get(context.Background(), "/x", nil)

	assert.Equal(t, KindTransport, KindOf(err))
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, MsgUnreachable, rec.All()[0].Message)
}

func TestDo_TimeoutIsTransport(t *testing.T) {
	release := make(chan struct{})
	srv := setupBackend(t, func(r *gin.Engine) {
		r.GET("/slow", func(c *gin.Context) {
			select {
			case <-release:
			case <-c.Request.Context().Done():
			}
		})
	})
	defer close(release)
	rec := &notify.Recorder{}
	client := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil).For(nil, rec)

	err := client.Get(context.Background(), "/slow", nil)

	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, 1, rec.Len())
}

func TestDo_CallerCancelIsSilent(t *testing.T) {
	srv := setupBackend(t, func(r *gin.Engine) {
		r.GET("/x", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	})
	rec := &notify.Recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newClient(srv, nil, rec).Get(ctx, "/x", nil)

	assert.Equal(t, KindCanceled, KindOf(err))
	assert.Zero(t, rec.Len())
}

func TestDo_SendsQueryAndBody(t *testing.T) {
	var gotQuery string
	var gotBody map[string]any
	srv := setupBackend(t, func(r *gin.Engine) {
		r.POST("/items", func(c *gin.Context) {
			gotQuery = c.Query("paymentStatus")
			_ = c.ShouldBindJSON(&gotBody)
			c.JSON(http.StatusCreated, gin.H{"success": true, "data": nil})
		})
	})

	err := newClient(srv, nil, &notify.Recorder{}).Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "items",
		Query:  map[string][]string{"paymentStatus": {"paid"}},
		Body:   gin.H{"approved": true},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "paid", gotQuery)
	assert.Equal(t, true, gotBody["approved"])
}

func TestKindOf_NonGatewayError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(assert.AnError))
}

package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ClientCookieName = "hs_client"
	clientIDKey      = "client_id"
	browserIDKey     = "browser_id"
)

// ClientCookie identifies a browser across requests. The cookie carries only
// a random id; the session itself stays on the server.
type ClientCookie struct {
	Secure   bool
	SameSite http.SameSite
	Path     string
	TTL      time.Duration
}

// Handler reads the client id, issuing a fresh browser-session cookie when
// it is missing or malformed.
func (cc ClientCookie) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(ClientCookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			cc.write(c, id, 0)
		}
		c.Set(clientIDKey, id)
		c.Set(browserIDKey, id)
		c.Next()
	}
}

// Persist re-issues the cookie to match the remember flag: it outlives the
// browser session only when the user asked to be remembered.
func (cc ClientCookie) Persist(c *gin.Context, remember bool) {
	id := ClientID(c)
	if id == "" {
		return
	}
	maxAge := 0
	if remember {
		maxAge = int(cc.TTL / time.Second)
	}
	cc.write(c, id, maxAge)
}

// Rotate moves the request to a fresh client id, so an id the browser
// brought along never becomes the key of a signed-in session. The cookie is
// written by the next Persist; undo moves the request back when sign-in fails.
func (cc ClientCookie) Rotate(c *gin.Context) (undo func()) {
	prev := ClientID(c)
	c.Set(clientIDKey, uuid.NewString())
	return func() { c.Set(clientIDKey, prev) }
}

func (cc ClientCookie) write(c *gin.Context, id string, maxAge int) {
	path := cc.Path
	if path == "" {
		path = "/"
	}
	c.SetSameSite(cc.SameSite)
	c.SetCookie(ClientCookieName, id, maxAge, path, "", cc.Secure, true)
}

func ClientID(c *gin.Context) string {
	return c.GetString(clientIDKey)
}

// BrowserID is the client id the request arrived with, before any Rotate.
func BrowserID(c *gin.Context) string {
	return c.GetString(browserIDKey)
}

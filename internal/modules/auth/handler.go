package auth

import (
	"errors"
	"net/http"

	"homestay/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler exposes the client's authentication state to the browser.
type Handler struct {
	resolve func(c *gin.Context) *Service
	cookie  ClientCookie
}

// NewHandler takes a resolver because every request belongs to its own client.
func NewHandler(resolve func(c *gin.Context) *Service, cookie ClientCookie) *Handler {
	return &Handler{resolve: resolve, cookie: cookie}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup, limiter gin.HandlerFunc) {
	api.GET("/session", h.GetSession)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", limiter, h.Login)
		authGroup.POST("/register", limiter, h.Register)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/verify-email", h.VerifyEmail)
		authGroup.POST("/forgot-password", limiter, h.ForgotPassword)
		authGroup.POST("/reset-password", limiter, h.ResetPassword)
	}
}

// GetSession restores the client's session on page load.
// @Summary	Restore session
// @Success	200	{object}	Restored
// @Router		/session [GET]
func (h *Handler) GetSession(c *gin.Context) {
	restored, err := h.resolve(c).RestoreSession(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, restored)
}

// Login signs the client in.
// @Summary	Login
// @Param		request	body	LoginRequest	true	"email, password, rememberMe"
// @Success	200	{object}	Result
// @Failure	401	{object}	map[string]interface{}	"Wrong credentials"
// @Router		/auth/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.signIn(c, func(s *Service) (Result, error) {
		return s.Login(c.Request.Context(), req)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.Success {
		if len(res.Fields) > 0 {
			response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", res.Message, res.Fields)
			return
		}
		response.Error(c, http.StatusUnauthorized, "LOGIN_FAILED", res.Message)
		return
	}

	h.cookie.Persist(c, req.RememberMe)
	response.Success(c, http.StatusOK, res)
}

// Register creates an account and signs the client in.
// @Summary	Register
// @Param		request	body	RegisterRequest	true	"firstName, lastName, email, password, confirmPassword"
// @Success	201	{object}	Result
// @Router		/auth/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.signIn(c, func(s *Service) (Result, error) {
		return s.Register(c.Request.Context(), req)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.Success {
		response.ErrorWithDetails(c, http.StatusBadRequest, "REGISTRATION_FAILED", res.Message, res.Fields)
		return
	}

	h.cookie.Persist(c, req.RememberMe)
	response.Success(c, http.StatusCreated, res)
}

// signIn runs fn under a fresh client id. On success the session the
// browser held under its old id is dropped; otherwise the request keeps the
// old id.
func (h *Handler) signIn(c *gin.Context, fn func(s *Service) (Result, error)) (Result, error) {
	prev := h.resolve(c)
	undo := h.cookie.Rotate(c)
	res, err := fn(h.resolve(c))
	if err != nil || !res.Success {
		undo()
		return res, err
	}
	if err := prev.Abandon(c.Request.Context()); err != nil {
		_ = c.Error(err)
	}
	return res, nil
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.resolve(c).Logout(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.cookie.Persist(c, false)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	msg, err := h.resolve(c).VerifyEmail(c.Request.Context(), req)
	h.message(c, msg, err)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	msg, err := h.resolve(c).ForgotPassword(c.Request.Context(), req)
	h.message(c, msg, err)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	msg, err := h.resolve(c).ResetPassword(c.Request.Context(), req)
	h.message(c, msg, err)
}

func (h *Handler) message(c *gin.Context, msg string, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ie *InputError
	switch {
	case errors.As(err, &ie):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", ie.Message(), ie.Fields)
	case response.GatewayError(c, err):
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong, please try again later")
	}
}

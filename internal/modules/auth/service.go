package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"homestay/internal/domain"
	"homestay/internal/gateway"
	"homestay/internal/pkg/jwt"
	"homestay/internal/pkg/validator"
	"homestay/internal/session"

	"github.com/sirupsen/logrus"
)

// Service owns one client's authentication state. It is the only writer of
// the session store besides the gateway's teardown on a rejected token.
type Service struct {
	backend Backend
	store   SessionStore
	log     *logrus.Logger
	now     func() time.Time

	restoreMu sync.Mutex
	restored  *Restored
}

func NewService(backend Backend, store SessionStore, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Service{
		backend: backend,
		store:   store,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Result, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := check(req); err != nil {
		return invalid(err), nil
	}

	return s.authenticate(ctx, "/auth/login", credentialsPayload{
		Email:    req.Email,
		Password: req.Password,
	}, req.RememberMe)
}

// Register creates the account and signs the client in at once, whatever the
// account's email verification state is.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Result, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := check(req); err != nil {
		return invalid(err), nil
	}

	return s.authenticate(ctx, "/auth/register", registerPayload{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}, req.RememberMe)
}

func (s *Service) authenticate(ctx context.Context, path string, body any, remember bool) (Result, error) {
	var resp authResponse
	err := s.backend.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		Public: true,
	}, &resp)
	if err != nil {
		if expected(err) {
			return Result{Success: false, Message: messageOf(err)}, nil
		}
		return Result{}, err
	}
	if resp.Token == "" {
		return Result{}, ErrMissingToken
	}
	if resp.User.FullName == "" {
		resp.User.FullName = resp.User.DisplayName()
	}

	if err := s.store.Save(ctx, session.Snapshot{Token: resp.Token, User: resp.User}, remember); err != nil {
		return Result{}, err
	}
	s.setRestored(Restored{Authenticated: true, User: &resp.User, Remembered: remember})

	s.log.WithFields(logrus.Fields{
		"path":       path,
		"user_id":    resp.User.ID,
		"remembered": remember,
	}).Info("client signed in")
	user := resp.User
	return Result{Success: true, User: &user}, nil
}

// RestoreSession runs once per service lifetime and returns the same result
// afterwards. A remembered session is checked locally for expiry and then
// against /auth/me, unless the store says that already happened in this
// process; a session-scoped one is trusted as cached. Only a verdict from
// the backend discards the session; an unreachable or failing backend
// leaves it in place and the error is returned uncached.
func (s *Service) RestoreSession(ctx context.Context) (Restored, error) {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()
	if s.restored != nil {
		return *s.restored, nil
	}

	r, err := s.restore(ctx)
	if err != nil {
		return Restored{}, err
	}
	s.restored = &r
	return r, nil
}

func (s *Service) restore(ctx context.Context) (Restored, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return Restored{}, err
	}
	if snap == nil || snap.Token == "" {
		return Restored{}, nil
	}
	if !snap.Remembered {
		user := snap.User
		return Restored{Authenticated: true, User: &user}, nil
	}

	if exp, ok := jwt.ExpiresAt(snap.Token); ok && !exp.After(s.now()) {
		s.log.Info("remembered token expired, discarding session")
		return Restored{}, s.store.Clear(ctx)
	}
	if s.store.Revalidated() {
		user := snap.User
		return Restored{Authenticated: true, User: &user, Remembered: true, Revalidated: true}, nil
	}

	user, err := s.currentUser(ctx)
	if err != nil {
		if !rejected(err) {
			s.log.WithError(err).Warn("could not revalidate remembered session")
			return Restored{}, err
		}
		s.log.WithError(err).Info("remembered session rejected, discarding")
		return Restored{}, s.store.Clear(ctx)
	}

	// keep the refreshed user snapshot in the durable tier
	if err := s.store.Save(ctx, session.Snapshot{Token: snap.Token, User: *user}, true); err != nil {
		return Restored{}, err
	}
	return Restored{Authenticated: true, User: user, Remembered: true, Revalidated: true}, nil
}

// currentUser accepts both {"user": {...}} and a bare user object.
func (s *Service) currentUser(ctx context.Context) (*domain.User, error) {
	var raw json.RawMessage
	if err := s.backend.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/auth/me"}, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return nil, ErrNotAuthenticated
	}
	return &user, nil
}

// rejected tells a backend verdict on the token apart from a failure to
// get one.
func rejected(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	switch gateway.KindOf(err) {
	case gateway.KindAuthentication, gateway.KindAuthorization, gateway.KindNotFound:
		return true
	}
	return false
}

func (s *Service) Logout(ctx context.Context) error {
	s.setRestored(Restored{})
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.log.Info("client signed out")
	return nil
}

// Abandon drops the session of a client id the browser no longer uses.
func (s *Service) Abandon(ctx context.Context) error {
	s.setRestored(Restored{})
	return s.store.Clear(ctx)
}

func (s *Service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (string, error) {
	req.Token = strings.TrimSpace(req.Token)
	if err := check(req); err != nil {
		return "", err
	}
	return s.post(ctx, "/auth/verify-email", req, "Email verified successfully")
}

func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := check(req); err != nil {
		return "", err
	}
	return s.post(ctx, "/auth/forgot-password", req, "Password reset instructions have been sent to your email")
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	if err := check(req); err != nil {
		return "", err
	}
	body := struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}{req.Token, req.Password}
	return s.post(ctx, "/auth/reset-password", body, "Your password has been reset")
}

func (s *Service) post(ctx context.Context, path string, body any, fallback string) (string, error) {
	var resp messageResponse
	err := s.backend.Do(ctx, gateway.Request{Method: http.MethodPost, Path: path, Body: body, Public: true}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Message == "" {
		return fallback, nil
	}
	return resp.Message, nil
}

func (s *Service) setRestored(r Restored) {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()
	s.restored = &r
}

func check(v any) error {
	fields := validator.Validate(v)
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for field, tag := range fields {
		out[jsonName(field)] = fieldMessage(field, tag)
	}
	return &InputError{Fields: out}
}

func invalid(err error) Result {
	var ie *InputError
	if errors.As(err, &ie) {
		return Result{Success: false, Message: ie.Message(), Fields: ie.Fields}
	}
	return Result{Success: false, Message: err.Error()}
}

// expected failures are answered with a tagged result instead of an error.
func expected(err error) bool {
	switch gateway.KindOf(err) {
	case gateway.KindAuthentication, gateway.KindAuthorization, gateway.KindValidation,
		gateway.KindConflict, gateway.KindNotFound:
		return true
	}
	return false
}

func messageOf(err error) string {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return err.Error()
}

func jsonName(field string) string {
	r, size := utf8.DecodeRuneInString(field)
	return string(unicode.ToLower(r)) + field[size:]
}

func fieldMessage(field, tag string) string {
	switch field + "." + tag {
	case "Email.required":
		return "Email is required"
	case "Email.email":
		return "Email is not valid"
	case "Password.required":
		return "Password is required"
	case "Password.password":
		return "Password must be at least 8 characters and contain an upper-case letter, a lower-case letter and a digit"
	case "ConfirmPassword.required", "ConfirmPassword.eqfield":
		return "Passwords do not match"
	case "FirstName.required", "LastName.required":
		return "Name is required"
	case "FirstName.min", "LastName.min":
		return "Name must be at least 2 characters"
	case "FirstName.max", "LastName.max":
		return "Name must be at most 50 characters"
	case "Token.required":
		return "Token is required"
	}
	return field + " is invalid"
}

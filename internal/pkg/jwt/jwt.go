package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("token is not a JWT")

type Service struct {
	secret []byte
	ttl    time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwtlib.RegisteredClaims
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (s *Service) GenerateToken(userID, role string) (string, error) {
	return s.generate(userID, role, time.Now().Add(s.ttl))
}

// GenerateExpired issues a token that is already past its expiry.
func (s *Service) GenerateExpired(userID, role string) (string, error) {
	return s.generate(userID, role, time.Now().Add(-time.Minute))
}

func (s *Service) generate(userID, role string, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	return claims, nil
}

// Inspect reads the claims of a token issued by the backend without verifying
// its signature. The front end never holds the backend secret, so the result
// is only good for local decisions such as skipping a token that has expired.
func Inspect(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, ErrNotJWT
	}
	return claims, nil
}

// ExpiresAt returns the expiry of a token and false when the token carries
// none or is not a JWT at all.
func ExpiresAt(tokenStr string) (time.Time, bool) {
	claims, err := Inspect(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Package identity verifies and mints the bearer tokens users present on HTTP
// and realtime connections.
package identity

import (
	"errors"
	"time"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/config"
	"pratojusto/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims carried by every token we issue.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what a verified token asserts. Subject is the email claim and
// must still be resolved against the user directory.
type Identity struct {
	UserID  uint
	Subject string
}

// Verifier is the read side of the directory, consumed by the realtime
// authenticator and the HTTP middleware.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// Directory signs and verifies HS256 tokens.
type Directory struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewDirectory(cfg config.AuthConfig) *Directory {
	return &Directory{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// Issue mints a token for user.
func (d *Directory) Issue(user *models.User) (string, error) {
	now := d.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   models.UserKey(user.ID),
			Issuer:    d.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(d.secret)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and issuer. Any failure is
// reported as UNAUTHENTICATED.
func (d *Directory) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, apperr.Unauthenticated("missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return d.secret, nil
	},
		jwt.WithIssuer(d.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(d.now),
	)
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "invalid token", err)
	}
	if claims.Email == "" {
		return nil, apperr.Unauthenticated("token has no subject")
	}

	return &Identity{UserID: claims.UserID, Subject: claims.Email}, nil
}

// Package session issues and parses signed, time-bound session tokens.
package session

import (
	"errors"
	"time"

	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

const leeway = 30 * time.Second

// ErrInvalidToken covers every reason a token is refused.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims are the application claims carried by a session.
type Claims struct {
	UserID uuid.UUID
	Admin  bool
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm,omitempty"`
}

// Issuer signs HS256 session tokens.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(key []byte, ttl time.Duration) *Issuer {
	return &Issuer{key: key, ttl: ttl, now: time.Now}
}

// Issue creates a token for userID.
func (i *Issuer) Issue(userID uuid.UUID, c Claims) (model.Tokens, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Admin: c.Admin,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.key)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse verifies the signature and expiry of token and returns its claims.
func (i *Issuer) Parse(token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithLeeway(leeway), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: id, Admin: claims.Admin}, nil
}

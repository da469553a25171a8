package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the signature checked out but the token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)

// Payload is the application claim set carried by both tokens.
type Payload struct {
	ID string `json:"id"`
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Manager signs and verifies the access/refresh token pair. Access and
// refresh tokens use distinct secrets so a leaked refresh secret cannot
// mint access tokens and vice versa.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewManager(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssuePair produces a short-lived access token and a long-lived refresh
// token from the same payload.
func (m *Manager) IssuePair(p Payload) (TokenPair, error) {
	access, err := m.sign(p, m.accessSecret, m.accessTTL)

	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := m.sign(p, m.refreshSecret, m.refreshTTL)

	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Token: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks a bearer access token.
func (m *Manager) VerifyAccess(token string) (Payload, error) {
	return m.verify(token, m.accessSecret)
}

// VerifyRefresh checks a refresh token presented to the refresh endpoint.
func (m *Manager) VerifyRefresh(token string) (Payload, error) {
	return m.verify(token, m.refreshSecret)
}

func (m *Manager) sign(p Payload, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	c := claims{
		ID: p.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)

	return token.SignedString(secret)
}

func (m *Manager) verify(tokenStr string, secret []byte) (Payload, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, ErrTokenExpired
		}

		return Payload{}, ErrTokenInvalid
	}

	c, ok := token.Claims.(*claims)

	if !ok || !token.Valid || c.ID == "" {
		return Payload{}, ErrTokenInvalid
	}

	return Payload{ID: c.ID}, nil
}

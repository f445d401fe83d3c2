package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret means the signing secret was never configured.
	// This is a deployment fault, not a client fault.
	ErrMissingSecret = errors.New("token secret is not configured")
)

// Claims carries the builder identity inside a signed token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 bearer tokens for builder emails.
type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Issue signs a token whose subject is the builder's email.
// TODO: add an exp claim once clients can re-authenticate on expiry;
// tokens are currently valid until the secret rotates.
func (m *Manager) Issue(email string) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrMissingSecret
	}

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(m.secret)
}

// Verify validates the signature and returns the embedded email claim.
func (m *Manager) Verify(tokenStr string) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}

		return m.secret, nil
	})

	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	email := claims.Email
	if email == "" {
		email = claims.Subject
	}

	if email == "" {
		return "", ErrInvalidToken
	}

	return email, nil
}

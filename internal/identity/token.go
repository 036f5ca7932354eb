package identity

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid session token")

// sessionClaims is the signed form of a Session.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID     int64     `json:"userId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
	Persistent bool      `json:"persistent"`
}

func encodeSession(s Session, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       s.ID,
			Subject:  strconv.FormatInt(s.UserID, 10),
			IssuedAt: jwt.NewNumericDate(s.CreatedAt),
		},
		UserID:     s.UserID,
		Name:       s.Name,
		Email:      s.Email,
		CreatedAt:  s.CreatedAt,
		Persistent: s.Persistent,
	})

	return token.SignedString(secret)
}

func decodeSession(raw string, secret []byte) (*Session, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errInvalidToken
	}

	return &Session{
		ID:         claims.ID,
		UserID:     claims.UserID,
		Name:       claims.Name,
		Email:      claims.Email,
		CreatedAt:  claims.CreatedAt,
		Persistent: claims.Persistent,
	}, nil
}

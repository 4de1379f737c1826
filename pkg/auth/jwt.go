// Package auth verifies the externally-issued credential presented during
// the connection handshake. The relay never issues production tokens; Sign
// exists for the dev client and tests.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mahaj/relay/pkg/model"
	"github.com/pkg/errors"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify parses and validates a token, returning the authenticated user id.
// Any failure (bad signature, expiry, wrong algorithm, missing user id)
// yields model.ErrUnauthenticated.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", errors.Wrapf(model.ErrUnauthenticated, "parsing token: %v", err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", model.ErrUnauthenticated
	}
	return claims.UserID, nil
}

// Sign mints a token for the given user id. Dev and test use only.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

package client

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired reports whether a bearer token is a JWT whose exp claim has
// already passed. Opaque tokens and JWTs without an exp claim are left to the
// backend to judge.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}

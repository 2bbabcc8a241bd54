package rpc

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

var errUnauthorized = errors.New("rpc: unauthorized")

// Authenticator gates admin methods behind a bearer credential: either a
// static token or an HS256 JWT carrying the admin scope.
type Authenticator struct {
	staticToken string
	secret      []byte
}

func NewAuthenticator(staticToken, jwtSecret string) *Authenticator {
	return &Authenticator{
		staticToken: strings.TrimSpace(staticToken),
		secret:      []byte(strings.TrimSpace(jwtSecret)),
	}
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Authorize validates the Authorization header for an admin method.
func (a *Authenticator) Authorize(r *http.Request) error {
	credential := extractBearer(r.Header.Get("Authorization"))
	if credential == "" {
		return errUnauthorized
	}
	if a.staticToken != "" &&
		subtle.ConstantTimeCompare([]byte(credential), []byte(a.staticToken)) == 1 {
		return nil
	}
	if len(a.secret) > 0 {
		return a.verifyJWT(credential)
	}
	return errUnauthorized
}

func (a *Authenticator) verifyJWT(tokenString string) error {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return errUnauthorized
	}
	scope, _ := claims["scope"].(string)
	for _, s := range strings.Fields(scope) {
		if s == "admin" {
			return nil
		}
	}
	return errUnauthorized
}

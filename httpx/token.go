package httpx

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrTokenNotFound = errors.New("httpx: bearer token not found")
	ErrTokenInvalid  = errors.New("httpx: bearer token invalid")
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(c Context) (string, error) {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return "", ErrTokenNotFound
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrTokenInvalid
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrTokenInvalid
	}
	return token, nil
}

// RequireToken rejects requests whose bearer token is not want with 401.
// An empty want lets every request through.
func RequireToken(want string) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			if want == "" {
				return next(c)
			}
			got, err := BearerToken(c)
			if err != nil {
				return HTTPError(StatusUnauthorized, err.Error())
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				return HTTPError(StatusUnauthorized, ErrTokenInvalid.Error())
			}
			return next(c)
		}
	}
}

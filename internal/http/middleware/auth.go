// Package middleware – respondent authentication
//
// This file implements optional bearer-token authentication for the collector
// surface. Tokens are HMAC-signed JWTs carrying the respondent identifier in
// the subject claim. A missing or invalid token does not reject the request:
// the collector accepts anonymous respondents and keys their sessions by
// client address instead, so the middleware only annotates the context when a
// verifiable identity is present. Handlers read the identity via
// RespondentID.
//
// SignRespondentToken exists for tests and for upstream services that mint
// collector links.
package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// CtxRespondentID is the Gin context key under which the authenticated
// respondent identifier is stored.
const CtxRespondentID = "respondentID"

var errInvalidToken = errors.New("invalid token")

// RespondentID returns the authenticated respondent identifier, or
// ("", false) for anonymous requests.
func RespondentID(c *gin.Context) (string, bool) {
	if v, ok := c.Get(CtxRespondentID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// SignRespondentToken mints an HS256 token whose subject is the respondent
// identifier, valid for ttl.
func SignRespondentToken(secret []byte, respondentID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   respondentID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseRespondentToken(secret []byte, tok string) (string, error) {
	t, err := jwt.ParseWithClaims(tok, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	c, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok || !t.Valid || c.Subject == "" {
		return "", errInvalidToken
	}
	return c.Subject, nil
}

// RespondentAuth verifies a Bearer token when one is supplied and stashes the
// respondent identifier in the context. Requests without a valid token pass
// through anonymously; rejection is left to handlers that require identity.
func RespondentAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if strings.HasPrefix(h, "Bearer ") && len(secret) > 0 {
			tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if sub, err := parseRespondentToken(secret, tok); err == nil {
				c.Set(CtxRespondentID, sub)
			}
		}
		c.Next()
	}
}

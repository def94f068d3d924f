package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klasika/klasika-backend/internal/response"
	"github.com/klasika/klasika-backend/internal/service"
)

// ContextKeyClaims is the Gin context key holding the validated JWT claims.
const ContextKeyClaims = "claims"

var errNoBearerToken = errors.New("authorization header required")

// RequireStudentJWT admits only requests carrying a valid student token in
// the Authorization header.
func RequireStudentJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeStudent, response.ErrStudentAccessOnly, bearerToken)
}

// RequireStaffJWT admits only requests carrying a valid staff token in the
// Authorization header.
func RequireStaffJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeStaff, response.ErrStaffAccessOnly, bearerToken)
}

// RequireStudentWSAuth reads the token from the ?token= query parameter.
// Browsers cannot set headers on a WebSocket upgrade, so the stream routes
// use this instead of the bearer variant.
func RequireStudentWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeStudent, response.ErrStudentAccessOnly, queryToken)
}

// GetClaims returns the claims stored by the auth middleware, or nil when
// the route was reached without one.
func GetClaims(c *gin.Context) *service.Claims {
	val, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := val.(*service.Claims)
	return claims
}

func requireTokenType(authService *service.AuthService, want service.TokenType, wrongType response.ErrCode, extract func(*gin.Context) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extract(c)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, wrongType)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", errNoBearerToken
	}
	return parts[1], nil
}

func queryToken(c *gin.Context) (string, error) {
	token := c.Query("token")
	if token == "" {
		return "", errNoBearerToken
	}
	return token, nil
}

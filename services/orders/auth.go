package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authContextKey = "auth"

// AuthContext representa a identidade do chamador autenticado. A emissão do
// token fica fora deste serviço; aqui só validamos.
type AuthContext struct {
	UserID  string
	IsStaff bool
}

type authClaims struct {
	IsStaff bool `json:"is_staff"`
	jwt.RegisteredClaims
}

// AuthMiddleware valida o bearer token (HS256) e injeta o AuthContext na
// requisição
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			abortUnauthorized(c, errors.New("missing bearer token"))
			return
		}

		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortUnauthorized(c, errors.New("invalid or expired token"))
			return
		}
		if claims.Subject == "" {
			abortUnauthorized(c, errors.New("token has no subject"))
			return
		}

		c.Set(authContextKey, AuthContext{
			UserID:  claims.Subject,
			IsStaff: claims.IsStaff,
		})
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// mustAuth retorna o AuthContext injetado pelo middleware. Só pode ser
// chamado em rotas atrás do AuthMiddleware.
func mustAuth(c *gin.Context) AuthContext {
	return c.MustGet(authContextKey).(AuthContext)
}

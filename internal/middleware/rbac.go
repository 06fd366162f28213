package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/jlpt-proctor/internal/response"
)

// RequireProctor allows only users whose app metadata marks them as proctors.
// Must run after RequireJWT.
func RequireProctor() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !claims.IsProctor() {
			response.AbortFail(c, http.StatusForbidden, response.ErrProctorOnly)
			return
		}
		c.Next()
	}
}

package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Hommy-master/capcut-mate-data/apperr"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// SubjectKey is the locals key carrying the authenticated caller identity.
const SubjectKey = "subject"

// OptionalJWTAuth validates an HS256 bearer token when a secret is
// configured. Without a secret the API stays open, matching deployments
// that put authentication in a gateway or run on a private network.
func OptionalJWTAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.New(apperr.AuthenticationFailed, "missing bearer token")
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return apperr.New(apperr.AuthenticationFailed, "authorization header must use the Bearer scheme")
		}

		parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !parsed.Valid {
			utils.LogRequestError(c, "token validation failed", err)
			return apperr.New(apperr.AuthenticationFailed, "invalid or expired token")
		}

		// Expose the caller identity to handlers and logs
		if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
			if sub, _ := claims["sub"].(string); sub != "" {
				c.Locals(SubjectKey, sub)
			}
		}
		return c.Next()
	}
}

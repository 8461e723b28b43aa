package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/drestrepo/giftregistry/internal/helpers"
	"github.com/drestrepo/giftregistry/internal/models"
)

func parseToken(tokenString string) (uuid.UUID, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", fmt.Errorf("invalid claims")
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, "", fmt.Errorf("user_id claim missing")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("user_id claim invalid")
	}

	role, _ := claims["role"].(string)
	return userID, role, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

// JWTAuthMiddleware rejects requests without a valid token.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Access denied. Token required.")
			c.Abort()
			return
		}

		userID, role, err := parseToken(tokenString)
		if err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid token.")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("user_role", role)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the contributor when a token is present
// and lets the request continue as an anonymous guest otherwise.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if userID, role, err := parseToken(tokenString); err == nil {
				c.Set("user_id", userID)
				c.Set("user_role", role)
			}
		}
		c.Next()
	}
}

// AdminMiddleware gates a route group to admin users. It runs after
// JWTAuthMiddleware and double-checks the role against the database so a
// stale token cannot keep admin access after a role change.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
			c.Abort()
			return
		}

		db, exists := c.Get("db")
		if !exists {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
			c.Abort()
			return
		}
		gormDB := db.(*gorm.DB)

		var user models.User
		if err := gormDB.Where("id = ?", userID).First(&user).Error; err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid token.")
			c.Abort()
			return
		}

		if !user.IsAdmin() {
			helpers.RespondWithError(c, http.StatusForbidden, "Access denied. Administrator permissions required.")
			c.Abort()
			return
		}

		c.Next()
	}
}

package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			if err == ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)

		c.Next()
	}
}

// OptionalAuth sets user info when a valid token is present and lets
// anonymous requests through. Invalid tokens are treated as anonymous.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := ValidateToken(tokenString); err == nil {
				c.Set(ContextKeyUserID, claims.UserID)
				c.Set(ContextKeyEmail, claims.Email)
			}
		}
		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

// GetEmail returns the email from the gin context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	return email.(string), true
}

package jwt

import (
	"time"
	"townsquare/backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateToken creates a new authentication JWT for a given user ID.
func GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour * 24 * 7).Unix(), // Token expires in 7 days
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// GenerateSessionToken creates the token a player uses to authenticate
// requests against an active town session.
func GenerateSessionToken(sessionID string, userID uint, townID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"sid":  sessionID,
		"town": townID,
		"exp":  time.Now().Add(time.Hour * 24).Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

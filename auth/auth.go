package auth

import (
	"errors"
	"os"
	"time"

	"shellduel/models"

	jwt "github.com/dgrijalva/jwt-go"
	"gorm.io/gorm"
)

const tokenLifetime = 72 * time.Hour

var ErrInvalidToken = errors.New("invalid or expired token")

// Key returns the JWT signing key. JWT_SECRET must be set in production; the
// fallback exists so a bare dev checkout still boots.
func Key() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("shellduel-dev-secret")
}

// GenerateToken creates a guest user row and signs a token for it. Guests
// carry no credentials; the user ID in the claims is their whole identity.
func GenerateToken(db *gorm.DB, name string) (string, uint, error) {
	user := models.User{Name: name}
	if err := db.Create(&user).Error; err != nil {
		return "", 0, err
	}

	claims := &models.MyClaims{
		UserID: user.ID,
		Name:   name,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(tokenLifetime).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(Key())
	if err != nil {
		return "", 0, err
	}
	return signed, user.ID, nil
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return Key(), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

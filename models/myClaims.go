package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// MyClaims is the JWT claim set issued to guest identities.
type MyClaims struct {
	UserID uint   `json:"userid"`
	Name   string `json:"name"`
	jwt.StandardClaims
}

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminTokenTTL is the lifetime of an operator admin token.
const AdminTokenTTL = 15 * time.Minute

// AdminClaims identifies the operator holding an admin token. Admin
// tokens are never accepted on the device-facing /manifest or /files/*
// routes; they exist only for the operator-facing /admin/status route.
type AdminClaims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

// IssueAdminToken signs a short-lived operator token.
func IssueAdminToken(signingKey []byte, operator string) (string, error) {
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AdminTokenTTL)),
		},
		Operator: operator,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// VerifyAdminToken parses and validates an operator token, returning its
// claims on success.
func VerifyAdminToken(signingKey []byte, tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid admin token")
	}

	return claims, nil
}

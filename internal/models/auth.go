package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access-token payload issued by the campus identity
// service. For students UserID is the student id; for faculty it is the
// instructor id.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are the JWT claims accepted on mutating endpoints. Tokens are
// issued by the campus identity service; this API only verifies them.
type AccessClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

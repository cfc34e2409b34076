package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	JTI    string
}

// AccessTokenClaims identifies the buyer behind a request. Cart and order
// routes compare UserID with the path or the order owner.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

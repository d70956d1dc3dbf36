package jwttoken

import (
	"carp/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *auth.TokenClaims {
	return &auth.TokenClaims{
		AccountID: claims.Subject,
		Role:      claims.Role,
	}
}

// JWTServiceAdapter satisfies auth.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
